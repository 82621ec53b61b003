// Package workflow sequences one interview session through the pipeline:
// capture, upload, analysis dispatch and polling.
//
// The Pipeline owns the session phase. Phases move along a fixed transition
// table (idle, recording, uploading, analyzing, done, failed); done and failed
// are terminal and only Reset returns the pipeline to idle. Every transition
// is persisted to the session store and published to observers on a
// dedicated goroutine so that a slow observer never stalls the pipeline.
//
// Start acquires the device synchronously and returns; everything after Stop
// runs in the background. Reset abandons in-flight work, including polling,
// but never cancels jobs already running at the analysis provider.
package workflow
