package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"crewbe/internal/analysis"
	"crewbe/internal/api"
	"crewbe/internal/logging"
	"crewbe/internal/session"
)

func (s *apiServer) analysisTarget(w http.ResponseWriter, r *http.Request) (api.StartAnalysisRequest, bool) {
	var req api.StartAnalysisRequest
	if !s.decodeJSON(w, r, &req) {
		return req, false
	}
	req.S3Key = strings.TrimSpace(req.S3Key)
	if req.S3Key == "" {
		s.writeError(w, http.StatusBadRequest, "s3Key is required", "")
		return req, false
	}
	if req.Bucket = strings.TrimSpace(req.Bucket); req.Bucket == "" {
		req.Bucket = s.storage.Bucket()
	}
	if code := strings.TrimSpace(req.LanguageCode); code != "" {
		if _, err := language.Parse(code); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid languageCode", err.Error())
			return req, false
		}
		req.LanguageCode = analysis.NormalizeLanguage(code)
	} else {
		req.LanguageCode = s.language
	}
	return req, true
}

// handleStartAnalysis starts all three jobs. Each job reports its own outcome;
// one job failing to start does not fail the request.
func (s *apiServer) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := s.analysisTarget(w, r)
	if !ok {
		return
	}
	dispatcher := analysis.NewDispatcher(s.providers, req.Bucket, req.LanguageCode, s.requestLogger(r))
	jobs, err := dispatcher.Start(r.Context(), req.S3Key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to start analysis", err.Error())
		return
	}

	resp := api.StartAnalysisResponse{
		Success:   true,
		S3Key:     req.S3Key,
		Bucket:    req.Bucket,
		Timestamp: api.Now(),
	}
	for _, job := range jobs {
		start := wireStart(job)
		switch job.Kind {
		case session.JobTranscription:
			resp.AnalysisJobs.STT = start
		case session.JobFace:
			resp.AnalysisJobs.FaceDetection = start
		case session.JobSegment:
			resp.AnalysisJobs.SegmentDetection = start
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStartJob(w http.ResponseWriter, r *http.Request) {
	kind, ok := session.ParseJobKind(r.PathValue("type"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid job type", "expected stt, face or segment")
		return
	}
	req, ok := s.analysisTarget(w, r)
	if !ok {
		return
	}
	provider := s.providers.For(kind)
	if provider == nil {
		s.writeError(w, http.StatusServiceUnavailable, "provider unavailable", kind.Label()+" is not configured")
		return
	}

	start := api.JobStart{Status: api.StatusInProgress}
	handle, err := provider.Start(r.Context(), analysis.Media{Bucket: req.Bucket, Key: req.S3Key, LanguageHint: req.LanguageCode})
	if err != nil {
		logging.WarnWithContext(s.requestLogger(r), "analysis job failed to start", "analysis_start_failed",
			logging.Error(err),
			logging.String(logging.FieldJobKind, string(kind)),
			logging.String(logging.FieldStorageKey, req.S3Key),
			logging.String(logging.FieldErrorHint, "check provider permissions for the bucket"),
		)
		start = api.JobStart{Status: api.StatusFailed, Error: err.Error()}
	} else {
		start.JobID = handle
	}
	s.writeJSON(w, http.StatusOK, api.StartJobResponse{
		Success:   err == nil,
		JobType:   kind.WireName(),
		Job:       start,
		Timestamp: api.Now(),
	})
}

func (s *apiServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	kind, ok := session.ParseJobKind(r.PathValue("type"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid job type", "expected stt, face or segment")
		return
	}
	result, err := s.queryJob(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		s.requestLogger(r).Debug("job status query failed",
			logging.Error(err),
			logging.String(logging.FieldJobKind, string(kind)),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to get job status", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobStatusResponse{
		Success:   true,
		JobType:   kind.WireName(),
		Result:    result,
		Timestamp: api.Now(),
	})
}

// handleStatusAll queries every named job concurrently. A failed query shows
// up as ERROR for that job only.
func (s *apiServer) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	var req api.StatusAllRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Jobs) == 0 {
		s.writeError(w, http.StatusBadRequest, "jobs are required", "")
		return
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]api.JobStatus, len(req.Jobs))
	)
	for wire, id := range req.Jobs {
		wg.Add(1)
		go func(wire, id string) {
			defer wg.Done()
			var result api.JobStatus
			kind, ok := session.ParseJobKind(wire)
			if !ok {
				result = api.JobStatus{JobID: id, Status: api.StatusError, Error: "unknown job type " + wire}
			} else if res, err := s.queryJob(r.Context(), kind, id); err != nil {
				result = api.JobStatus{JobID: id, Status: api.StatusError, Error: err.Error()}
			} else {
				result = res
			}
			mu.Lock()
			results[wire] = result
			mu.Unlock()
		}(wire, id)
	}
	wg.Wait()

	s.writeJSON(w, http.StatusOK, api.StatusAllResponse{
		Success:   true,
		Results:   results,
		Timestamp: api.Now(),
	})
}

func (s *apiServer) queryJob(ctx context.Context, kind session.JobKind, id string) (api.JobStatus, error) {
	provider := s.providers.For(kind)
	if provider == nil {
		return api.JobStatus{}, fmt.Errorf("%s is not configured", kind.Label())
	}
	status, err := provider.Status(ctx, id)
	if err != nil {
		return api.JobStatus{}, err
	}
	return s.wireStatus(kind, id, status), nil
}

func (s *apiServer) wireStatus(kind session.JobKind, id string, status analysis.Status) api.JobStatus {
	out := api.JobStatus{JobID: id}
	switch status.State {
	case session.JobFailed, session.JobFailedToStart:
		out.Status = api.StatusFailed
		out.Error = status.Reason
		return out
	case session.JobSucceeded:
	default:
		out.Status = api.StatusInProgress
		return out
	}

	switch kind {
	case session.JobTranscription:
		out.Status = api.StatusCompleted
		if t := status.Transcription; t != nil {
			out.TranscriptURI = t.ResultURI
			out.LanguageCode = t.Language
			out.CompletionTime = t.CompletedAt
		}
	case session.JobFace:
		out.Status = api.StatusSucceeded
		if f := status.Faces; f != nil {
			out.FaceCount = max(f.Total, len(f.Faces))
			out.Faces = api.FacesToWire(f.Faces, s.maxFaces)
		}
	case session.JobSegment:
		out.Status = api.StatusSucceeded
		if seg := status.Segments; seg != nil {
			out.SegmentCount = max(seg.Total, len(seg.Segments))
			out.Segments = api.SegmentsToWire(seg.Segments, s.maxSegments)
		}
	}
	return out
}

func wireStart(job session.AnalysisJob) api.JobStart {
	if job.Status.IsFailure() {
		return api.JobStart{Status: api.StatusFailed, Error: job.Error}
	}
	return api.JobStart{JobID: job.Handle, Status: api.StatusInProgress}
}
