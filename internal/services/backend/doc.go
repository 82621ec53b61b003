// Package backend is the HTTP client for the crewbe API daemon.
//
// A single Client satisfies every collaborator the recorder side needs: it
// issues presigned write credentials, performs the direct PUT against object
// storage, falls back to the proxied multipart upload, and exposes the three
// analysis job providers. Errors carry the services markers so callers can
// tell authorization problems from transient ones.
package backend
