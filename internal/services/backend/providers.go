package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"crewbe/internal/analysis"
	"crewbe/internal/api"
	"crewbe/internal/services"
	"crewbe/internal/session"
)

// Providers returns analysis providers that start and poll jobs through the API.
func (c *Client) Providers() analysis.Providers {
	return analysis.Providers{
		Transcription: &jobProvider{client: c, kind: session.JobTranscription},
		Face:          &jobProvider{client: c, kind: session.JobFace},
		Segment:       &jobProvider{client: c, kind: session.JobSegment},
	}
}

type jobProvider struct {
	client *Client
	kind   session.JobKind
}

func (p *jobProvider) Kind() session.JobKind { return p.kind }

func (p *jobProvider) Start(ctx context.Context, media analysis.Media) (string, error) {
	var out api.StartJobResponse
	err := p.client.doJSON(ctx, "start "+p.kind.WireName(), http.MethodPost,
		"/api/analysis/start/"+p.kind.WireName(),
		api.StartAnalysisRequest{S3Key: media.Key, Bucket: media.Bucket, LanguageCode: media.LanguageHint}, &out)
	if err != nil {
		return "", err
	}
	if out.Job.Status == api.StatusFailed {
		return "", services.Wrap(services.ErrExternalTool, "backend", "start "+p.kind.WireName(), out.Job.Error, nil)
	}
	if out.Job.JobID == "" {
		return "", errors.New("start " + p.kind.WireName() + ": server returned no job id")
	}
	return out.Job.JobID, nil
}

func (p *jobProvider) Status(ctx context.Context, handle string) (analysis.Status, error) {
	var out api.JobStatusResponse
	op := "status " + p.kind.WireName()
	err := p.client.doJSON(ctx, op, http.MethodGet,
		"/api/analysis/status/"+p.kind.WireName()+"/"+url.PathEscape(handle), nil, &out)
	if err != nil {
		return analysis.Status{}, err
	}
	state, ok := api.ToJobStatus(out.Result.Status)
	if !ok {
		return analysis.Status{}, services.Wrap(services.ErrTransient, "backend", op, "status query failed: "+out.Result.Error, nil)
	}
	status := analysis.Status{State: state, Reason: out.Result.Error}
	if state != session.JobSucceeded {
		return status, nil
	}
	switch p.kind {
	case session.JobTranscription:
		status.Transcription = &session.TranscriptionResult{
			ResultURI:   out.Result.TranscriptURI,
			Language:    out.Result.LanguageCode,
			CompletedAt: out.Result.CompletionTime,
		}
	case session.JobFace:
		faces := api.FacesFromWire(out.Result.Faces)
		status.Faces = &session.FaceResult{Total: max(out.Result.FaceCount, len(faces)), Faces: faces}
	case session.JobSegment:
		segments := api.SegmentsFromWire(out.Result.Segments)
		status.Segments = &session.SegmentResult{Total: max(out.Result.SegmentCount, len(segments)), Segments: segments}
	}
	return status, nil
}
