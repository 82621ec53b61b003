package daemon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crewbe/internal/analysis"
	"crewbe/internal/config"
	"crewbe/internal/logging"
	"crewbe/internal/services/awscloud"
	"crewbe/internal/session"
	"crewbe/internal/testsupport"
)

// memStorage keeps objects in memory and serves presigned PUTs from its own
// test server.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
	server  *httptest.Server
}

func newMemStorage(t *testing.T) *memStorage {
	t.Helper()
	m := &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		data, _ := io.ReadAll(r.Body)
		m.store(strings.TrimPrefix(r.URL.Path, "/"), r.Header.Get("Content-Type"), data)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *memStorage) store(key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
}

func (m *memStorage) object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *memStorage) Bucket() string { return "interviews" }

func (m *memStorage) PresignPut(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	return m.server.URL + "/" + key + "?expires=" + ttl.String(), nil
}

func (m *memStorage) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	if m.putErr != nil {
		return m.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.store(key, contentType, buf.Bytes())
	return nil
}

func (m *memStorage) Head(_ context.Context, key string) (awscloud.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return awscloud.ObjectInfo{}, nil
	}
	return awscloud.ObjectInfo{
		Exists:       true,
		Size:         int64(len(data)),
		LastModified: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ContentType:  m.types[key],
	}, nil
}

type stubProvider struct {
	kind      session.JobKind
	startErr  error
	status    analysis.Status
	statusErr error

	mu      sync.Mutex
	started []analysis.Media
}

func (p *stubProvider) Kind() session.JobKind { return p.kind }

func (p *stubProvider) Start(_ context.Context, media analysis.Media) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return "", p.startErr
	}
	p.started = append(p.started, media)
	return string(p.kind) + "-job", nil
}

func (p *stubProvider) Status(context.Context, string) (analysis.Status, error) {
	return p.status, p.statusErr
}

func (p *stubProvider) media() []analysis.Media {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]analysis.Media(nil), p.started...)
}

type stubSet struct {
	stt, face, segment *stubProvider
}

func newStubSet() stubSet {
	faces := make([]session.FaceDetection, 7)
	for i := range faces {
		faces[i] = session.FaceDetection{TimestampMillis: int64(i * 100), Confidence: 99}
	}
	segments := make([]session.Segment, 12)
	for i := range segments {
		segments[i] = session.Segment{Type: "SHOT", StartTimestampMillis: int64(i * 1000), EndTimestampMillis: int64(i*1000 + 900)}
	}
	return stubSet{
		stt: &stubProvider{kind: session.JobTranscription, status: analysis.Status{
			State:         session.JobSucceeded,
			Transcription: &session.TranscriptionResult{ResultURI: "https://out/t.json", Language: "ko-KR"},
		}},
		face: &stubProvider{kind: session.JobFace, status: analysis.Status{
			State: session.JobSucceeded,
			Faces: &session.FaceResult{Total: 7, Faces: faces},
		}},
		segment: &stubProvider{kind: session.JobSegment, status: analysis.Status{
			State:    session.JobSucceeded,
			Segments: &session.SegmentResult{Total: 12, Segments: segments},
		}},
	}
}

func (s stubSet) providers() analysis.Providers {
	return analysis.Providers{Transcription: s.stt, Face: s.face, Segment: s.segment}
}

type fixture struct {
	cfg     *config.Config
	storage *memStorage
	stubs   stubSet
	srv     *apiServer
	http    *httptest.Server
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	for _, fn := range mutate {
		fn(cfg)
	}
	f := &fixture{cfg: cfg, storage: newMemStorage(t), stubs: newStubSet()}
	f.srv = newAPIServer(cfg, f.storage, f.stubs.providers(), logging.NewNop())
	f.http = httptest.NewServer(f.srv.routes())
	t.Cleanup(f.http.Close)
	return f
}

var errBoom = errors.New("boom")
