package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"crewbe/internal/analysis"
	"crewbe/internal/config"
	"crewbe/internal/daemon"
	"crewbe/internal/logging"
	"crewbe/internal/services/awscloud"
	"crewbe/internal/session"
	"crewbe/internal/testsupport"
)

const testToken = "cli-test-token"

type cliTestEnv struct {
	cfg        *config.Config
	storage    *memStorage
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv starts an in-process crewbed with in-memory storage and
// instant analysis results, and writes a config that points the CLI at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	cfg := testsupport.NewConfig(t, testsupport.WithFixtureClip(16*1024))
	cfg.Paths.APIToken = testToken
	cfg.Capture.ChunkIntervalMS = 50
	cfg.Analysis.PollInterval = 1
	cfg.Analysis.Timeout = 30
	cfg.Logging.Level = "error"

	storage := newMemStorage(t)
	d, err := daemon.New(cfg, storage, instantProviders(), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)
	cfg.Upload.APIBaseURL = "http://" + d.Status().Address

	configPath := filepath.Join(base, "crewbe.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, storage: storage, daemon: d, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// memStorage keeps objects in memory and accepts presigned PUTs on its own
// test server.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	server  *httptest.Server
}

func newMemStorage(t *testing.T) *memStorage {
	t.Helper()
	m := &memStorage{objects: map[string][]byte{}}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		m.store(strings.TrimPrefix(r.URL.Path, "/"), data)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *memStorage) store(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

func (m *memStorage) Bucket() string { return "interviews" }

func (m *memStorage) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return m.server.URL + "/" + key, nil
}

func (m *memStorage) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.store(key, data)
	return nil
}

func (m *memStorage) Head(_ context.Context, key string) (awscloud.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return awscloud.ObjectInfo{}, nil
	}
	return awscloud.ObjectInfo{Exists: true, Size: int64(len(data)), LastModified: time.Now()}, nil
}

type instantProvider struct {
	kind   session.JobKind
	status analysis.Status
}

func (p instantProvider) Kind() session.JobKind { return p.kind }

func (p instantProvider) Start(context.Context, analysis.Media) (string, error) {
	return string(p.kind) + "-job", nil
}

func (p instantProvider) Status(context.Context, string) (analysis.Status, error) {
	return p.status, nil
}

func instantProviders() analysis.Providers {
	faces := make([]session.FaceDetection, 3)
	for i := range faces {
		faces[i] = session.FaceDetection{TimestampMillis: int64(i * 500), Confidence: 98}
	}
	return analysis.Providers{
		Transcription: instantProvider{kind: session.JobTranscription, status: analysis.Status{
			State:         session.JobSucceeded,
			Transcription: &session.TranscriptionResult{ResultURI: "https://results/transcript.json", Language: "ko-KR"},
		}},
		Face: instantProvider{kind: session.JobFace, status: analysis.Status{
			State: session.JobSucceeded,
			Faces: &session.FaceResult{Total: 3, Faces: faces},
		}},
		Segment: instantProvider{kind: session.JobSegment, status: analysis.Status{
			State:    session.JobSucceeded,
			Segments: &session.SegmentResult{Total: 4, Segments: []session.Segment{{Type: "SHOT", EndTimestampMillis: 900}}},
		}},
	}
}
