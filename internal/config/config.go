package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	SpoolDir string `toml:"spool_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Capture contains configuration for the local recording device.
type Capture struct {
	// Device is a V4L2 path (/dev/video0), or "file:<path>" to replay a
	// pre-recorded clip at the chunk cadence.
	Device             string `toml:"device"`
	AudioDevice        string `toml:"audio_device"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	InputFormat        string `toml:"input_format"`
	ContentType        string `toml:"content_type"`
	ChunkIntervalMS    int    `toml:"chunk_interval_ms"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	VideoBitrateKbps   int    `toml:"video_bitrate_kbps"`
	AudioBitrateKbps   int    `toml:"audio_bitrate_kbps"`
	WatchHotplug       bool   `toml:"watch_hotplug"`
}

// Upload contains configuration for the upload coordinator.
type Upload struct {
	APIBaseURL          string `toml:"api_base_url"`
	RequestTimeout      int    `toml:"request_timeout"`
	CredentialTTL       int    `toml:"credential_ttl_seconds"`
	MaxUploadMiB        int    `toml:"max_upload_mib"`
	SimulateOnFailure   bool   `toml:"simulate_on_failure"`
	SimulatedDelayMilli int    `toml:"simulated_delay_ms"`
}

// Storage contains object storage settings used by the daemon.
type Storage struct {
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	KeyPrefix string `toml:"key_prefix"`
	Endpoint  string `toml:"endpoint"`
}

// Analysis contains configuration for the three remote analysis jobs.
type Analysis struct {
	OutputBucket     string   `toml:"output_bucket"`
	Language         string   `toml:"language"`
	MediaFormat      string   `toml:"media_format"`
	MaxSpeakerLabels int      `toml:"max_speaker_labels"`
	SegmentTypes     []string `toml:"segment_types"`
	PollInterval     int      `toml:"poll_interval"`
	Timeout          int      `toml:"timeout"`
	MaxFaces         int      `toml:"max_faces"`
	MaxSegments      int      `toml:"max_segments"`
}

// Candidate identifies the person being recorded; it is copied into reports.
type Candidate struct {
	Name    string `toml:"name"`
	Airline string `toml:"airline"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Done           bool   `toml:"done"`
	Failed         bool   `toml:"failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for crewbe.
//
// Configuration sections by subsystem:
//   - Paths: state/log/spool directories and the daemon API bind address
//   - Capture: recording device and chunk cadence
//   - Upload: crewbe API endpoint and degraded-mode switch
//   - Storage: bucket/region used by the daemon for object writes
//   - Analysis: transcription/face/segment job settings and polling
//   - Candidate: identity stamped into reports
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Upload        Upload        `toml:"upload"`
	Storage       Storage       `toml:"storage"`
	Analysis      Analysis      `toml:"analysis"`
	Candidate     Candidate     `toml:"candidate"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crewbe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for CLI and daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.SpoolDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDBPath returns the SQLite database that stores session history.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "crewbed.lock")
}

// ChunkInterval returns the recorder chunk cadence.
func (c *Config) ChunkInterval() time.Duration {
	return time.Duration(c.Capture.ChunkIntervalMS) * time.Millisecond
}

// MaxRecording returns the recording ceiling; zero disables it.
func (c *Config) MaxRecording() time.Duration {
	return time.Duration(c.Capture.MaxDurationSeconds) * time.Second
}

// PollInterval returns the fixed analysis status polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Analysis.PollInterval) * time.Second
}

// AnalysisTimeout returns the ceiling on total analysis wait time.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.Timeout) * time.Second
}

// RequestTimeout returns the per-request timeout for crewbe API calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Upload.RequestTimeout) * time.Second
}

// CredentialTTL returns how long an issued write credential stays valid.
func (c *Config) CredentialTTL() time.Duration {
	return time.Duration(c.Upload.CredentialTTL) * time.Second
}

// MaxUploadBytes returns the proxied upload size ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxUploadMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
