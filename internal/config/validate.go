package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCapture() error {
	if c.Capture.Device == "" {
		return errors.New("capture.device must be set (a /dev/video* path or file:<clip>)")
	}
	if !strings.HasPrefix(c.Capture.ContentType, "video/") {
		return fmt.Errorf("capture.content_type must be a video/* media type, got %q", c.Capture.ContentType)
	}
	if c.Capture.MaxDurationSeconds < 0 {
		return errors.New("capture.max_duration_seconds must be zero or positive")
	}
	return ensurePositiveMap(map[string]int{
		"capture.chunk_interval_ms":  c.Capture.ChunkIntervalMS,
		"capture.video_bitrate_kbps": c.Capture.VideoBitrateKbps,
		"capture.audio_bitrate_kbps": c.Capture.AudioBitrateKbps,
	})
}

func (c *Config) validateUpload() error {
	parsed, err := url.Parse(c.Upload.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("upload.api_base_url must be an absolute URL, got %q", c.Upload.APIBaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("upload.api_base_url must use http or https, got %q", parsed.Scheme)
	}
	return ensurePositiveMap(map[string]int{
		"upload.request_timeout":        c.Upload.RequestTimeout,
		"upload.credential_ttl_seconds": c.Upload.CredentialTTL,
		"upload.max_upload_mib":         c.Upload.MaxUploadMiB,
	})
}

func (c *Config) validateStorage() error {
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set")
	}
	if strings.Contains(c.Storage.KeyPrefix, "..") {
		return fmt.Errorf("storage.key_prefix must not contain '..', got %q", c.Storage.KeyPrefix)
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MaxSpeakerLabels < 2 || c.Analysis.MaxSpeakerLabels > 10 {
		return errors.New("analysis.max_speaker_labels must be between 2 and 10")
	}
	for _, value := range c.Analysis.SegmentTypes {
		switch value {
		case defaultSegmentTypeTechnicalCue, defaultSegmentTypeShot:
		default:
			return fmt.Errorf("analysis.segment_types: unsupported segment type %q", value)
		}
	}
	switch c.Analysis.MediaFormat {
	case "webm", "mp4", "mov":
	default:
		return fmt.Errorf("analysis.media_format: unsupported format %q", c.Analysis.MediaFormat)
	}
	if err := ensurePositiveMap(map[string]int{
		"analysis.poll_interval": c.Analysis.PollInterval,
		"analysis.timeout":       c.Analysis.Timeout,
		"analysis.max_faces":     c.Analysis.MaxFaces,
		"analysis.max_segments":  c.Analysis.MaxSegments,
	}); err != nil {
		return err
	}
	if c.Analysis.Timeout < c.Analysis.PollInterval {
		return errors.New("analysis.timeout must be at least analysis.poll_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
