package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeUpload()
	c.normalizeStorage()
	if err := c.normalizeAnalysis(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SpoolDir) == "" {
		c.Paths.SpoolDir = defaultSpoolDir
	}
	if c.Paths.SpoolDir, err = expandPath(c.Paths.SpoolDir); err != nil {
		return fmt.Errorf("paths.spool_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CREWBE_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.Device = strings.TrimSpace(c.Capture.Device)
	c.Capture.AudioDevice = strings.TrimSpace(c.Capture.AudioDevice)
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	if c.Capture.FFmpegBinary == "" {
		c.Capture.FFmpegBinary = defaultFFmpegBinary
	}
	c.Capture.InputFormat = strings.ToLower(strings.TrimSpace(c.Capture.InputFormat))
	if c.Capture.InputFormat == "" {
		c.Capture.InputFormat = defaultInputFormat
	}
	c.Capture.ContentType = strings.ToLower(strings.TrimSpace(c.Capture.ContentType))
	if c.Capture.ContentType == "" {
		c.Capture.ContentType = defaultContentType
	}
}

func (c *Config) normalizeUpload() {
	c.Upload.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Upload.APIBaseURL), "/")
	if c.Upload.APIBaseURL == "" {
		c.Upload.APIBaseURL = defaultAPIBaseURL
	}
	if c.Upload.SimulatedDelayMilli < 0 {
		c.Upload.SimulatedDelayMilli = 0
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
		if c.Storage.Region == "" || c.Storage.Region == defaultRegion {
			c.Storage.Region = strings.TrimSpace(value)
		}
	}
	if c.Storage.Region == "" {
		c.Storage.Region = defaultRegion
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if value, ok := os.LookupEnv("AWS_S3_RECORDING_BUCKET"); ok && strings.TrimSpace(value) != "" {
		if c.Storage.Bucket == "" || c.Storage.Bucket == defaultBucket {
			c.Storage.Bucket = strings.TrimSpace(value)
		}
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = defaultBucket
	}
	c.Storage.KeyPrefix = strings.Trim(strings.TrimSpace(c.Storage.KeyPrefix), "/")
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = defaultKeyPrefix
	}
	c.Storage.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.Endpoint), "/")
}

func (c *Config) normalizeAnalysis() error {
	c.Analysis.OutputBucket = strings.TrimSpace(c.Analysis.OutputBucket)
	if c.Analysis.OutputBucket == "" {
		c.Analysis.OutputBucket = defaultOutputBucket
	}
	lang := strings.TrimSpace(c.Analysis.Language)
	if lang == "" {
		lang = defaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("analysis.language: %w", err)
	}
	c.Analysis.Language = tag.String()
	c.Analysis.MediaFormat = strings.ToLower(strings.TrimSpace(c.Analysis.MediaFormat))
	if c.Analysis.MediaFormat == "" {
		c.Analysis.MediaFormat = defaultMediaFormat
	}
	types := make([]string, 0, len(c.Analysis.SegmentTypes))
	seen := make(map[string]struct{}, len(c.Analysis.SegmentTypes))
	for _, value := range c.Analysis.SegmentTypes {
		value = strings.ToUpper(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		types = append(types, value)
	}
	if len(types) == 0 {
		types = []string{defaultSegmentTypeTechnicalCue, defaultSegmentTypeShot}
	}
	c.Analysis.SegmentTypes = types
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("CREWBE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
