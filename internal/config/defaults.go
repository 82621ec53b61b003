package config

const (
	defaultConfigPath              = "~/.config/crewbe/config.toml"
	defaultStateDir                = "~/.local/share/crewbe"
	defaultLogDir                  = "~/.local/share/crewbe/logs"
	defaultSpoolDir                = "~/.local/share/crewbe/spool"
	defaultAPIBind                 = "127.0.0.1:3000"
	defaultCaptureDevice           = "/dev/video0"
	defaultFFmpegBinary            = "ffmpeg"
	defaultInputFormat             = "v4l2"
	defaultContentType             = "video/webm"
	defaultChunkIntervalMS         = 1000
	defaultMaxDurationSeconds      = 600
	defaultVideoBitrateKbps        = 1000
	defaultAudioBitrateKbps        = 128
	defaultAPIBaseURL              = "http://localhost:3000"
	defaultRequestTimeout          = 60
	defaultCredentialTTL           = 3600
	defaultMaxUploadMiB            = 100
	defaultSimulatedDelayMilli     = 1500
	defaultRegion                  = "ap-northeast-2"
	defaultBucket                  = "flight-attendant-recordings"
	defaultKeyPrefix               = "videos"
	defaultOutputBucket            = "crewbe-analysis-results"
	defaultLanguage                = "ko-KR"
	defaultMediaFormat             = "webm"
	defaultMaxSpeakerLabels        = 2
	defaultPollInterval            = 5
	defaultAnalysisTimeout         = 1800
	defaultMaxFaces                = 5
	defaultMaxSegments             = 10
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultSegmentTypeTechnicalCue = "TECHNICAL_CUE"
	defaultSegmentTypeShot         = "SHOT"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			SpoolDir: defaultSpoolDir,
			APIBind:  defaultAPIBind,
		},
		Capture: Capture{
			Device:             defaultCaptureDevice,
			FFmpegBinary:       defaultFFmpegBinary,
			InputFormat:        defaultInputFormat,
			ContentType:        defaultContentType,
			ChunkIntervalMS:    defaultChunkIntervalMS,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			VideoBitrateKbps:   defaultVideoBitrateKbps,
			AudioBitrateKbps:   defaultAudioBitrateKbps,
			WatchHotplug:       true,
		},
		Upload: Upload{
			APIBaseURL:          defaultAPIBaseURL,
			RequestTimeout:      defaultRequestTimeout,
			CredentialTTL:       defaultCredentialTTL,
			MaxUploadMiB:        defaultMaxUploadMiB,
			SimulatedDelayMilli: defaultSimulatedDelayMilli,
		},
		Storage: Storage{
			Region:    defaultRegion,
			Bucket:    defaultBucket,
			KeyPrefix: defaultKeyPrefix,
		},
		Analysis: Analysis{
			OutputBucket:     defaultOutputBucket,
			Language:         defaultLanguage,
			MediaFormat:      defaultMediaFormat,
			MaxSpeakerLabels: defaultMaxSpeakerLabels,
			SegmentTypes:     []string{defaultSegmentTypeTechnicalCue, defaultSegmentTypeShot},
			PollInterval:     defaultPollInterval,
			Timeout:          defaultAnalysisTimeout,
			MaxFaces:         defaultMaxFaces,
			MaxSegments:      defaultMaxSegments,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Done:           true,
			Failed:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
