package config

const (
	defaultOutputDir           = "~/Pictures/heifconv"
	defaultLogDir              = "~/.local/share/heifconv/logs"
	defaultCodecBinary         = "heif-convert"
	defaultCodecQuality        = 100
	defaultCodecProbeTimeout   = 10
	defaultWorkflowMaxInFlight = 1
	defaultWorkflowItemTimeout = 120
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
//
// The dispatch policy defaults to strictly serial (max_in_flight = 1) so peak
// memory is bounded to one decoded image at a time.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Codec: Codec{
			Binary:       defaultCodecBinary,
			Quality:      defaultCodecQuality,
			ProbeTimeout: defaultCodecProbeTimeout,
		},
		Workflow: Workflow{
			MaxInFlight: defaultWorkflowMaxInFlight,
			ItemTimeout: defaultWorkflowItemTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
