package config

// Default 返回全部默认值，阈值与 keying.DefaultThresholds 一致
func Default() Config {
	return Config{
		Server: Server{
			Bind:           "127.0.0.1:8080",
			MaxUploadBytes: 32 << 20,
			RequestTimeout: 180,
		},
		Isolation: Isolation{
			Provider:     "gemini",
			Model:        "gemini-2.5-flash-image",
			Endpoint:     "https://generativelanguage.googleapis.com/v1beta",
			Timeout:      120,
			MaxInputSize: 1024,
		},
		Keying: Keying{
			Detector:          "corner",
			BorderWidth:       4,
			MagentaMinRB:      180,
			MagentaMaxG:       80,
			HardCutMinRB:      120,
			HardCutMaxG:       100,
			HardCutBalance:    60,
			DespillOffset:     20,
			FallbackTolerance: 60,
		},
		Export: Export{
			Sink:           "file",
			Dir:            "./output",
			RetentionHours: 24,
			SweepSchedule:  "@every 1h",
		},
		Azure: Azure{
			Container: "removebg-exports",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
