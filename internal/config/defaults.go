package config

// Default returns a Config populated with the built-in defaults. Paths are
// left in tilde form; Load expands them during normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:   "~/fhirhose/inbox",
			StagingDir: "~/fhirhose/staging",
			BundlesDir: "~/fhirhose/bundles",
			ArchiveDir: "~/fhirhose/archive",
			LogDir:     "~/fhirhose/logs",
		},
		Classifier: Classifier{
			FileBinary:     "file",
			TimeoutSeconds: 30,
		},
		Extraction: Extraction{
			PdftotextBinary:   "pdftotext",
			GhostscriptBinary: "gs",
			TesseractBinary:   "tesseract",
			RasterDPI:         600,
			OCRLanguage:       "eng",
			TimeoutSeconds:    600,
		},
		Mapper: Mapper{
			Endpoint:       "",
			TimeoutSeconds: 60,
		},
		Validation: Validation{
			Endpoint:       "",
			TimeoutSeconds: 5,
		},
		Bundle: Bundle{
			Type: "collection",
		},
		Notifications: Notifications{
			NtfyTopic:      "",
			RequestTimeout: 10,
			Queue:          true,
			Bundles:        true,
			Review:         true,
			Errors:         true,
		},
		Workflow: Workflow{
			QueuePollInterval:     5,
			ErrorRetryInterval:    10,
			HeartbeatInterval:     15,
			HeartbeatTimeout:      120,
			InboxPollInterval:     5,
			InboxSettleSeconds:    2,
			StagingRetentionHours: 72,
		},
		Logging: Logging{
			Format:        "console",
			Level:         "info",
			RetentionDays: 30,
		},
	}
}
