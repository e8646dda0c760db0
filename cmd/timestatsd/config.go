package main

type (
	ServiceConfig struct {
		Environment string `env:"TIMESTATS_ENVIRONMENT" env-default:"development"`

		SentryDSN string `env:"SENTRY_DSN"`

		Port string `env:"PORT" env-default:"8080"`

		// BucketURL is a gocloud.dev URL, gs://bucket or file:///path.
		BucketURL string `env:"TIMESTATS_BUCKET_URL"`

		KafkaBrokers []string `env:"TIMESTATS_KAFKA_BROKERS" env-separator:","`
		KafkaTopic   string   `env:"TIMESTATS_KAFKA_TOPIC" env-default:"timestats-snapshots"`

		// ExportSchedule is a cron spec, exports are disabled when empty.
		ExportSchedule string `env:"TIMESTATS_EXPORT_SCHEDULE" env-default:"@every 1m"`

		ReplayFile    string `env:"TIMESTATS_REPLAY_FILE"`
		EnableOnStart bool   `env:"TIMESTATS_ENABLE_ON_START" env-default:"true"`

		LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	}
)
