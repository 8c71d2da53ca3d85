package config

import "github.com/caarlos0/env/v11"

// LogConfig drives the global zerolog logger. Service tags every line so
// bot and ops API logs can share a collector; DiscordLevel gates the
// discordgo library's own gateway chatter, which is noisy below warn.
type LogConfig struct {
	Level        string `env:"LOG_LEVEL" envDefault:"info"`
	Pretty       bool   `env:"LOG_PRETTY" envDefault:"false"`
	SampleEvery  int    `env:"LOG_SAMPLE_EVERY" envDefault:"0"`
	File         string `env:"LOG_FILE"`
	MaxMB        int    `env:"LOG_MAX_MB" envDefault:"10"`
	Service      string `env:"LOG_SERVICE" envDefault:"lobby-bot"`
	DiscordLevel string `env:"LOG_DISCORD_LEVEL" envDefault:"warn"`
}

func LoadLog() (LogConfig, error) {
	var cfg LogConfig
	err := env.Parse(&cfg)
	return cfg, err
}
