package config

import "github.com/caarlos0/env/v11"

// JournalConfig enables the lobby event journal. Each sink is optional and
// stays off while its address is empty.
type JournalConfig struct {
	PostgresDSN   string `env:"POSTGRES_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	Queue         string `env:"JOURNAL_QUEUE" envDefault:"lobby:events"`
	Buffer        int    `env:"JOURNAL_BUFFER" envDefault:"1024"`
}

func (c JournalConfig) Enabled() bool {
	return c.PostgresDSN != "" || c.RedisAddr != ""
}

func LoadJournal() (JournalConfig, error) {
	var cfg JournalConfig
	err := env.Parse(&cfg)
	return cfg, err
}
