package config

import "github.com/caarlos0/env/v11"

type BoardConfig struct {
	Enabled          bool   `env:"LOBBY_BOARD_ENABLED" envDefault:"false"`
	ConfigPath       string `env:"LOBBY_BOARD_CONFIG_PATH"`
	ConfigJSON       string `env:"LOBBY_BOARD_CONFIG_JSON"`
	ConfigReloadMS   int    `env:"LOBBY_BOARD_CONFIG_RELOAD_MS" envDefault:"1000"`
	Workers          int    `env:"LOBBY_BOARD_WORKERS" envDefault:"2"`
	RetryMax         int    `env:"LOBBY_BOARD_RETRY_MAX" envDefault:"3"`
	RetryBaseMS      int    `env:"LOBBY_BOARD_RETRY_BASE_MS" envDefault:"500"`
	FlushIntervalMS  int    `env:"LOBBY_BOARD_FLUSH_MS" envDefault:"1000"`
	RequestTimeoutMS int    `env:"LOBBY_BOARD_REQUEST_TIMEOUT_MS" envDefault:"5000"`
}

func LoadBoard() (BoardConfig, error) {
	var cfg BoardConfig
	err := env.Parse(&cfg)
	return cfg, err
}
