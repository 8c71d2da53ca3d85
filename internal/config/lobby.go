package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type LobbyConfig struct {
	Capacity       int           `env:"LOBBY_CAPACITY" envDefault:"3"`
	EmptyGrace     time.Duration `env:"LOBBY_EMPTY_GRACE" envDefault:"5m"`
	SweepInterval  time.Duration `env:"LOBBY_SWEEP_INTERVAL" envDefault:"5m"`
	IdleThreshold  time.Duration `env:"LOBBY_IDLE_THRESHOLD" envDefault:"2h"`
	MatchTTL       time.Duration `env:"LOBBY_MATCH_TTL" envDefault:"5m"`
	EndDelay       time.Duration `env:"LOBBY_END_DELAY" envDefault:"10s"`
	GatewayTimeout time.Duration `env:"LOBBY_GATEWAY_TIMEOUT" envDefault:"10s"`
	Recover        bool          `env:"LOBBY_RECOVER" envDefault:"true"`
}

func LoadLobby() (LobbyConfig, error) {
	var cfg LobbyConfig
	err := env.Parse(&cfg)
	return cfg, err
}
