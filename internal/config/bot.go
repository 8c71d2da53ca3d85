package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	Token            string `env:"DISCORD_TOKEN,required,notEmpty"`
	GuildID          string `env:"DISCORD_GUILD_ID,required,notEmpty"`
	LobbyCategoryID  string `env:"DISCORD_LOBBY_CATEGORY_ID"`
	CommandPrefix    string `env:"DISCORD_COMMAND_PREFIX" envDefault:"/"`
	LobbyChannelPref string `env:"DISCORD_LOBBY_CHANNEL_PREFIX" envDefault:"lobby-"`
	AutoCreate       bool   `env:"DISCORD_AUTO_CREATE" envDefault:"true"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
