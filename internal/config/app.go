package config

type AppConfig struct {
	Bot     BotConfig
	Lobby   LobbyConfig
	Server  ServerConfig
	Board   BoardConfig
	Journal JournalConfig
	Log     LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	botCfg, err := LoadBot()
	if err != nil {
		return AppConfig{}, err
	}
	lobbyCfg, err := LoadLobby()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	boardCfg, err := LoadBoard()
	if err != nil {
		return AppConfig{}, err
	}
	journalCfg, err := LoadJournal()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Bot:     botCfg,
		Lobby:   lobbyCfg,
		Server:  serverCfg,
		Board:   boardCfg,
		Journal: journalCfg,
		Log:     logCfg,
	}, nil
}
