package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nightreign-lobby/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func configForTest(file string) config.LogConfig {
	return config.LogConfig{Level: "debug", File: file, MaxMB: 1}
}

func TestInitSetsGlobalLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Init(config.LogConfig{Level: "warn"})
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Fatalf("global level = %v, want warn", zerolog.GlobalLevel())
	}

	Init(config.LogConfig{Level: "not-a-level"})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info fallback", zerolog.GlobalLevel())
	}
}

func TestInitTagsService(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	path := filepath.Join(t.TempDir(), "service.log")
	cfg := configForTest(path)
	cfg.Service = "lobby-bot"
	Init(cfg)
	defer Close()

	log.Info().Str("lobby_id", "chan-1").Msg("lobby created")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"service":"lobby-bot"`) {
		t.Fatalf("log line missing service tag: %s", raw)
	}
	if !strings.Contains(string(raw), `"lobby_id":"chan-1"`) {
		t.Fatalf("log line missing lobby_id: %s", raw)
	}
}
