package config

import "testing"

func TestLoadJournalDisabledByDefault(t *testing.T) {
	cfg, err := LoadJournal()
	if err != nil {
		t.Fatalf("LoadJournal() error = %v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("Enabled() = true, want false for %+v", cfg)
	}
	if cfg.Queue != "lobby:events" {
		t.Fatalf("Queue = %q, want lobby:events", cfg.Queue)
	}
}

func TestLoadJournalRedisOnly(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := LoadJournal()
	if err != nil {
		t.Fatalf("LoadJournal() error = %v", err)
	}
	if !cfg.Enabled() || cfg.RedisDB != 2 || cfg.PostgresDSN != "" {
		t.Fatalf("unexpected journal config: %+v", cfg)
	}
}

func TestLoadBoardDefaults(t *testing.T) {
	cfg, err := LoadBoard()
	if err != nil {
		t.Fatalf("LoadBoard() error = %v", err)
	}
	if cfg.Enabled {
		t.Fatal("Enabled = true, want false")
	}
	if cfg.Workers != 2 || cfg.RetryMax != 3 || cfg.FlushIntervalMS != 1000 {
		t.Fatalf("unexpected board config: %+v", cfg)
	}
}
