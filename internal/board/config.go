package board

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"nightreign-lobby/internal/config"

	"github.com/samber/lo"
)

func ConfigFromEnv(cfg config.BoardConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.Enabled,
		ConfigPath:          strings.TrimSpace(cfg.ConfigPath),
		ConfigReload:        time.Duration(cfg.ConfigReloadMS) * time.Millisecond,
		Workers:             cfg.Workers,
		RetryMax:            cfg.RetryMax,
		RetryBase:           time.Duration(cfg.RetryBaseMS) * time.Millisecond,
		FlushInterval:       time.Duration(cfg.FlushIntervalMS) * time.Millisecond,
		RecentEvents:        5,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		DispatchBuffer:      1024,
	}
	if !out.Enabled {
		return out, nil
	}

	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}
	if out.FlushInterval <= 0 {
		out.FlushInterval = time.Second
	}
	if out.ConfigReload <= 0 {
		out.ConfigReload = time.Second
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = 5 * time.Second
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

func loadTargetsJSON(cfg config.BoardConfig) (string, error) {
	path := strings.TrimSpace(cfg.ConfigPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read board config path %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.ConfigJSON), nil
}

func parseTargetsJSON(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse board targets: %w", err)
	}
	return lo.FilterMap(targets, func(t Target, _ int) (Target, bool) {
		t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
		if t.Platform == "" {
			t.Platform = "discord"
		}
		t.ScopeType = strings.ToLower(strings.TrimSpace(t.ScopeType))
		if t.ScopeType == "" {
			t.ScopeType = ScopeAll
		}
		if !lo.Contains([]string{ScopeAll, ScopeOrigin, ScopeLobby}, t.ScopeType) {
			return t, false
		}
		t.Endpoint = strings.TrimSpace(t.Endpoint)
		t.ThreadID = strings.TrimSpace(t.ThreadID)
		t.ScopeValue = strings.TrimSpace(t.ScopeValue)
		for i := range t.EventAllowlist {
			t.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(t.EventAllowlist[i]))
		}
		return t, t.Endpoint != "" && t.Enabled
	}), nil
}
