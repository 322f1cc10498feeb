// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package main

import (
	"testing"
	"time"

	"github.com/tomtom215/addonrail/internal/config"
)

func TestNatsPort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want int
	}{
		{"nats://127.0.0.1:4333", 4333},
		{"nats://broker", defaultNATSPort},
		{"", defaultNATSPort},
		{"::bad", defaultNATSPort},
	}
	for _, tt := range tests {
		if got := natsPort(tt.url); got != tt.want {
			t.Errorf("natsPort(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestReloadInterval(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Artifacts.ReloadInterval = time.Minute
	cfg.Catalog.RefreshInterval = 5 * time.Minute
	if got := reloadInterval(cfg); got != time.Minute {
		t.Errorf("reloadInterval() = %v, want 1m", got)
	}

	cfg.Catalog.RefreshInterval = 20 * time.Second
	if got := reloadInterval(cfg); got != 20*time.Second {
		t.Errorf("reloadInterval() = %v, want 20s", got)
	}

	cfg.Artifacts.ReloadInterval = 0
	cfg.Catalog.RefreshInterval = 0
	if got := reloadInterval(cfg); got != 0 {
		t.Errorf("reloadInterval() = %v, want 0 (service default)", got)
	}
}

func TestMintToken_RequiresSecret(t *testing.T) {
	t.Parallel()

	if code := mintToken(nil, "ops"); code != 1 {
		t.Errorf("mintToken(nil) = %d, want 1", code)
	}
}
