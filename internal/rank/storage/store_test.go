// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package storage

import (
	"context"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates directory if not exists",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "new_dir")
			},
		},
		{
			name: "uses existing directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store, err := NewStore(tt.setup(t))
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			if store == nil {
				t.Fatal("NewStore() returned nil store without error")
			}
		})
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	head := HeadState{
		Name:    "accept",
		Link:    LinkLogistic,
		Bias:    -0.4,
		Weights: map[string]float64{"pairing_score": 1.2, "gap_beverage": 0.6},
	}
	if err := store.Save(ctx, HeadArtifact("accept"), 1, head, Metadata{TrainedAt: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var loaded HeadState
	meta, err := store.Load(ctx, "head_accept", 0, &loaded)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if meta.Version != 1 || meta.Checksum == "" || meta.SizeBytes == 0 {
		t.Errorf("metadata = %+v, want version 1 with checksum and size", meta)
	}
	if loaded.Bias != head.Bias || loaded.Weights["pairing_score"] != 1.2 {
		t.Errorf("loaded = %+v, want %+v", loaded, head)
	}
}

func TestStore_LatestVersionAndRescan(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	for v := 1; v <= 3; v++ {
		table := EmbeddingTable{Dim: 2, Vectors: map[string][]float32{"I001": {float32(v), 0}}}
		if err := store.Save(ctx, ArtifactEmbeddings, v, table, Metadata{}); err != nil {
			t.Fatalf("Save(v%d) error = %v", v, err)
		}
	}

	if v, ok := store.LatestVersion(ArtifactEmbeddings); !ok || v != 3 {
		t.Errorf("LatestVersion() = %d, %v; want 3, true", v, ok)
	}

	// A second store over the same directory sees the files on startup.
	other, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	var table EmbeddingTable
	if _, err := other.Load(ctx, ArtifactEmbeddings, 0, &table); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.Vectors["I001"][0] != 3 {
		t.Errorf("loaded version payload = %v, want latest", table.Vectors["I001"])
	}
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	var hs HeadState
	_, err = store.Load(context.Background(), "head_accept", 0, &hs)
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("Load() error = %v, want ErrArtifactNotFound", err)
	}
	_, err = store.Load(context.Background(), "head_accept", 7, &hs)
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("Load(v7) error = %v, want ErrArtifactNotFound", err)
	}
}

func TestStore_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "head_aov", 1, HeadState{Name: "aov", Link: LinkIdentity}, Metadata{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Rewrite the file with a tampered checksum.
	path := filepath.Join(dir, "head_aov_v1.gob.gz")
	sf, err := readStoredFile(path)
	if err != nil {
		t.Fatalf("readStoredFile() error = %v", err)
	}
	sf.Metadata.Checksum = "deadbeef"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := gob.NewEncoder(f).Encode(sf); err != nil {
		t.Fatalf("encode error = %v", err)
	}
	_ = f.Close()

	var hs HeadState
	if _, err := store.Load(ctx, "head_aov", 1, &hs); err == nil {
		t.Error("Load() succeeded with a tampered checksum")
	}
}

func TestStore_Prune(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	for v := 1; v <= 4; v++ {
		if err := store.Save(ctx, "head_timing", v, HeadState{Name: "timing", Link: LinkLogistic}, Metadata{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	removed, err := store.Prune(ctx, "head_timing", 2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed %d, want 2", removed)
	}

	var hs HeadState
	if _, err := store.Load(ctx, "head_timing", 1, &hs); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("Load(v1) after prune error = %v, want ErrArtifactNotFound", err)
	}
	if _, err := store.Load(ctx, "head_timing", 4, &hs); err != nil {
		t.Errorf("Load(v4) after prune error = %v", err)
	}
}

func TestParseFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		name    string
		version int
		ok      bool
	}{
		{"head_accept_v3.gob.gz", "head_accept", 3, true},
		{"item_embeddings_v12.gob.gz", "item_embeddings", 12, true},
		{"trajectory_encoder_v0.gob.gz", "", 0, false},
		{"head_accept.gob.gz", "", 0, false},
		{"head_accept_v1.json", "", 0, false},
		{".tmp-head_accept-123", "", 0, false},
	}
	for _, tt := range tests {
		name, version, ok := parseFilename(tt.in)
		if name != tt.name || version != tt.version || ok != tt.ok {
			t.Errorf("parseFilename(%q) = %q, %d, %v; want %q, %d, %v", tt.in, name, version, ok, tt.name, tt.version, tt.ok)
		}
	}
}

func TestLoadBundle(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()

	enc := EncoderState{
		InputDim:  2,
		HiddenDim: 1,
		Wx:        [][]float64{{0.5, -0.5}},
		Wh:        [][]float64{{0.1}},
		B:         []float64{0},
	}
	if err := store.Save(ctx, ArtifactEncoder, 2, enc, Metadata{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, HeadArtifact("accept"), 1, HeadState{Name: "accept", Link: LinkLogistic}, Metadata{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	// Wrong link function fails validation.
	if err := store.Save(ctx, HeadArtifact("aov"), 1, HeadState{Name: "aov", Link: "softmax"}, Metadata{}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	b, err := LoadBundle(ctx, store, []string{"accept", "aov", "abandon"})
	if err == nil {
		t.Error("LoadBundle() error = nil, want validation error for head_aov")
	}
	if b.Encoder == nil || b.Versions[ArtifactEncoder] != 2 {
		t.Errorf("encoder not loaded: %+v", b.Versions)
	}
	if b.Heads["accept"] == nil {
		t.Error("head accept not loaded")
	}
	if b.Heads["aov"] != nil {
		t.Error("invalid head aov was loaded")
	}
	wantMissing := []string{"head_abandon", "item_embeddings"}
	if len(b.Missing) != len(wantMissing) {
		t.Fatalf("Missing = %v, want %v", b.Missing, wantMissing)
	}
	for i := range wantMissing {
		if b.Missing[i] != wantMissing[i] {
			t.Errorf("Missing[%d] = %s, want %s", i, b.Missing[i], wantMissing[i])
		}
	}
}

func TestEncoderStateValidate(t *testing.T) {
	t.Parallel()

	bad := EncoderState{InputDim: 2, HiddenDim: 2, Wx: [][]float64{{1, 1}}, Wh: [][]float64{{1, 1}, {1, 1}}, B: []float64{0, 0}}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() = nil for a short Wx")
	}
}
