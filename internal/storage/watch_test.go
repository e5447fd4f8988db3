// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/model"
)

func TestWatchPicksUpOtherProcessWrites(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.WatchDebounce = 20 * time.Millisecond
	a, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	b, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 4)
	if err := a.Watch(ctx, func() { reloaded <- struct{}{} }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	id := b.CurrentID()
	if err := b.Append(id, model.NewUserMessage("from b", time.Now())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("store a never reloaded")
	}

	got, err := a.Get(id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Len() != 1 || got.Messages[0].Content != "from b" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestReloadIgnoresOwnWrites(t *testing.T) {
	store := openTestStore(t, t.TempDir(), nil)
	store.Append(store.CurrentID(), model.NewUserMessage("x", time.Now()))

	changed, err := store.Reload()
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if changed {
		t.Error("Reload reported a change for this store's own write")
	}
}
