// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/clock"
	"github.com/jeranaias/codecraft-tui/internal/model"
)

// fakeRemote is an in-memory Remote.
type fakeRemote struct {
	mu      sync.Mutex
	chats   map[string]*model.Session
	saves   int
	saveErr error
	loadErr error
	block   chan struct{}
}

func (f *fakeRemote) LoadChats(ctx context.Context) (map[string]*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return cloneAll(f.chats), nil
}

func (f *fakeRemote) SaveChats(ctx context.Context, chats map[string]*model.Session) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.chats = cloneAll(chats)
	return nil
}

func (f *fakeRemote) snapshot() (map[string]*model.Session, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneAll(f.chats), f.saves
}

func TestMutationsArePushedToRemote(t *testing.T) {
	store := openTestStore(t, t.TempDir(), nil)
	remote := &fakeRemote{}
	store.AttachRemote(remote)
	if !store.RemoteAttached() {
		t.Fatal("RemoteAttached = false")
	}

	id := store.CurrentID()
	store.Append(id, model.NewUserMessage("hi", time.Now()))
	store.Rename(id, "Hi")
	store.Flush()

	chats, saves := remote.snapshot()
	if saves == 0 {
		t.Fatal("no push happened")
	}
	got := chats[id]
	if got == nil || got.Title != "Hi" || got.Len() != 1 {
		t.Errorf("remote copy = %+v", got)
	}
}

func TestPushesCoalesce(t *testing.T) {
	store := openTestStore(t, t.TempDir(), nil)
	remote := &fakeRemote{block: make(chan struct{})}
	store.AttachRemote(remote)
	id := store.CurrentID()

	// The first push blocks; the rest queue behind it and collapse.
	for i := 0; i < 10; i++ {
		if err := store.Append(id, model.NewUserMessage("m", time.Now())); err != nil {
			t.Fatalf("Append blocked or failed: %v", err)
		}
	}
	close(remote.block)
	store.Flush()

	chats, saves := remote.snapshot()
	if saves > 2 {
		t.Errorf("saves = %d, want at most 2 (first push plus newest snapshot)", saves)
	}
	if chats[id].Len() != 10 {
		t.Errorf("remote has %d messages, want the newest snapshot with 10", chats[id].Len())
	}
}

func TestConcurrentMutationsConvergeOnRemote(t *testing.T) {
	store := openTestStore(t, t.TempDir(), nil)
	remote := &fakeRemote{block: make(chan struct{})}
	store.AttachRemote(remote)

	ids := make([]string, 8)
	for i := range ids {
		sess, err := store.Create("")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids[i] = sess.ID
	}

	// Renames race appends on every session while the first push is held.
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				store.Append(id, model.NewUserMessage("m", time.Now()))
			}
		}(id)
		go func(id string) {
			defer wg.Done()
			store.Rename(id, "renamed "+id)
		}(id)
	}
	wg.Wait()
	close(remote.block)
	store.Flush()

	chats, _ := remote.snapshot()
	for _, id := range ids {
		got := chats[id]
		if got == nil {
			t.Fatalf("remote is missing %s", id)
		}
		if got.Title != "renamed "+id || got.Len() != 20 {
			t.Errorf("remote %s = %q with %d messages, want both the rename and 20 messages", id, got.Title, got.Len())
		}
	}
}

func TestRemoteFailureNeverBlocksLocal(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir, nil)
	store.AttachRemote(&fakeRemote{saveErr: errors.New("offline")})
	id := store.CurrentID()

	if err := store.Append(id, model.NewUserMessage("local", time.Now())); err != nil {
		t.Fatalf("Append returned remote error: %v", err)
	}
	store.Flush()

	reopened := openTestStore(t, dir, nil)
	got, _ := reopened.Get(id)
	if got.Len() != 1 {
		t.Error("local write lost after remote failure")
	}
}

func TestDetachRemoteStopsPushes(t *testing.T) {
	store := openTestStore(t, t.TempDir(), nil)
	remote := &fakeRemote{}
	store.AttachRemote(remote)
	store.AttachRemote(nil)

	store.Append(store.CurrentID(), model.NewUserMessage("x", time.Now()))
	store.Flush()
	if _, saves := remote.snapshot(); saves != 0 {
		t.Errorf("saves = %d after detach, want 0", saves)
	}
}

func TestSyncRemoteWinsPerSession(t *testing.T) {
	fake := clock.NewFake(time.UnixMilli(1000))
	store := openTestStore(t, t.TempDir(), fake)
	shared := store.CurrentID()
	store.Rename(shared, "Local title")
	fake.Advance(time.Second)
	localOnly, _ := store.Create("")

	remoteShared := model.NewSession(shared, "gemma", time.UnixMilli(1000))
	remoteShared.Title = "Remote title"
	remoteOnly := model.NewSession("500", "", time.UnixMilli(500))
	remote := &fakeRemote{chats: map[string]*model.Session{
		shared: remoteShared,
		"500":  remoteOnly,
	}}
	store.AttachRemote(remote)

	pulled, err := store.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if pulled != 2 {
		t.Errorf("pulled = %d, want 2", pulled)
	}

	got, _ := store.Get(shared)
	if got.Title != "Remote title" || got.Model != "gemma" {
		t.Errorf("shared session = %q/%q, want the remote copy", got.Title, got.Model)
	}
	if !store.Has(localOnly.ID) {
		t.Error("local-only session lost in sync")
	}
	if got, _ := store.Get("500"); got == nil || got.Model != "deepseek" {
		t.Errorf("remote-only session not merged with default model: %+v", got)
	}

	store.Flush()
	chats, _ := remote.snapshot()
	if len(chats) != 3 {
		t.Errorf("merged result pushed back with %d sessions, want 3", len(chats))
	}
}

func TestSyncErrors(t *testing.T) {
	store := openTestStore(t, t.TempDir(), nil)
	if _, err := store.Sync(context.Background()); !errors.Is(err, ErrNoRemote) {
		t.Errorf("err = %v, want ErrNoRemote", err)
	}

	store.AttachRemote(&fakeRemote{loadErr: errors.New("unreachable")})
	_, err := store.Sync(context.Background())
	var perr *PersistenceError
	if !errors.As(err, &perr) || !perr.Remote {
		t.Errorf("err = %v, want remote PersistenceError", err)
	}
}
