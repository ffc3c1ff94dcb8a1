package registry

import (
	"sync"
	"testing"
	"time"

	"twitter-watcher/pkg/watcher"
)

func account(handle, userID, sinceID string) watcher.Account {
	return watcher.Account{
		Handle:  handle,
		UserID:  userID,
		SinceID: sinceID,
		AddedAt: time.Now().UTC(),
	}
}

func TestInsertIsIdempotentAcrossCase(t *testing.T) {
	r := New()

	if !r.Insert(account("Alice", "100", "")) {
		t.Fatal("first Insert() = false, want true")
	}
	if r.Insert(account("ALICE", "999", "")) {
		t.Error("second Insert() with same handle (different case) = true, want false")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	// The original entry must survive the rejected insert.
	acct, ok := r.Lookup("alice")
	if !ok {
		t.Fatal("Lookup(alice) not found")
	}
	if acct.UserID != "100" {
		t.Errorf("UserID = %q, want %q", acct.UserID, "100")
	}
	if acct.Handle != "Alice" {
		t.Errorf("Handle = %q, want display case %q", acct.Handle, "Alice")
	}
}

func TestRemoveIsCaseInsensitive(t *testing.T) {
	r := New()
	r.Insert(account("alice", "100", ""))

	if !r.Remove("ALICE") {
		t.Error("Remove(ALICE) = false, want true")
	}
	if r.Remove("alice") {
		t.Error("second Remove(alice) = true, want false")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestSnapshotPreservesInsertionOrder(t *testing.T) {
	r := New()
	handles := []string{"carol", "alice", "bob"}
	for i, h := range handles {
		r.Insert(account(h, string(rune('1'+i)), ""))
	}

	snap := r.Snapshot()
	if len(snap) != len(handles) {
		t.Fatalf("Snapshot() returned %d entries, want %d", len(snap), len(handles))
	}
	for i, h := range handles {
		if snap[i].Handle != h {
			t.Errorf("Snapshot()[%d].Handle = %q, want %q", i, snap[i].Handle, h)
		}
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	r := New()
	r.Insert(account("alice", "100", "50"))

	snap := r.Snapshot()
	snap[0].SinceID = "999"

	acct, _ := r.Lookup("alice")
	if acct.SinceID != "50" {
		t.Errorf("mutating a snapshot changed the registry: SinceID = %q, want %q", acct.SinceID, "50")
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		advance  string
		want     bool
		wantID   string
	}{
		{name: "seed empty watermark", existing: "", advance: "103", want: true, wantID: "103"},
		{name: "move forward", existing: "100", advance: "103", want: true, wantID: "103"},
		{name: "refuse backward", existing: "103", advance: "100", want: false, wantID: "103"},
		{name: "refuse equal", existing: "103", advance: "103", want: false, wantID: "103"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			r.Insert(account("alice", "100", tt.existing))

			if got := r.Advance("alice", tt.advance); got != tt.want {
				t.Errorf("Advance() = %v, want %v", got, tt.want)
			}
			acct, _ := r.Lookup("alice")
			if acct.SinceID != tt.wantID {
				t.Errorf("SinceID = %q, want %q", acct.SinceID, tt.wantID)
			}
		})
	}
}

func TestAdvanceAfterRemoveIsNoOp(t *testing.T) {
	r := New()
	r.Insert(account("alice", "100", "50"))
	r.Remove("alice")

	if r.Advance("alice", "103") {
		t.Error("Advance() on removed account = true, want false")
	}
	if r.Len() != 0 {
		t.Error("Advance() resurrected a removed account")
	}
}

func TestReplaceAll(t *testing.T) {
	r := New()
	r.Insert(account("old", "1", "10"))

	loaded := r.ReplaceAll([]watcher.Account{
		account("alice", "100", "50"),
		account("", "200", ""),      // no handle, skipped
		account("bob", "", ""),      // no user ID, skipped
		account("ALICE", "300", ""), // duplicate key, skipped
		account("carol", "400", ""),
	})

	if loaded != 2 {
		t.Errorf("ReplaceAll() = %d, want 2", loaded)
	}
	if _, ok := r.Lookup("old"); ok {
		t.Error("prior entry survived ReplaceAll()")
	}
	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].Handle != "alice" || snap[1].Handle != "carol" {
		t.Errorf("Snapshot() after ReplaceAll() = %+v, want alice then carol", snap)
	}

	// Restore is the one path allowed to move a watermark backward.
	acct, _ := r.Lookup("alice")
	if acct.SinceID != "50" {
		t.Errorf("restored SinceID = %q, want %q", acct.SinceID, "50")
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	r := New()
	r.Insert(account("Alice", "100", "50"))
	r.Insert(account("Bob", "200", ""))

	exported := r.Snapshot()

	restored := New()
	restored.ReplaceAll(exported)

	again := restored.Snapshot()
	if len(again) != len(exported) {
		t.Fatalf("round trip returned %d entries, want %d", len(again), len(exported))
	}
	for i := range exported {
		if again[i] != exported[i] {
			t.Errorf("entry %d = %+v, want %+v", i, again[i], exported[i])
		}
	}
}

func TestConcurrentMutation(t *testing.T) {
	r := New()
	r.Insert(account("alice", "100", ""))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Insert(account("bob", "200", ""))
				r.Snapshot()
				r.Advance("alice", "500")
				r.Remove("bob")
			}
		}()
	}
	wg.Wait()

	if _, ok := r.Lookup("alice"); !ok {
		t.Error("alice lost during concurrent mutation")
	}
}
