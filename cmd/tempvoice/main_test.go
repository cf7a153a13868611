package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/tempvoice/internal/snapshot"
)

func openTestStore(t *testing.T) *snapshot.Store {
	t.Helper()
	store, err := snapshot.Open(filepath.Join(t.TempDir(), "rooms.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate store: %v", err)
	}
	return store
}

// Input EOF must end the loop, stop the sweeper, and still write the final
// snapshot instead of blocking on the signal context.
func TestRunSimulation_ExitsOnInputEOF(t *testing.T) {
	store := openTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	input := strings.NewReader("c -n trial room\n")

	done := make(chan error, 1)
	go func() {
		done <- runSimulation(context.Background(), input, store, logger)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runSimulation: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runSimulation did not return after input EOF")
	}

	records, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(records) != 1 || records[0].OwnerID != simOperator {
		t.Fatalf("records = %+v, want the operator's room persisted", records)
	}
}
