package ticketstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spectrum-hq/spectrum/internal/coordinator"
	"github.com/spectrum-hq/spectrum/internal/event"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
	"github.com/spectrum-hq/spectrum/pkg/storage"
)

func newTracker(t *testing.T, tickets map[string]*Remote) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/tickets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		var list []*Remote
		for _, remote := range tickets {
			list = append(list, remote)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"tickets": list})
	})
	mux.HandleFunc("/tickets/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/tickets/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			mu.Lock()
			defer mu.Unlock()
			remote, ok := tickets[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(remote)
		case http.MethodPatch:
			mu.Lock()
			defer mu.Unlock()
			remote, ok := tickets[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			remote.Status = body.Status
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientGetTicket(t *testing.T) {
	srv := newTracker(t, map[string]*Remote{
		"T1": {ID: "T1", Title: "wire the parser", Status: "open"},
	})
	c := NewHTTPClient(srv.URL, "token")

	remote, err := c.GetTicket(context.Background(), "T1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if remote.Title != "wire the parser" || remote.Status != "open" {
		t.Errorf("unexpected remote: %+v", remote)
	}
}

func TestHTTPClientGetTicketNotFound(t *testing.T) {
	srv := newTracker(t, map[string]*Remote{})
	c := NewHTTPClient(srv.URL, "")

	_, err := c.GetTicket(context.Background(), "ghost")
	if !cerr.IsCode(err, cerr.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestHTTPClientSetStatus(t *testing.T) {
	tickets := map[string]*Remote{
		"T1": {ID: "T1", Status: "open"},
	}
	srv := newTracker(t, tickets)
	c := NewHTTPClient(srv.URL, "")

	if err := c.SetStatus(context.Background(), "T1", "done"); err != nil {
		t.Fatalf("set status failed: %v", err)
	}
	if tickets["T1"].Status != "done" {
		t.Errorf("status not applied: %+v", tickets["T1"])
	}
}

func newMirrorStore(t *testing.T) *registry.Store {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return registry.NewStore(registry.NewYAMLRepository(s), registry.NewFileLock(s.BasePath(), time.Second))
}

func TestMirrorSyncOnce(t *testing.T) {
	ctx := context.Background()
	srv := newTracker(t, map[string]*Remote{
		"T1": {ID: "T1", Status: "done"},
		"T2": {ID: "T2", Status: "open"},
	})
	store := newMirrorStore(t)

	err := store.Update(ctx, func(snap *registry.Snapshot) error {
		snap.EnsureTicket("T1")
		snap.EnsureTicket("T2")
		// T3 only exists locally; the mirror must leave it alone.
		snap.EnsureTicket("T3")
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMirror(NewHTTPClient(srv.URL, ""), store, logger)

	changed, err := m.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 change, got %d", changed)
	}

	err = store.View(ctx, func(snap *registry.Snapshot) error {
		if snap.Ticket("T1").Status != ticket.StatusDone {
			t.Errorf("T1 not updated: %s", snap.Ticket("T1").Status)
		}
		if snap.Ticket("T2").Status != ticket.StatusOpen {
			t.Errorf("T2 changed unexpectedly: %s", snap.Ticket("T2").Status)
		}
		if snap.Ticket("T3").Status != ticket.StatusOpen {
			t.Errorf("T3 changed unexpectedly: %s", snap.Ticket("T3").Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}

func TestMirrorSkipsInProgressTickets(t *testing.T) {
	ctx := context.Background()
	srv := newTracker(t, map[string]*Remote{
		"T1": {ID: "T1", Status: "cancelled"},
	})
	store := newMirrorStore(t)

	err := store.Update(ctx, func(snap *registry.Snapshot) error {
		snap.EnsureTicket("T1").Status = ticket.StatusInProgress
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMirror(NewHTTPClient(srv.URL, ""), store, logger)

	changed, err := m.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("expected 0 changes, got %d", changed)
	}
}

func TestMirrorLeavesCompletedTicketsAlone(t *testing.T) {
	ctx := context.Background()
	// The tracker still says open; the registry completed the ticket first.
	srv := newTracker(t, map[string]*Remote{
		"T1": {ID: "T1", Status: "open"},
	})
	store := newMirrorStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	coord := coordinator.New(store, nil, logger)
	if err := coord.RegisterAgent(ctx, "red"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := coord.Enqueue(ctx, "red", "T1"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := coord.AssignNext(ctx, "red"); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := coord.ReportCompletion(ctx, "red", "T1", ticket.StatusDone); err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	m := NewMirror(NewHTTPClient(srv.URL, ""), store, logger)
	changed, err := m.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("expected 0 changes, got %d", changed)
	}

	got, err := coord.Inspect(ctx, "T1")
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if got.Status != ticket.StatusDone {
		t.Errorf("completed ticket reverted by mirror: now %s", got.Status)
	}
}

func TestMirrorPushesCompletionToTracker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newTracker(t, map[string]*Remote{
		"T1": {ID: "T1", Status: "open"},
	})
	store := newMirrorStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewHTTPClient(srv.URL, "")
	m := NewMirror(client, store, logger)

	bus, err := event.NewBus()
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	m.Register(bus)
	go func() { _ = bus.Start(ctx) }()
	<-bus.Running()

	ev := event.New("test", event.TicketCompletedData{
		AgentID:  "red",
		TicketID: "T1",
		Status:   string(ticket.StatusDone),
	})
	if err := event.Publish(bus, ctx, ev); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		remote, err := client.GetTicket(ctx, "T1")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if remote.Status == "done" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tracker never saw the completion; status %s", remote.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMirrorHydrateCopiesTrackerStatus(t *testing.T) {
	ctx := context.Background()
	srv := newTracker(t, map[string]*Remote{
		"T1": {ID: "T1", Status: "blocked"},
	})
	store := newMirrorStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewMirror(NewHTTPClient(srv.URL, ""), store, logger)

	if err := m.Hydrate(ctx, "T1"); err != nil {
		t.Fatalf("hydrate failed: %v", err)
	}
	// Unknown to the tracker: stays local-only, no mirror entry.
	if err := m.Hydrate(ctx, "T2"); err != nil {
		t.Fatalf("hydrate of local-only ticket failed: %v", err)
	}

	err := store.View(ctx, func(snap *registry.Snapshot) error {
		if got := snap.Ticket("T1"); got == nil || got.Status != ticket.StatusBlocked {
			t.Errorf("T1 not hydrated: %+v", got)
		}
		if snap.Ticket("T2") != nil {
			t.Errorf("T2 should not have been created")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
}
