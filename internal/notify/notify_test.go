package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestClientSend(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send_message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "#spectrum")
	if err := c.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got.Channel != "#spectrum" || got.Text != "hello" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestClientSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "#spectrum")
	if err := c.Send(context.Background(), "hello"); err == nil {
		t.Error("expected error on 502 response")
	}
}

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSender) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func TestDispatcherSendsAndDrains(t *testing.T) {
	sender := &recordingSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(sender, logger)

	d.send(context.Background(), "one")
	d.send(context.Background(), "two")
	d.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.texts) != 2 {
		t.Errorf("expected 2 deliveries, got %v", sender.texts)
	}
}

type panickingSender struct{}

func (panickingSender) Send(context.Context, string) error {
	panic("bridge client bug")
}

func TestDispatcherSurvivesPanickingSender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(panickingSender{}, logger)

	d.send(context.Background(), "boom")
	// Wait must return normally; the panic is recovered and logged.
	d.Wait()
}
