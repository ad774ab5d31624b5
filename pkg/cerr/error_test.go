package cerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeOf(t *testing.T) {
	err := NewError(Cycle, "would close a cycle", nil)
	if CodeOf(err) != Cycle {
		t.Errorf("expected Cycle, got %v", CodeOf(err))
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if CodeOf(wrapped) != Cycle {
		t.Errorf("expected Cycle through wrapping, got %v", CodeOf(wrapped))
	}

	if CodeOf(errors.New("plain")) != Internal {
		t.Errorf("expected Internal for uncoded error, got %v", CodeOf(errors.New("plain")))
	}
}

func TestIsCode(t *testing.T) {
	err := NewError(EmptyQueue, "nothing queued", nil)
	if !IsCode(err, EmptyQueue) {
		t.Error("IsCode missed a matching code")
	}
	if IsCode(err, AgentBusy) {
		t.Error("IsCode matched a different code")
	}
	if IsCode(nil, EmptyQueue) {
		t.Error("IsCode matched nil")
	}
}

func TestDetailsSurviveWrapping(t *testing.T) {
	err := NewErrorWithDetails(NotReady, "blocked", nil, []string{"T1", "T2"})
	wrapped := fmt.Errorf("assign: %w", err)

	details := DetailsOf(wrapped)
	if len(details) != 2 || details[0] != "T1" || details[1] != "T2" {
		t.Errorf("expected details [T1 T2], got %v", details)
	}
}

func TestUnwrap(t *testing.T) {
	underlying := errors.New("disk on fire")
	err := NewError(Internal, "save failed", underlying)
	if !errors.Is(err, underlying) {
		t.Error("underlying error lost")
	}
}

func TestHTTPCode(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{Cycle, http.StatusPreconditionFailed},
		{AgentBusy, http.StatusPreconditionFailed},
		{NotReady, http.StatusPreconditionFailed},
		{DuplicateQueueEntry, http.StatusConflict},
		{StaleSnapshot, http.StatusConflict},
		{EmptyQueue, http.StatusUnprocessableEntity},
		{CapacityExceeded, http.StatusTooManyRequests},
		{LockTimeout, http.StatusServiceUnavailable},
		{NotFound, http.StatusNotFound},
		{OK, http.StatusOK},
	}
	for _, c := range cases {
		if got := c.code.HTTPCode(); got != c.want {
			t.Errorf("%s: expected %d, got %d", c.code, c.want, got)
		}
	}
}

func TestExitCodesAreDistinct(t *testing.T) {
	codes := []Code{
		Cycle, DuplicateQueueEntry, EmptyQueue, AgentBusy, NotReady,
		CapacityExceeded, LockTimeout, StaleSnapshot, Corrupt,
		NotFound, AlreadyExists, InvalidArgument, Internal,
	}
	seen := make(map[int]Code, len(codes))
	for _, c := range codes {
		exit := c.ExitCode()
		if exit == 0 {
			t.Errorf("%s maps to exit 0", c)
		}
		if prev, ok := seen[exit]; ok {
			t.Errorf("%s and %s share exit code %d", c, prev, exit)
		}
		seen[exit] = c
	}
}
