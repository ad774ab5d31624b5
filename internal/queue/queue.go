package queue

import (
	"fmt"
	"time"

	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// Manager enforces the per-agent FIFO discipline over a snapshot. The only
// mutations are append-to-tail and pop-from-head; no reorder, remove-from-
// middle, or insert-at-head operation exists anywhere in the public surface.
// Order of arrival is the order of execution.
type Manager struct {
	snap *registry.Snapshot
}

func NewManager(snap *registry.Snapshot) *Manager {
	return &Manager{snap: snap}
}

// Enqueue appends ticketID to the tail of the agent's backlog.
func (m *Manager) Enqueue(agentID, ticketID string) error {
	a := m.snap.Agent(agentID)
	if a == nil {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
	}
	t := m.snap.Ticket(ticketID)
	if t == nil {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", ticketID), nil)
	}
	if t.IsParent() {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("ticket %s has children; parent tickets hold no work directly", ticketID), nil)
	}
	if a.ActiveTicket == ticketID {
		return cerr.NewError(cerr.DuplicateQueueEntry, fmt.Sprintf("ticket %s is already the active ticket of %s", ticketID, agentID), nil)
	}
	if a.Queue.Contains(ticketID) {
		return cerr.NewError(cerr.DuplicateQueueEntry, fmt.Sprintf("ticket %s is already queued for %s", ticketID, agentID), nil)
	}
	a.Queue.Push(ticketID)
	a.UpdatedAt = time.Now()
	return nil
}

// PeekNext returns the head of the agent's backlog without removing it.
func (m *Manager) PeekNext(agentID string) (string, error) {
	a := m.snap.Agent(agentID)
	if a == nil {
		return "", cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
	}
	head, ok := a.Queue.Peek()
	if !ok {
		return "", cerr.NewError(cerr.EmptyQueue, fmt.Sprintf("agent %s has an empty queue", agentID), nil)
	}
	return head, nil
}

// Advance removes and returns the head of the agent's backlog.
func (m *Manager) Advance(agentID string) (string, error) {
	a := m.snap.Agent(agentID)
	if a == nil {
		return "", cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
	}
	head, ok := a.Queue.Pop()
	if !ok {
		return "", cerr.NewError(cerr.EmptyQueue, fmt.Sprintf("agent %s has an empty queue", agentID), nil)
	}
	a.UpdatedAt = time.Now()
	return head, nil
}
