package ticketstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spectrum-hq/spectrum/internal/event"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// statusMap translates tracker statuses into registry statuses. Unknown
// statuses are left untouched so a tracker-side experiment cannot corrupt
// the mirror.
var statusMap = map[string]ticket.Status{
	"open":        ticket.StatusOpen,
	"in_progress": ticket.StatusInProgress,
	"blocked":     ticket.StatusBlocked,
	"done":        ticket.StatusDone,
	"cancelled":   ticket.StatusCancelled,
}

// trackerStatus is the inverse mapping for the statuses the completion flow
// pushes out. Only terminal statuses originate here.
var trackerStatus = map[ticket.Status]string{
	ticket.StatusDone:      "done",
	ticket.StatusCancelled: "cancelled",
}

// Mirror keeps the registry and the tracker in agreement: tracker state is
// pulled in for every mirrored ticket, and terminal statuses decided by the
// completion flow are pushed out. Tickets an agent is actively working or
// has already finished keep their registry status; the tracker never
// overwrites those.
type Mirror struct {
	client Client
	store  *registry.Store
	logger *slog.Logger
}

func NewMirror(client Client, store *registry.Store, logger *slog.Logger) *Mirror {
	return &Mirror{client: client, store: store, logger: logger}
}

// Register subscribes the mirror to bus events. Completions push their
// terminal status to the tracker; a new dependency edge hydrates both
// endpoints from the tracker record. Push and hydrate failures are logged
// and dropped; the handlers always return nil so a flaky tracker never
// backs up the router.
func (m *Mirror) Register(bus *event.Bus) {
	event.SubscribeTyped(bus, event.TicketCompleted, "ticketstore.ticket_completed",
		func(ctx context.Context, ev *event.Event[event.TicketCompletedData]) error {
			status, ok := trackerStatus[ticket.Status(ev.Data.Status)]
			if !ok {
				return nil
			}
			if err := m.client.SetStatus(ctx, ev.Data.TicketID, status); err != nil {
				m.logger.WarnContext(ctx, "failed to push completion to tracker",
					slog.String("ticket_id", ev.Data.TicketID),
					slog.String("error", err.Error()))
			}
			return nil
		})
	event.SubscribeTyped(bus, event.EdgeAdded, "ticketstore.edge_added",
		func(ctx context.Context, ev *event.Event[event.EdgeAddedData]) error {
			for _, id := range []string{ev.Data.DependentID, ev.Data.PrerequisiteID} {
				if err := m.Hydrate(ctx, id); err != nil {
					m.logger.WarnContext(ctx, "failed to hydrate ticket from tracker",
						slog.String("ticket_id", id),
						slog.String("error", err.Error()))
				}
			}
			return nil
		})
}

// Hydrate refreshes one ticket from its tracker record, creating the mirror
// entry on first reference. A ticket the tracker does not know stays
// local-only.
func (m *Mirror) Hydrate(ctx context.Context, id string) error {
	remote, err := m.client.GetTicket(ctx, id)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil
		}
		return err
	}
	return m.store.Update(ctx, func(snap *registry.Snapshot) error {
		m.apply(ctx, snap.EnsureTicket(id), remote)
		return nil
	})
}

// SyncOnce refreshes every mirrored ticket once and reports how many
// changed.
func (m *Mirror) SyncOnce(ctx context.Context) (int, error) {
	remotes, err := m.client.ListTickets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tracker tickets: %w", err)
	}
	byID := make(map[string]*Remote, len(remotes))
	for _, r := range remotes {
		byID[r.ID] = r
	}

	changed := 0
	err = m.store.Update(ctx, func(snap *registry.Snapshot) error {
		for _, id := range snap.TicketIDs() {
			remote, ok := byID[id]
			if !ok {
				continue
			}
			if m.apply(ctx, snap.Ticket(id), remote) {
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// apply copies the remote status onto t. In-progress and terminal registry
// tickets win over the tracker: assignment owns the former and the
// completion flow owns the latter.
func (m *Mirror) apply(ctx context.Context, t *ticket.Ticket, remote *Remote) bool {
	status, ok := statusMap[remote.Status]
	if !ok {
		m.logger.WarnContext(ctx, "unknown tracker status",
			slog.String("ticket_id", t.ID),
			slog.String("status", remote.Status))
		return false
	}
	if t.Status == status || t.Status == ticket.StatusInProgress || t.Status.Terminal() {
		return false
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return true
}

// Run syncs on a fixed interval until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := m.SyncOnce(ctx); err != nil {
				m.logger.WarnContext(ctx, "tracker sync failed", slog.String("error", err.Error()))
			} else if n > 0 {
				m.logger.InfoContext(ctx, "tracker sync applied changes", slog.Int("changed", n))
			}
		}
	}
}
