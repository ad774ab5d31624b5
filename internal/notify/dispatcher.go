package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"github.com/spectrum-hq/spectrum/internal/event"
	"github.com/spectrum-hq/spectrum/pkg/panicerr"
)

// Sender is what the dispatcher needs from the bridge client.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher turns bus events into chat messages. Sends run on a bounded
// pool and a failed send is logged and dropped; the bus handler always
// returns nil so a flaky bridge never backs up the router.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
	pool   *pool.Pool
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logger: logger,
		pool:   pool.New().WithMaxGoroutines(4),
	}
}

// Register subscribes the dispatcher to every event it narrates.
func (d *Dispatcher) Register(bus *event.Bus) {
	event.SubscribeTyped(bus, event.AssignmentCreated, "notify.assignment_created",
		func(ctx context.Context, ev *event.Event[event.AssignmentCreatedData]) error {
			d.send(ctx, fmt.Sprintf(":rocket: %s started %s", ev.Data.AgentID, ev.Data.TicketID))
			return nil
		})
	event.SubscribeTyped(bus, event.TicketCompleted, "notify.ticket_completed",
		func(ctx context.Context, ev *event.Event[event.TicketCompletedData]) error {
			d.send(ctx, fmt.Sprintf(":white_check_mark: %s finished %s (%s)", ev.Data.AgentID, ev.Data.TicketID, ev.Data.Status))
			return nil
		})
	event.SubscribeTyped(bus, event.TicketReady, "notify.ticket_ready",
		func(ctx context.Context, ev *event.Event[event.TicketReadyData]) error {
			d.send(ctx, fmt.Sprintf(":unlock: %s is ready to start", ev.Data.TicketID))
			return nil
		})
	event.SubscribeTyped(bus, event.ParentClosable, "notify.parent_closable",
		func(ctx context.Context, ev *event.Event[event.ParentClosableData]) error {
			d.send(ctx, fmt.Sprintf(":package: all children of %s are finished; it can be closed", ev.Data.ParentID))
			return nil
		})
	event.SubscribeTyped(bus, event.EdgeRejected, "notify.edge_rejected",
		func(ctx context.Context, ev *event.Event[event.EdgeRejectedData]) error {
			d.send(ctx, fmt.Sprintf(":no_entry: refused %s blocked-by %s: would close a cycle (%s)",
				ev.Data.DependentID, ev.Data.PrerequisiteID, strings.Join(ev.Data.Path, " -> ")))
			return nil
		})
}

func (d *Dispatcher) send(ctx context.Context, text string) {
	d.pool.Go(func() {
		err := panicerr.SafeContext(func(ctx context.Context) error {
			return d.sender.Send(ctx, text)
		})(ctx)
		if err != nil {
			d.logger.WarnContext(ctx, "failed to deliver notification",
				slog.String("text", text),
				slog.String("error", err.Error()))
		}
	})
}

// Wait blocks until in-flight sends drain.
func (d *Dispatcher) Wait() {
	d.pool.Wait()
}
