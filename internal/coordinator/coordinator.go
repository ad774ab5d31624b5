package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spectrum-hq/spectrum/internal/agent"
	"github.com/spectrum-hq/spectrum/internal/event"
	"github.com/spectrum-hq/spectrum/internal/graph"
	"github.com/spectrum-hq/spectrum/internal/queue"
	"github.com/spectrum-hq/spectrum/internal/readiness"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/internal/workload"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

const source = "coordinator"

// Coordinator is the only writer of assignment state. Every operation runs
// as one registry transaction: all checks and mutations happen against a
// deep copy, and a failed check leaves the committed snapshot untouched.
// Events are published only after the transaction commits.
type Coordinator struct {
	store  *registry.Store
	bus    *event.Bus
	logger *slog.Logger
}

func New(store *registry.Store, bus *event.Bus, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, bus: bus, logger: logger}
}

// AssignNext hands the agent the head of its queue, if the head may start.
// The checks run in a fixed order so callers get a deterministic failure:
// agent availability, queue non-emptiness, readiness, capacity. On a
// readiness failure the ticket stays at the head; nothing is skipped or
// reordered around a blocked ticket.
func (c *Coordinator) AssignNext(ctx context.Context, agentID string) (string, error) {
	var assigned string
	err := c.store.Update(ctx, func(snap *registry.Snapshot) error {
		a := snap.Agent(agentID)
		if a == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
		}
		if a.Status != agent.StatusAvailable || a.ActiveTicket != "" {
			return cerr.NewError(cerr.AgentBusy, fmt.Sprintf("agent %s is busy with %s", agentID, a.ActiveTicket), nil)
		}

		q := queue.NewManager(snap)
		head, err := q.PeekNext(agentID)
		if err != nil {
			return err
		}

		res, err := readiness.NewChecker(snap).Check(head)
		if err != nil {
			return cerr.NewError(cerr.Internal, "readiness check failed", err)
		}
		switch res.State {
		case readiness.Blocked:
			return cerr.NewErrorWithDetails(cerr.NotReady,
				fmt.Sprintf("ticket %s is waiting on %d prerequisite(s)", head, len(res.Blocking)),
				nil, res.Blocking)
		case readiness.NotEligible:
			return cerr.NewError(cerr.NotReady, res.Reason, nil)
		}

		over, err := workload.NewAnalyzer(snap).IsOverCapacity(agentID)
		if err != nil {
			return err
		}
		if over {
			return cerr.NewError(cerr.CapacityExceeded, fmt.Sprintf("agent %s is at its active limit", agentID), nil)
		}

		if _, err := q.Advance(agentID); err != nil {
			return err
		}
		t := snap.Ticket(head)
		t.Status = ticket.StatusInProgress
		t.Assignee = agentID
		touch(t)
		a.ActiveTicket = head
		a.Status = agent.StatusBusy
		touchAgent(a)
		assigned = head
		return nil
	})
	if err != nil {
		return "", err
	}

	publish(c, ctx, event.AssignmentCreatedData{
		AgentID:  agentID,
		TicketID: assigned,
	})
	return assigned, nil
}

// CompletionReport is what ReportCompletion surfaces after a commit: the
// tickets that just became assignable and the parents whose children are all
// finished.
type CompletionReport struct {
	ReadyTickets    []string
	ClosableParents []string
}

// ReportCompletion marks the agent's active ticket terminal and frees the
// agent. The second report for the same ticket fails, because by then the
// ticket is no longer the agent's active ticket.
func (c *Coordinator) ReportCompletion(ctx context.Context, agentID, ticketID string, status ticket.Status) (*CompletionReport, error) {
	if !status.Terminal() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("status %s is not terminal", status), nil)
	}

	report := &CompletionReport{}
	err := c.store.Update(ctx, func(snap *registry.Snapshot) error {
		a := snap.Agent(agentID)
		if a == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
		}
		if a.ActiveTicket != ticketID {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("ticket %s is not the active ticket of %s", ticketID, agentID), nil)
		}
		t := snap.Ticket(ticketID)
		if t == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", ticketID), nil)
		}

		before := readySet(snap)

		t.Status = status
		touch(t)
		a.ActiveTicket = ""
		a.Status = agent.StatusAvailable
		touchAgent(a)

		report.ReadyTickets = diff(readySet(snap), before)
		report.ClosableParents = closableParents(snap, t)
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(c, ctx, event.TicketCompletedData{
		AgentID:  agentID,
		TicketID: ticketID,
		Status:   string(status),
	})
	for _, id := range report.ReadyTickets {
		publish(c, ctx, event.TicketReadyData{TicketID: id})
	}
	for _, id := range report.ClosableParents {
		publish(c, ctx, event.ParentClosableData{ParentID: id})
	}
	return report, nil
}

// AddDependency records "dependent is blocked by prerequisite", mirroring
// either ticket into the registry on first reference. A rejected edge is
// reported on the bus so operators see attempted cycles.
func (c *Coordinator) AddDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	err := c.store.Update(ctx, func(snap *registry.Snapshot) error {
		snap.EnsureTicket(dependentID)
		snap.EnsureTicket(prerequisiteID)
		return graph.New(snap.Tickets).AddEdge(dependentID, prerequisiteID)
	})
	if err != nil {
		if cerr.IsCode(err, cerr.Cycle) {
			publish(c, ctx, event.EdgeRejectedData{
				DependentID:    dependentID,
				PrerequisiteID: prerequisiteID,
				Path:           cerr.DetailsOf(err),
			})
		}
		return err
	}
	publish(c, ctx, event.EdgeAddedData{
		DependentID:    dependentID,
		PrerequisiteID: prerequisiteID,
	})
	return nil
}

// RemoveDependency drops the edge if present. Removing an absent edge is a
// no-op.
func (c *Coordinator) RemoveDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	return c.store.Update(ctx, func(snap *registry.Snapshot) error {
		if snap.Ticket(dependentID) == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", dependentID), nil)
		}
		graph.New(snap.Tickets).RemoveEdge(dependentID, prerequisiteID)
		return nil
	})
}

// Enqueue appends a ticket to the tail of an agent's queue.
func (c *Coordinator) Enqueue(ctx context.Context, agentID, ticketID string) error {
	return c.store.Update(ctx, func(snap *registry.Snapshot) error {
		snap.EnsureTicket(ticketID)
		return queue.NewManager(snap).Enqueue(agentID, ticketID)
	})
}

// ReadySet lists every ticket that could be assigned right now.
func (c *Coordinator) ReadySet(ctx context.Context) ([]string, error) {
	var ready []string
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		ready = readySet(snap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ready, nil
}

// publish pushes an event onto the bus after a commit. Publish failures are
// logged, never surfaced: the state change already happened.
func publish[T any](c *Coordinator, ctx context.Context, data T) {
	if c.bus == nil {
		return
	}
	if err := event.Publish(c.bus, ctx, event.New(source, data)); err != nil && c.logger != nil {
		c.logger.WarnContext(ctx, "failed to publish event", slog.String("error", err.Error()))
	}
}

func touch(t *ticket.Ticket) {
	t.UpdatedAt = time.Now()
}

func touchAgent(a *agent.Agent) {
	a.UpdatedAt = time.Now()
}

func readySet(snap *registry.Snapshot) []string {
	return readiness.NewChecker(snap).ReadySet()
}

// diff returns the elements of after that are not in before, preserving
// after's order.
func diff(after, before []string) []string {
	seen := make(map[string]struct{}, len(before))
	for _, id := range before {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range after {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// closableParents walks up from the completed ticket and reports each
// ancestor whose children are now all terminal.
func closableParents(snap *registry.Snapshot, t *ticket.Ticket) []string {
	var out []string
	for id := t.Parent; id != ""; {
		p := snap.Ticket(id)
		if p == nil {
			break
		}
		if !allChildrenTerminal(snap, p) {
			break
		}
		out = append(out, id)
		id = p.Parent
	}
	return out
}

func allChildrenTerminal(snap *registry.Snapshot, p *ticket.Ticket) bool {
	for _, child := range p.Children {
		ct := snap.Ticket(child)
		if ct == nil || !ct.Status.Terminal() {
			return false
		}
	}
	return true
}
