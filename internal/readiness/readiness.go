package readiness

import (
	"fmt"

	"github.com/spectrum-hq/spectrum/internal/graph"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
)

// State classifies whether a ticket can be handed to an agent right now.
type State int

const (
	// Assignable means every check passed and the ticket may start.
	Assignable State = iota
	// Blocked means the ticket is otherwise fine but waits on prerequisites.
	Blocked
	// NotEligible means the ticket can never start in its current shape,
	// regardless of what its prerequisites do.
	NotEligible
)

func (s State) String() string {
	switch s {
	case Assignable:
		return "assignable"
	case Blocked:
		return "blocked"
	case NotEligible:
		return "not-eligible"
	default:
		return "unknown"
	}
}

// Result carries the classification plus whatever the caller needs to act on
// it: the unsatisfied prerequisites for Blocked, a human reason for
// NotEligible.
type Result struct {
	State    State
	Blocking []string
	Reason   string
}

// Checker evaluates assignability against a single snapshot.
type Checker struct {
	snap   *registry.Snapshot
	engine *graph.Engine
}

func NewChecker(snap *registry.Snapshot) *Checker {
	return &Checker{snap: snap, engine: graph.New(snap.Tickets)}
}

// Check classifies the ticket. Eligibility problems win over dependency
// problems: a ticket that is both a parent and blocked reports NotEligible,
// because resolving its prerequisites would still not make it startable.
func (c *Checker) Check(ticketID string) (Result, error) {
	t := c.snap.Ticket(ticketID)
	if t == nil {
		return Result{}, fmt.Errorf("ticket %s not found", ticketID)
	}
	if t.IsParent() {
		return Result{
			State:  NotEligible,
			Reason: fmt.Sprintf("ticket %s has children; only leaf tickets carry work", ticketID),
		}, nil
	}
	if t.Status != ticket.StatusOpen {
		return Result{
			State:  NotEligible,
			Reason: fmt.Sprintf("ticket %s is %s, not %s", ticketID, t.Status, ticket.StatusOpen),
		}, nil
	}
	if !t.QualityOK {
		return Result{
			State:  NotEligible,
			Reason: fmt.Sprintf("ticket %s has not passed the quality gate", ticketID),
		}, nil
	}
	if blocking := c.engine.Blocking(ticketID); len(blocking) > 0 {
		return Result{State: Blocked, Blocking: blocking}, nil
	}
	return Result{State: Assignable}, nil
}

// ReadySet lists every leaf ticket that is currently assignable, in sorted
// ID order.
func (c *Checker) ReadySet() []string {
	var ready []string
	for _, id := range c.snap.TicketIDs() {
		res, err := c.Check(id)
		if err != nil {
			continue
		}
		if res.State == Assignable {
			ready = append(ready, id)
		}
	}
	return ready
}
