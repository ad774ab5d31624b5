package coordinator

import (
	"context"
	"fmt"

	"github.com/spectrum-hq/spectrum/internal/agent"
	"github.com/spectrum-hq/spectrum/internal/graph"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/internal/workload"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// RegisterAgent adds an agent to the registry.
func (c *Coordinator) RegisterAgent(ctx context.Context, agentID string) error {
	return c.store.Update(ctx, func(snap *registry.Snapshot) error {
		if snap.Agent(agentID) != nil {
			return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("agent %s already exists", agentID), nil)
		}
		snap.Agents[agentID] = agent.New(agentID)
		return nil
	})
}

// SetTicketStatus overrides a mirrored ticket's status outside the normal
// completion flow. It refuses to touch a ticket an agent is working.
func (c *Coordinator) SetTicketStatus(ctx context.Context, ticketID string, status ticket.Status) error {
	if !status.Valid() {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %s", status), nil)
	}
	return c.store.Update(ctx, func(snap *registry.Snapshot) error {
		t := snap.Ticket(ticketID)
		if t == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", ticketID), nil)
		}
		if t.Assignee != "" && t.Status == ticket.StatusInProgress {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("ticket %s is in progress by %s; report completion instead", ticketID, t.Assignee), nil)
		}
		t.Status = status
		touch(t)
		return nil
	})
}

// SetQuality flips a ticket's quality gate.
func (c *Coordinator) SetQuality(ctx context.Context, ticketID string, ok bool) error {
	return c.store.Update(ctx, func(snap *registry.Snapshot) error {
		t := snap.EnsureTicket(ticketID)
		t.QualityOK = ok
		touch(t)
		return nil
	})
}

// LinkChild records a parent/child relationship. Parents aggregate children
// and never hold work themselves, so linking a child under a currently
// active ticket is refused.
func (c *Coordinator) LinkChild(ctx context.Context, parentID, childID string) error {
	if parentID == childID {
		return cerr.NewError(cerr.InvalidArgument, "a ticket cannot be its own parent", nil)
	}
	return c.store.Update(ctx, func(snap *registry.Snapshot) error {
		p := snap.EnsureTicket(parentID)
		if p.Status == ticket.StatusInProgress {
			return cerr.NewError(cerr.InvalidArgument,
				fmt.Sprintf("ticket %s is in progress and cannot become a parent", parentID), nil)
		}
		child := snap.EnsureTicket(childID)
		if child.Parent != "" && child.Parent != parentID {
			return cerr.NewError(cerr.AlreadyExists,
				fmt.Sprintf("ticket %s already has parent %s", childID, child.Parent), nil)
		}
		child.Parent = parentID
		p.AddChild(childID)
		touch(p)
		touch(child)
		return nil
	})
}

// CriticalPath returns the longest prerequisite chain ending at the ticket.
func (c *Coordinator) CriticalPath(ctx context.Context, ticketID string) ([]string, int, error) {
	var (
		path   []string
		length int
	)
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		var err error
		path, length, err = graph.New(snap.Tickets).CriticalPath(ticketID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return path, length, nil
}

// Cycles scans the committed graph for cycles. The add-edge guard keeps the
// graph acyclic, so any hit here means the snapshot was edited out of band.
func (c *Coordinator) Cycles(ctx context.Context) ([]graph.BackEdge, error) {
	var edges []graph.BackEdge
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		edges = graph.New(snap.Tickets).Cycles()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// Tree renders the prerequisite subgraph under one ticket.
func (c *Coordinator) Tree(ctx context.Context, ticketID string) (string, error) {
	var out string
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		var err error
		out, err = graph.New(snap.Tickets).Tree(ticketID)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// TeamBalance reports the per-agent load distribution.
func (c *Coordinator) TeamBalance(ctx context.Context) ([]workload.Load, error) {
	var loads []workload.Load
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		loads = workload.NewAnalyzer(snap).TeamBalance()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loads, nil
}

// Inspect returns deep copies of one ticket and, if set, its assignee.
func (c *Coordinator) Inspect(ctx context.Context, ticketID string) (*ticket.Ticket, error) {
	var t *ticket.Ticket
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		found := snap.Ticket(ticketID)
		if found == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", ticketID), nil)
		}
		t = found.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InspectAgent returns a deep copy of one agent.
func (c *Coordinator) InspectAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	var a *agent.Agent
	err := c.store.View(ctx, func(snap *registry.Snapshot) error {
		found := snap.Agent(agentID)
		if found == nil {
			return cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
		}
		a = found.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
