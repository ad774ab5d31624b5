package workload

import (
	"fmt"

	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// ActiveLimit is how many tickets an agent may work at once. Queued tickets
// do not count; only the one actually in progress does.
const ActiveLimit = 1

// Analyzer answers capacity questions over a snapshot. It is a pure reader
// and never mutates.
type Analyzer struct {
	snap *registry.Snapshot
}

func NewAnalyzer(snap *registry.Snapshot) *Analyzer {
	return &Analyzer{snap: snap}
}

// ActiveCount is the number of tickets the agent is working right now,
// which is 0 or 1.
func (a *Analyzer) ActiveCount(agentID string) (int, error) {
	ag := a.snap.Agent(agentID)
	if ag == nil {
		return 0, cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
	}
	if ag.ActiveTicket != "" {
		return 1, nil
	}
	return 0, nil
}

// QueueDepth is the number of tickets waiting in the agent's backlog.
func (a *Analyzer) QueueDepth(agentID string) (int, error) {
	ag := a.snap.Agent(agentID)
	if ag == nil {
		return 0, cerr.NewError(cerr.NotFound, fmt.Sprintf("agent %s not found", agentID), nil)
	}
	return ag.Queue.Len(), nil
}

// IsOverCapacity reports whether starting one more ticket would exceed the
// agent's active limit.
func (a *Analyzer) IsOverCapacity(agentID string) (bool, error) {
	n, err := a.ActiveCount(agentID)
	if err != nil {
		return false, err
	}
	return n >= ActiveLimit, nil
}

// Load is one agent's row in a team balance report.
type Load struct {
	AgentID    string `json:"agent_id" yaml:"agent_id"`
	Active     int    `json:"active" yaml:"active"`
	QueueDepth int    `json:"queue_depth" yaml:"queue_depth"`
}

// Total is the combined count of active and queued tickets.
func (l Load) Total() int {
	return l.Active + l.QueueDepth
}

// TeamBalance returns one Load per registered agent, sorted by agent ID, so
// operators can spot skewed backlogs before they hurt.
func (a *Analyzer) TeamBalance() []Load {
	ids := a.snap.AgentIDs()
	loads := make([]Load, 0, len(ids))
	for _, id := range ids {
		ag := a.snap.Agent(id)
		active := 0
		if ag.ActiveTicket != "" {
			active = 1
		}
		loads = append(loads, Load{
			AgentID:    id,
			Active:     active,
			QueueDepth: ag.Queue.Len(),
		})
	}
	return loads
}
