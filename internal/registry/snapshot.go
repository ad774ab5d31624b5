package registry

import (
	"sort"

	"github.com/spectrum-hq/spectrum/internal/agent"
	"github.com/spectrum-hq/spectrum/internal/ticket"
)

// Snapshot is the single shared mutable resource: all tickets, all agents,
// all queues, all edges. Mutations are pure functions from (old snapshot,
// command) to (new snapshot, result); Version is bumped on every committed
// save so concurrent writers can detect stale reads.
type Snapshot struct {
	Version uint64                    `yaml:"version"`
	Tickets map[string]*ticket.Ticket `yaml:"tickets"`
	Agents  map[string]*agent.Agent   `yaml:"agents"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Tickets: make(map[string]*ticket.Ticket),
		Agents:  make(map[string]*agent.Agent),
	}
}

// Clone returns a deep copy; transactions mutate the copy and swap it in
// only on success, so a failed operation leaves no partial state.
func (s *Snapshot) Clone() *Snapshot {
	cp := NewSnapshot()
	cp.Version = s.Version
	for id, t := range s.Tickets {
		cp.Tickets[id] = t.Clone()
	}
	for id, a := range s.Agents {
		cp.Agents[id] = a.Clone()
	}
	return cp
}

// Ticket returns the ticket with the given ID, or nil.
func (s *Snapshot) Ticket(id string) *ticket.Ticket {
	return s.Tickets[id]
}

// Agent returns the agent with the given ID, or nil.
func (s *Snapshot) Agent(id string) *agent.Agent {
	return s.Agents[id]
}

// EnsureTicket returns the ticket with the given ID, creating an Open
// ticket on first reference (the external store owns ticket content; the
// registry only mirrors coordination fields).
func (s *Snapshot) EnsureTicket(id string) *ticket.Ticket {
	if t, ok := s.Tickets[id]; ok {
		return t
	}
	t := ticket.New(id)
	s.Tickets[id] = t
	return t
}

// TicketIDs returns all ticket IDs in lexicographic order.
func (s *Snapshot) TicketIDs() []string {
	ids := make([]string, 0, len(s.Tickets))
	for id := range s.Tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AgentIDs returns all agent IDs in lexicographic order.
func (s *Snapshot) AgentIDs() []string {
	ids := make([]string, 0, len(s.Agents))
	for id := range s.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
