package agent

import "time"

// Status represents agent availability.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
)

// Agent is a worker identity with at most one active ticket and a strictly
// arrival-ordered backlog. Agents are conventionally named after colors
// (red, green, blue) but any identifier is accepted.
type Agent struct {
	ID           string    `yaml:"id"`
	Status       Status    `yaml:"status"`
	ActiveTicket string    `yaml:"active_ticket,omitempty"`
	Queue        Queue     `yaml:"queue,omitempty"`
	Focus        string    `yaml:"focus,omitempty"`
	CreatedAt    time.Time `yaml:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

func New(id string) *Agent {
	now := time.Now()
	return &Agent{
		ID:        id,
		Status:    StatusAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy.
func (a *Agent) Clone() *Agent {
	cp := *a
	cp.Queue = append(Queue(nil), a.Queue...)
	return &cp
}
