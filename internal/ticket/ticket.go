package ticket

import (
	"sort"
	"time"
)

// Status represents ticket status. The external ticket store is the source
// of truth for everything else; only the fields the coordinator needs are
// mirrored here.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

// Valid reports whether s is one of the known ticket statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status satisfies prerequisites: Done counts
// as complete, Cancelled as satisfied-by-removal.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

// Ticket mirrors the coordination-relevant slice of an externally stored
// work item.
type Ticket struct {
	ID        string    `yaml:"id"`
	Status    Status    `yaml:"status"`
	Parent    string    `yaml:"parent,omitempty"`
	Children  []string  `yaml:"children,omitempty"`
	BlockedBy []string  `yaml:"blocked_by,omitempty"`
	Assignee  string    `yaml:"assignee,omitempty"`
	QualityOK bool      `yaml:"quality_ok"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func New(id string) *Ticket {
	now := time.Now()
	return &Ticket{
		ID:        id,
		Status:    StatusOpen,
		QualityOK: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsParent reports whether the ticket groups children. Parent tickets hold
// no work directly: they are never assignable and never enqueued.
func (t *Ticket) IsParent() bool {
	return len(t.Children) > 0
}

// BlockedByContains reports whether id is a prerequisite of t.
func (t *Ticket) BlockedByContains(id string) bool {
	for _, b := range t.BlockedBy {
		if b == id {
			return true
		}
	}
	return false
}

// AddBlockedBy records a prerequisite edge. The caller is responsible for
// cycle checking before committing the edge.
func (t *Ticket) AddBlockedBy(id string) {
	if t.BlockedByContains(id) {
		return
	}
	t.BlockedBy = append(t.BlockedBy, id)
	sort.Strings(t.BlockedBy)
	t.UpdatedAt = time.Now()
}

// RemoveBlockedBy drops a prerequisite edge. No-op if absent.
func (t *Ticket) RemoveBlockedBy(id string) {
	for i, b := range t.BlockedBy {
		if b == id {
			t.BlockedBy = append(t.BlockedBy[:i], t.BlockedBy[i+1:]...)
			t.UpdatedAt = time.Now()
			return
		}
	}
}

// AddChild links a child ticket, keeping the list sorted for stable output.
func (t *Ticket) AddChild(id string) {
	for _, c := range t.Children {
		if c == id {
			return
		}
	}
	t.Children = append(t.Children, id)
	sort.Strings(t.Children)
	t.UpdatedAt = time.Now()
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Children = append([]string(nil), t.Children...)
	cp.BlockedBy = append([]string(nil), t.BlockedBy...)
	return &cp
}
