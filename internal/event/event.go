package event

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type identifies a kind of coordinator event.
type Type string

const (
	// Assignment events
	AssignmentCreated Type = "assignment.created"

	// Ticket events
	TicketCompleted Type = "ticket.completed"
	TicketReady     Type = "ticket.ready"
	ParentClosable  Type = "parent.closable"

	// Dependency events
	EdgeAdded    Type = "edge.added"
	EdgeRejected Type = "edge.rejected"
)

// Event is a typed system event.
type Event[T any] struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      T         `json:"data"`
}

// Message is the serialized form used on the wire.
type Message struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// New creates a typed event with a fresh ULID.
func New[T any](source string, data T) *Event[T] {
	return &Event[T]{
		ID:        newEventID(),
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// ToMessage converts a typed event to its transport form.
func (e *Event[T]) ToMessage() (*Message, error) {
	rawData, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        e.ID,
		Type:      inferType(e.Data),
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Data:      rawData,
	}, nil
}

// FromMessage converts a transport message back to a typed event.
func FromMessage[T any](msg *Message) (*Event[T], error) {
	var data T
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	return &Event[T]{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
		Data:      data,
	}, nil
}

// inferType maps a data payload type to its event Type.
func inferType(data any) Type {
	dataType := reflect.TypeOf(data)
	if dataType.Kind() == reflect.Ptr {
		dataType = dataType.Elem()
	}

	switch dataType.Name() {
	case "AssignmentCreatedData":
		return AssignmentCreated
	case "TicketCompletedData":
		return TicketCompleted
	case "TicketReadyData":
		return TicketReady
	case "ParentClosableData":
		return ParentClosable
	case "EdgeAddedData":
		return EdgeAdded
	case "EdgeRejectedData":
		return EdgeRejected
	default:
		return Type(camelToDotted(dataType.Name()))
	}
}

func camelToDotted(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func newEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
}

// AssignmentCreatedData fires when an agent starts a ticket.
type AssignmentCreatedData struct {
	AgentID  string `json:"agent_id"`
	TicketID string `json:"ticket_id"`
}

// TicketCompletedData fires when an active ticket reaches a terminal status.
type TicketCompletedData struct {
	AgentID  string `json:"agent_id"`
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// TicketReadyData fires for each ticket whose last prerequisite just cleared.
type TicketReadyData struct {
	TicketID string `json:"ticket_id"`
}

// ParentClosableData fires when a completion leaves every child of a parent
// in a terminal status.
type ParentClosableData struct {
	ParentID string `json:"parent_id"`
}

// EdgeAddedData fires when a blocked-by edge is recorded.
type EdgeAddedData struct {
	DependentID    string `json:"dependent_id"`
	PrerequisiteID string `json:"prerequisite_id"`
}

// EdgeRejectedData fires when an edge is refused because it would close a
// cycle.
type EdgeRejectedData struct {
	DependentID    string   `json:"dependent_id"`
	PrerequisiteID string   `json:"prerequisite_id"`
	Path           []string `json:"path"`
}
