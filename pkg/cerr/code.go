package cerr

import "net/http"

// Code classifies coordinator errors. Every rejected operation maps to
// exactly one code, and each code has a stable HTTP status and CLI exit
// status so callers can react without parsing message text.
type Code int

const (
	OK                  = Code(0)
	Internal            = Code(1)
	InvalidArgument     = Code(2)
	NotFound            = Code(3)
	AlreadyExists       = Code(4)
	Cycle               = Code(5)
	DuplicateQueueEntry = Code(6)
	EmptyQueue          = Code(7)
	AgentBusy           = Code(8)
	NotReady            = Code(9)
	CapacityExceeded    = Code(10)
	LockTimeout         = Code(11)
	StaleSnapshot       = Code(12)
	Corrupt             = Code(13)
)

var codeNames = map[Code]string{
	OK:                  "ok",
	Internal:            "internal",
	InvalidArgument:     "invalid_argument",
	NotFound:            "not_found",
	AlreadyExists:       "already_exists",
	Cycle:               "cycle",
	DuplicateQueueEntry: "duplicate_queue_entry",
	EmptyQueue:          "empty_queue",
	AgentBusy:           "agent_busy",
	NotReady:            "not_ready",
	CapacityExceeded:    "capacity_exceeded",
	LockTimeout:         "lock_timeout",
	StaleSnapshot:       "stale_snapshot",
	Corrupt:             "corrupt",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Code) HTTPCode() int {
	switch c {
	case OK:
		return http.StatusOK
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists, DuplicateQueueEntry, StaleSnapshot:
		return http.StatusConflict
	case Cycle, AgentBusy, NotReady:
		return http.StatusPreconditionFailed
	case EmptyQueue:
		return http.StatusUnprocessableEntity
	case CapacityExceeded:
		return http.StatusTooManyRequests
	case LockTimeout:
		return http.StatusServiceUnavailable
	case Corrupt, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps a code to the process exit status used by the CLI. Each
// failure class gets a distinct value so scripted callers can branch on it.
func (c Code) ExitCode() int {
	if c < OK || c > Corrupt {
		return 1
	}
	return int(c)
}
