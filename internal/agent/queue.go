package agent

// Queue is a per-agent FIFO backlog of ticket IDs. The only mutations are
// Push (append to tail) and Pop (remove from head); no operation exists to
// insert, remove from the middle, or reorder, so arrival order is the
// execution order as a property of the type rather than a convention.
type Queue []string

// Push appends a ticket ID at the tail.
func (q *Queue) Push(ticketID string) {
	*q = append(*q, ticketID)
}

// Peek returns the head entry without removing it.
func (q Queue) Peek() (string, bool) {
	if len(q) == 0 {
		return "", false
	}
	return q[0], true
}

// Pop removes and returns the head entry.
func (q *Queue) Pop() (string, bool) {
	if len(*q) == 0 {
		return "", false
	}
	head := (*q)[0]
	*q = (*q)[1:]
	return head, true
}

// Contains reports whether ticketID is anywhere in the backlog.
func (q Queue) Contains(ticketID string) bool {
	for _, id := range q {
		if id == ticketID {
			return true
		}
	}
	return false
}

// Len returns the backlog depth.
func (q Queue) Len() int {
	return len(q)
}
