package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// Engine evaluates the blocked-by graph over a snapshot's ticket set.
// Edges are stored on the dependent side (Ticket.BlockedBy); parent/child
// links are a separate tree and are never traversed here.
type Engine struct {
	tickets map[string]*ticket.Ticket
}

func New(tickets map[string]*ticket.Ticket) *Engine {
	return &Engine{tickets: tickets}
}

// AddEdge records "dependent is blocked by prerequisite". The edge is
// checked before it is materialized: if dependent is reachable from
// prerequisite over existing edges, committing would close a cycle, so the
// call fails and the graph is never observably cyclic. Callers must choose
// which edge to remove themselves; edges are never auto-broken.
func (e *Engine) AddEdge(dependent, prerequisite string) error {
	if dependent == prerequisite {
		return cerr.NewError(cerr.Cycle, fmt.Sprintf("ticket %s cannot block itself", dependent), nil)
	}
	dep, ok := e.tickets[dependent]
	if !ok {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", dependent), nil)
	}
	if _, ok := e.tickets[prerequisite]; !ok {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", prerequisite), nil)
	}
	if dep.BlockedByContains(prerequisite) {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("%s is already blocked by %s", dependent, prerequisite), nil)
	}
	if path := e.pathBetween(prerequisite, dependent); path != nil {
		return cerr.NewErrorWithDetails(cerr.Cycle,
			fmt.Sprintf("%s blocked-by %s would create a cycle (%s)", dependent, prerequisite, strings.Join(path, " -> ")),
			nil, path)
	}
	dep.AddBlockedBy(prerequisite)
	return nil
}

// RemoveEdge drops "dependent is blocked by prerequisite". Idempotent: a
// missing edge or missing ticket is a no-op.
func (e *Engine) RemoveEdge(dependent, prerequisite string) {
	if dep, ok := e.tickets[dependent]; ok {
		dep.RemoveBlockedBy(prerequisite)
	}
}

// IsReady reports whether every prerequisite of id has reached a terminal
// state (Done, or Cancelled as satisfied-by-removal). A ticket with no
// prerequisites is trivially ready. Prerequisites missing from the snapshot
// count as unsatisfied rather than satisfied.
func (e *Engine) IsReady(id string) bool {
	return len(e.Blocking(id)) == 0
}

// Blocking returns the prerequisites of id that are not yet satisfied, in
// lexicographic order.
func (e *Engine) Blocking(id string) []string {
	t, ok := e.tickets[id]
	if !ok {
		return nil
	}
	var blocking []string
	for _, pre := range t.BlockedBy {
		p, ok := e.tickets[pre]
		if !ok || !p.Status.Terminal() {
			blocking = append(blocking, pre)
		}
	}
	sort.Strings(blocking)
	return blocking
}

// CriticalPath returns the longest chain of prerequisite edges ending at id,
// prerequisites first, together with its length. Ties are broken by the
// lexicographically smaller ticket ID at each branch so the result is
// deterministic. Valid because the add-time guard keeps the graph acyclic.
func (e *Engine) CriticalPath(id string) ([]string, int, error) {
	if _, ok := e.tickets[id]; !ok {
		return nil, 0, cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", id), nil)
	}
	memo := make(map[string][]string, len(e.tickets))
	path := e.longestChain(id, memo)
	return path, len(path), nil
}

// longestChain computes the memoized longest path ending at id, inclusive.
func (e *Engine) longestChain(id string, memo map[string][]string) []string {
	if cached, ok := memo[id]; ok {
		return cached
	}
	t, ok := e.tickets[id]
	if !ok {
		memo[id] = []string{id}
		return memo[id]
	}
	var best []string
	prereqs := append([]string(nil), t.BlockedBy...)
	sort.Strings(prereqs)
	for _, pre := range prereqs {
		chain := e.longestChain(pre, memo)
		// Prerequisites are visited in lexicographic order and only a
		// strictly longer chain replaces the best, so ties resolve to the
		// smaller ticket ID.
		if len(chain) > len(best) {
			best = chain
		}
	}
	out := make([]string, 0, len(best)+1)
	out = append(out, best...)
	out = append(out, id)
	memo[id] = out
	return out
}

// BackEdge identifies the edge that closes a cycle: Dependent is blocked by
// Prerequisite, and Prerequisite is reachable from Dependent.
type BackEdge struct {
	Dependent    string `json:"dependent"`
	Prerequisite string `json:"prerequisite"`
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

// Cycles runs a three-color depth-first scan over the whole graph and
// reports every back edge found. Given the add-time guard this always
// returns empty; it exists to detect corruption from out-of-band edits to
// the persisted snapshot.
func (e *Engine) Cycles() []BackEdge {
	colors := make(map[string]int, len(e.tickets))
	var found []BackEdge

	ids := make([]string, 0, len(e.tickets))
	for id := range e.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var visit func(id string)
	visit = func(id string) {
		colors[id] = colorGray
		t := e.tickets[id]
		prereqs := append([]string(nil), t.BlockedBy...)
		sort.Strings(prereqs)
		for _, pre := range prereqs {
			if _, ok := e.tickets[pre]; !ok {
				continue
			}
			switch colors[pre] {
			case colorWhite:
				visit(pre)
			case colorGray:
				found = append(found, BackEdge{Dependent: id, Prerequisite: pre})
			}
		}
		colors[id] = colorBlack
	}

	for _, id := range ids {
		if colors[id] == colorWhite {
			visit(id)
		}
	}
	return found
}

// pathBetween returns the blocked-by path from 'from' to 'to' (inclusive on
// both ends), or nil if 'to' is not reachable from 'from'.
func (e *Engine) pathBetween(from, to string) []string {
	var stack []string
	seen := make(map[string]bool)

	var visit func(id string) bool
	visit = func(id string) bool {
		if seen[id] {
			return false
		}
		seen[id] = true
		stack = append(stack, id)
		if id == to {
			return true
		}
		if t, ok := e.tickets[id]; ok {
			for _, pre := range t.BlockedBy {
				if visit(pre) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		return false
	}

	if visit(from) {
		return append([]string(nil), stack...)
	}
	return nil
}
