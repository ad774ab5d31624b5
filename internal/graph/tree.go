package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

// Tree renders the prerequisite subgraph rooted at id, one node per line,
// children indented under their dependent. Tickets reachable through more
// than one path are expanded once and marked on later encounters.
func (e *Engine) Tree(id string) (string, error) {
	t, ok := e.tickets[id]
	if !ok {
		return "", cerr.NewError(cerr.NotFound, fmt.Sprintf("ticket %s not found", id), nil)
	}

	var b strings.Builder
	expanded := make(map[string]bool)

	var render func(id string, depth int)
	render = func(id string, depth int) {
		indent := strings.Repeat("  ", depth)
		t, ok := e.tickets[id]
		if !ok {
			fmt.Fprintf(&b, "%s%s (unknown)\n", indent, id)
			return
		}
		if expanded[id] {
			fmt.Fprintf(&b, "%s%s [%s] (see above)\n", indent, id, t.Status)
			return
		}
		expanded[id] = true
		fmt.Fprintf(&b, "%s%s [%s]\n", indent, id, t.Status)
		prereqs := append([]string(nil), t.BlockedBy...)
		sort.Strings(prereqs)
		for _, pre := range prereqs {
			render(pre, depth+1)
		}
	}
	render(t.ID, 0)
	return b.String(), nil
}
