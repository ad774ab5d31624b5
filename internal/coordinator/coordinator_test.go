package coordinator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectrum-hq/spectrum/internal/agent"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
	"github.com/spectrum-hq/spectrum/pkg/storage"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := registry.NewStore(
		registry.NewYAMLRepository(s),
		registry.NewFileLock(s.BasePath(), time.Second),
	)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, nil, logger)
}

func (c *Coordinator) snapshot(t *testing.T) *registry.Snapshot {
	t.Helper()
	var snap *registry.Snapshot
	err := c.store.View(context.Background(), func(s *registry.Snapshot) error {
		snap = s.Clone()
		return nil
	})
	require.NoError(t, err)
	return snap
}

func TestRejectedEdgeLeavesGraphIntact(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.AddDependency(ctx, "A", "B"))
	err := c.AddDependency(ctx, "B", "A")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Cycle))

	snap := c.snapshot(t)
	assert.True(t, snap.Ticket("A").BlockedByContains("B"))
	assert.False(t, snap.Ticket("B").BlockedByContains("A"))
}

func TestAssignNextDefersBlockedHead(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.AddDependency(ctx, "X", "Y"))
	require.NoError(t, c.Enqueue(ctx, "red", "X"))

	_, err := c.AssignNext(ctx, "red")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotReady))
	assert.Equal(t, []string{"Y"}, cerr.DetailsOf(err))

	// X stays at the head; queue order is never skipped.
	snap := c.snapshot(t)
	head, ok := snap.Agent("red").Queue.Peek()
	require.True(t, ok)
	assert.Equal(t, "X", head)
	assert.Empty(t, snap.Agent("red").ActiveTicket)
}

func TestAssignNextSucceedsAfterPrerequisiteDone(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.AddDependency(ctx, "X", "Y"))
	require.NoError(t, c.Enqueue(ctx, "red", "X"))
	require.NoError(t, c.SetTicketStatus(ctx, "Y", ticket.StatusDone))

	assigned, err := c.AssignNext(ctx, "red")
	require.NoError(t, err)
	assert.Equal(t, "X", assigned)

	snap := c.snapshot(t)
	a := snap.Agent("red")
	assert.Equal(t, agent.StatusBusy, a.Status)
	assert.Equal(t, "X", a.ActiveTicket)
	assert.Equal(t, 0, a.Queue.Len())

	x := snap.Ticket("X")
	assert.Equal(t, ticket.StatusInProgress, x.Status)
	assert.Equal(t, "red", x.Assignee)
}

func TestAssignNextAgentBusy(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.Enqueue(ctx, "red", "T1"))
	require.NoError(t, c.Enqueue(ctx, "red", "T2"))

	_, err := c.AssignNext(ctx, "red")
	require.NoError(t, err)

	_, err = c.AssignNext(ctx, "red")
	assert.True(t, cerr.IsCode(err, cerr.AgentBusy))
}

func TestAssignNextEmptyQueue(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	_, err := c.AssignNext(ctx, "red")
	assert.True(t, cerr.IsCode(err, cerr.EmptyQueue))
}

func TestDuplicateEnqueue(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.Enqueue(ctx, "red", "X"))

	err := c.Enqueue(ctx, "red", "X")
	assert.True(t, cerr.IsCode(err, cerr.DuplicateQueueEntry))

	snap := c.snapshot(t)
	assert.Equal(t, 1, snap.Agent("red").Queue.Len())
}

func TestFIFOOrderPreserved(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	for _, id := range []string{"T1", "T2", "T3"} {
		require.NoError(t, c.Enqueue(ctx, "red", id))
	}

	for _, want := range []string{"T1", "T2", "T3"} {
		assigned, err := c.AssignNext(ctx, "red")
		require.NoError(t, err)
		assert.Equal(t, want, assigned)
		_, err = c.ReportCompletion(ctx, "red", assigned, ticket.StatusDone)
		require.NoError(t, err)
	}
}

func TestReportCompletionFreesAgentAndSurfacesReady(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.AddDependency(ctx, "X", "Y"))
	require.NoError(t, c.Enqueue(ctx, "red", "Y"))

	_, err := c.AssignNext(ctx, "red")
	require.NoError(t, err)

	report, err := c.ReportCompletion(ctx, "red", "Y", ticket.StatusDone)
	require.NoError(t, err)
	assert.Contains(t, report.ReadyTickets, "X")

	snap := c.snapshot(t)
	a := snap.Agent("red")
	assert.Equal(t, agent.StatusAvailable, a.Status)
	assert.Empty(t, a.ActiveTicket)
	assert.Equal(t, ticket.StatusDone, snap.Ticket("Y").Status)
}

func TestReportCompletionIsNotRepeatable(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.Enqueue(ctx, "red", "X"))
	_, err := c.AssignNext(ctx, "red")
	require.NoError(t, err)

	_, err = c.ReportCompletion(ctx, "red", "X", ticket.StatusDone)
	require.NoError(t, err)

	_, err = c.ReportCompletion(ctx, "red", "X", ticket.StatusCancelled)
	require.Error(t, err)

	// The failed second report changes nothing.
	snap := c.snapshot(t)
	assert.Equal(t, ticket.StatusDone, snap.Ticket("X").Status)
}

func TestReportCompletionRejectsNonTerminalStatus(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.Enqueue(ctx, "red", "X"))
	_, err := c.AssignNext(ctx, "red")
	require.NoError(t, err)

	_, err = c.ReportCompletion(ctx, "red", "X", ticket.StatusOpen)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestParentClosableCascade(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.RegisterAgent(ctx, "red"))
	require.NoError(t, c.LinkChild(ctx, "P", "C1"))
	require.NoError(t, c.LinkChild(ctx, "P", "C2"))

	require.NoError(t, c.Enqueue(ctx, "red", "C1"))
	_, err := c.AssignNext(ctx, "red")
	require.NoError(t, err)
	report, err := c.ReportCompletion(ctx, "red", "C1", ticket.StatusDone)
	require.NoError(t, err)
	assert.Empty(t, report.ClosableParents)

	require.NoError(t, c.Enqueue(ctx, "red", "C2"))
	_, err = c.AssignNext(ctx, "red")
	require.NoError(t, err)
	report, err = c.ReportCompletion(ctx, "red", "C2", ticket.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, []string{"P"}, report.ClosableParents)

	// The coordinator surfaces the fact; it never closes the parent itself.
	snap := c.snapshot(t)
	assert.Equal(t, ticket.StatusOpen, snap.Ticket("P").Status)
}

func TestCriticalPathThroughCoordinator(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.AddDependency(ctx, "A", "B"))
	require.NoError(t, c.AddDependency(ctx, "B", "C"))

	path, length, err := c.CriticalPath(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 3, length)
	assert.Equal(t, []string{"C", "B", "A"}, path)
}

func TestReadySetExcludesQualityFailures(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t)

	require.NoError(t, c.AddDependency(ctx, "A", "B"))
	require.NoError(t, c.SetQuality(ctx, "B", false))

	ready, err := c.ReadySet(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ready, "A")
	assert.NotContains(t, ready, "B")
}
