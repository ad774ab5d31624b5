package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/spectrum-hq/spectrum/internal/config"
	"github.com/spectrum-hq/spectrum/internal/coordinator"
	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
	"github.com/spectrum-hq/spectrum/pkg/clog"
	"github.com/spectrum-hq/spectrum/pkg/storage"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	bold   = color.New(color.Bold)
)

func run(ctx context.Context, command string) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	logger := newLogger(env)

	if command == serveCmd.FullCommand() {
		return serve(ctx, env, logger)
	}

	store, err := newStore(ctx, env)
	if err != nil {
		return err
	}
	coord := coordinator.New(store, nil, logger)

	switch command {
	case depAddCmd.FullCommand():
		if err := coord.AddDependency(ctx, *depAddTicket, *depAddOn); err != nil {
			if cerr.IsCode(err, cerr.Cycle) {
				red.Fprintf(os.Stderr, "cycle: %s\n", strings.Join(cerr.DetailsOf(err), " -> "))
			}
			return err
		}
		green.Printf("%s is now blocked by %s\n", *depAddTicket, *depAddOn)
		return nil

	case depRemoveCmd.FullCommand():
		if err := coord.RemoveDependency(ctx, *depRemoveTicket, *depRemoveOn); err != nil {
			return err
		}
		green.Printf("%s is no longer blocked by %s\n", *depRemoveTicket, *depRemoveOn)
		return nil

	case depTreeCmd.FullCommand():
		rendered, err := coord.Tree(ctx, *depTreeTicket)
		if err != nil {
			return err
		}
		fmt.Print(rendered)
		return nil

	case depPathCmd.FullCommand():
		path, length, err := coord.CriticalPath(ctx, *depPathTicket)
		if err != nil {
			return err
		}
		bold.Printf("critical path (length %d):\n", length)
		for _, id := range path {
			fmt.Printf("  %s\n", id)
		}
		return nil

	case cyclesCmd.FullCommand():
		edges, err := coord.Cycles(ctx)
		if err != nil {
			return err
		}
		if len(edges) == 0 {
			green.Println("no cycles")
			return nil
		}
		for _, e := range edges {
			red.Printf("back edge: %s blocked-by %s\n", e.Dependent, e.Prerequisite)
		}
		return cerr.NewError(cerr.Cycle, fmt.Sprintf("found %d back edge(s)", len(edges)), nil)

	case readyCmd.FullCommand():
		ready, err := coord.ReadySet(ctx)
		if err != nil {
			return err
		}
		if len(ready) == 0 {
			yellow.Println("nothing is ready")
			return nil
		}
		for _, id := range ready {
			fmt.Println(id)
		}
		return nil

	case enqueueCmd.FullCommand():
		if err := coord.Enqueue(ctx, *enqueueAgent, *enqueueTicket); err != nil {
			return err
		}
		green.Printf("queued %s for %s\n", *enqueueTicket, *enqueueAgent)
		return nil

	case assignCmd.FullCommand():
		ticketID, err := coord.AssignNext(ctx, *assignAgent)
		if err != nil {
			if cerr.IsCode(err, cerr.NotReady) {
				for _, id := range cerr.DetailsOf(err) {
					yellow.Fprintf(os.Stderr, "waiting on %s\n", id)
				}
			}
			return err
		}
		green.Printf("%s started %s\n", *assignAgent, ticketID)
		return nil

	case completeCmd.FullCommand():
		report, err := coord.ReportCompletion(ctx, *completeAgent, *completeTicket, ticket.Status(*completeStatus))
		if err != nil {
			return err
		}
		green.Printf("%s finished %s\n", *completeAgent, *completeTicket)
		for _, id := range report.ReadyTickets {
			bold.Printf("now ready: %s\n", id)
		}
		for _, id := range report.ClosableParents {
			bold.Printf("closable parent: %s\n", id)
		}
		return nil

	case agentAddCmd.FullCommand():
		if err := coord.RegisterAgent(ctx, *agentAddID); err != nil {
			return err
		}
		green.Printf("registered %s\n", *agentAddID)
		return nil

	case agentShowCmd.FullCommand():
		a, err := coord.InspectAgent(ctx, *agentShowID)
		if err != nil {
			return err
		}
		bold.Printf("%s\n", a.ID)
		fmt.Printf("  status: %s\n", a.Status)
		if a.ActiveTicket != "" {
			fmt.Printf("  active: %s\n", a.ActiveTicket)
		}
		for i, id := range a.Queue {
			fmt.Printf("  queue[%d]: %s\n", i, id)
		}
		return nil

	case balanceCmd.FullCommand():
		loads, err := coord.TeamBalance(ctx)
		if err != nil {
			return err
		}
		for _, l := range loads {
			fmt.Printf("%-20s active=%d queued=%d total=%d\n", l.AgentID, l.Active, l.QueueDepth, l.Total())
		}
		return nil

	case ticketShowCmd.FullCommand():
		t, err := coord.Inspect(ctx, *ticketShowID)
		if err != nil {
			return err
		}
		printTicket(t)
		return nil

	case ticketStatusCmd.FullCommand():
		if err := coord.SetTicketStatus(ctx, *ticketStatusID, ticket.Status(*ticketStatusValue)); err != nil {
			return err
		}
		green.Printf("%s is now %s\n", *ticketStatusID, *ticketStatusValue)
		return nil

	case ticketQualityCmd.FullCommand():
		if *ticketQualityPass == *ticketQualityFail {
			return cerr.NewError(cerr.InvalidArgument, "pass exactly one of --pass or --fail", nil)
		}
		if err := coord.SetQuality(ctx, *ticketQualityID, *ticketQualityPass); err != nil {
			return err
		}
		green.Printf("quality gate for %s: %v\n", *ticketQualityID, *ticketQualityPass)
		return nil

	case ticketLinkCmd.FullCommand():
		if err := coord.LinkChild(ctx, *ticketLinkParent, *ticketLinkChild); err != nil {
			return err
		}
		green.Printf("%s is now a child of %s\n", *ticketLinkChild, *ticketLinkParent)
		return nil
	}

	return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown command %s", command), nil)
}

func printTicket(t *ticket.Ticket) {
	bold.Printf("%s\n", t.ID)
	fmt.Printf("  status: %s\n", t.Status)
	fmt.Printf("  quality_ok: %v\n", t.QualityOK)
	if t.Assignee != "" {
		fmt.Printf("  assignee: %s\n", t.Assignee)
	}
	if t.Parent != "" {
		fmt.Printf("  parent: %s\n", t.Parent)
	}
	if len(t.Children) > 0 {
		fmt.Printf("  children: %s\n", strings.Join(t.Children, ", "))
	}
	if len(t.BlockedBy) > 0 {
		fmt.Printf("  blocked_by: %s\n", strings.Join(t.BlockedBy, ", "))
	}
}

func newLogger(env *config.Env) *slog.Logger {
	handler := clog.NewAttributesHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.SlogLevel(),
	}))
	return slog.New(handler)
}

func newStore(ctx context.Context, env *config.Env) (*registry.Store, error) {
	switch env.RegistryEnv.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, err
		}
		// S3 writes are already last-writer-wins against versioned saves;
		// the CAS check in the repository catches concurrent movement.
		return registry.NewStore(registry.NewYAMLRepository(s), registry.NopLock{}), nil
	default:
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, err
		}
		lock := registry.NewFileLock(env.BaseDir, time.Duration(env.LockTimeoutSeconds)*time.Second)
		return registry.NewStore(registry.NewYAMLRepository(s), lock), nil
	}
}
