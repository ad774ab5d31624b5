package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/spectrum-hq/spectrum/internal/ticket"
	"github.com/spectrum-hq/spectrum/pkg/cerr"
)

var (
	app = kingpin.New("spectrum", "Dependency-aware ticket coordination for agent teams")

	// Daemon
	serveCmd = app.Command("serve", "Run the coordination daemon")

	// Dependencies
	depCmd = app.Command("dependency", "Manage blocked-by edges between tickets").Alias("dep")

	depAddCmd    = depCmd.Command("add", "Record that a ticket is blocked by another")
	depAddTicket = depAddCmd.Arg("ticket", "Dependent ticket ID").Required().String()
	depAddOn     = depAddCmd.Arg("prerequisite", "Prerequisite ticket ID").Required().String()

	depRemoveCmd    = depCmd.Command("remove", "Remove a blocked-by edge")
	depRemoveTicket = depRemoveCmd.Arg("ticket", "Dependent ticket ID").Required().String()
	depRemoveOn     = depRemoveCmd.Arg("prerequisite", "Prerequisite ticket ID").Required().String()

	depTreeCmd    = depCmd.Command("tree", "Render the prerequisite tree under a ticket")
	depTreeTicket = depTreeCmd.Arg("ticket", "Ticket ID").Required().String()

	depPathCmd    = depCmd.Command("critical-path", "Show the longest prerequisite chain ending at a ticket")
	depPathTicket = depPathCmd.Arg("ticket", "Ticket ID").Required().String()

	cyclesCmd = app.Command("cycles", "Scan the dependency graph for cycles")

	readyCmd = app.Command("ready", "List tickets that can be assigned right now")

	// Queue and assignment
	queueCmd = app.Command("queue", "Manage agent work queues")

	enqueueCmd    = queueCmd.Command("add", "Append a ticket to the tail of an agent's queue")
	enqueueAgent  = enqueueCmd.Arg("agent", "Agent ID").Required().String()
	enqueueTicket = enqueueCmd.Arg("ticket", "Ticket ID").Required().String()

	assignCmd   = app.Command("assign", "Hand an agent the next ticket from its queue")
	assignAgent = assignCmd.Arg("agent", "Agent ID").Required().String()

	completeCmd    = app.Command("complete", "Report that an agent finished its active ticket")
	completeAgent  = completeCmd.Arg("agent", "Agent ID").Required().String()
	completeTicket = completeCmd.Arg("ticket", "Ticket ID").Required().String()
	completeStatus = completeCmd.Flag("status", "Terminal status").Default(string(ticket.StatusDone)).Enum(string(ticket.StatusDone), string(ticket.StatusCancelled))

	// Agents
	agentCmd = app.Command("agent", "Agent management commands")

	agentAddCmd = agentCmd.Command("add", "Register an agent")
	agentAddID  = agentAddCmd.Arg("id", "Agent ID").Required().String()

	agentShowCmd = agentCmd.Command("show", "Show an agent's status and queue")
	agentShowID  = agentShowCmd.Arg("id", "Agent ID").Required().String()

	balanceCmd = agentCmd.Command("balance", "Show the per-agent load distribution")

	// Tickets
	ticketCmd = app.Command("ticket", "Ticket mirror commands")

	ticketShowCmd = ticketCmd.Command("show", "Show a mirrored ticket")
	ticketShowID  = ticketShowCmd.Arg("id", "Ticket ID").Required().String()

	ticketStatusCmd   = ticketCmd.Command("status", "Override a mirrored ticket's status")
	ticketStatusID    = ticketStatusCmd.Arg("id", "Ticket ID").Required().String()
	ticketStatusValue = ticketStatusCmd.Arg("status", "New status").Required().String()

	ticketQualityCmd  = ticketCmd.Command("quality", "Set a ticket's quality gate")
	ticketQualityID   = ticketQualityCmd.Arg("id", "Ticket ID").Required().String()
	ticketQualityPass = ticketQualityCmd.Flag("pass", "Mark the gate as passed").Bool()
	ticketQualityFail = ticketQualityCmd.Flag("fail", "Mark the gate as failed").Bool()

	ticketLinkCmd    = ticketCmd.Command("link", "Link a child ticket under a parent")
	ticketLinkParent = ticketLinkCmd.Arg("parent", "Parent ticket ID").Required().String()
	ticketLinkChild  = ticketLinkCmd.Arg("child", "Child ticket ID").Required().String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, command); err != nil {
		fmt.Fprintf(os.Stderr, "spectrum: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps coded failures to distinct process exit codes so scripts
// can branch on the failure kind without parsing stderr.
func exitCode(err error) int {
	var coded *cerr.Error
	if errors.As(err, &coded) {
		return coded.Code.ExitCode()
	}
	return 1
}
