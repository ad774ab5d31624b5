package readiness

import (
	"testing"

	"github.com/spectrum-hq/spectrum/internal/registry"
	"github.com/spectrum-hq/spectrum/internal/ticket"
)

func TestCheckAssignable(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("T1")

	res, err := NewChecker(snap).Check("T1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != Assignable {
		t.Errorf("expected Assignable, got %s (%s)", res.State, res.Reason)
	}
}

func TestCheckBlocked(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("T1").AddBlockedBy("T2")
	snap.EnsureTicket("T2")

	res, err := NewChecker(snap).Check("T1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != Blocked {
		t.Fatalf("expected Blocked, got %s", res.State)
	}
	if len(res.Blocking) != 1 || res.Blocking[0] != "T2" {
		t.Errorf("expected blocking set [T2], got %v", res.Blocking)
	}
}

func TestCheckBlockedClearsWhenPrerequisiteFinishes(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("T1").AddBlockedBy("T2")
	snap.EnsureTicket("T2").Status = ticket.StatusDone

	res, err := NewChecker(snap).Check("T1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != Assignable {
		t.Errorf("expected Assignable once prerequisite is done, got %s", res.State)
	}
}

func TestCheckNotEligibleParent(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("P").AddChild("C")
	snap.EnsureTicket("C")

	res, err := NewChecker(snap).Check("P")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != NotEligible {
		t.Errorf("expected NotEligible for parent, got %s", res.State)
	}
}

func TestCheckNotEligibleStatus(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("T1").Status = ticket.StatusInProgress

	res, err := NewChecker(snap).Check("T1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != NotEligible {
		t.Errorf("expected NotEligible for in-progress ticket, got %s", res.State)
	}
}

func TestCheckNotEligibleQualityGate(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("T1").QualityOK = false

	res, err := NewChecker(snap).Check("T1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != NotEligible {
		t.Errorf("expected NotEligible on failed quality gate, got %s", res.State)
	}
}

func TestCheckEligibilityWinsOverDependencies(t *testing.T) {
	// A parent that is also blocked reports NotEligible: clearing its
	// prerequisites would still not make it startable.
	snap := registry.NewSnapshot()
	p := snap.EnsureTicket("P")
	p.AddChild("C")
	p.AddBlockedBy("T2")
	snap.EnsureTicket("C")
	snap.EnsureTicket("T2")

	res, err := NewChecker(snap).Check("P")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.State != NotEligible {
		t.Errorf("expected NotEligible, got %s", res.State)
	}
}

func TestReadySet(t *testing.T) {
	snap := registry.NewSnapshot()
	snap.EnsureTicket("T1")
	snap.EnsureTicket("T2").AddBlockedBy("T1")
	snap.EnsureTicket("T3")

	ready := NewChecker(snap).ReadySet()
	want := []string{"T1", "T3"}
	if len(ready) != len(want) {
		t.Fatalf("expected ready set %v, got %v", want, ready)
	}
	for i := range want {
		if ready[i] != want[i] {
			t.Fatalf("expected ready set %v, got %v", want, ready)
		}
	}
}
