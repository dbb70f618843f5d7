package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/pkg/models"
)

type fakeConfirmer struct {
	allow bool
	err   error
	calls int
}

func (f *fakeConfirmer) Confirm(ctx context.Context, toolName string, args []byte) (bool, error) {
	f.calls++
	return f.allow, f.err
}

func TestDecide_YesModeAlwaysExecutes(t *testing.T) {
	p := NewConfirmationPolicy(config.ConfirmYes, nil)
	for _, dc := range []models.DangerClass{models.DangerSafe, models.DangerMutating, models.DangerPrivileged} {
		if got := p.Decide(dc); got != DecisionExecute {
			t.Errorf("YES mode + %s: expected EXECUTE, got %s", dc, got)
		}
	}
}

func TestDecide_NoModeAlwaysAsks(t *testing.T) {
	p := NewConfirmationPolicy(config.ConfirmNo, nil)
	for _, dc := range []models.DangerClass{models.DangerSafe, models.DangerMutating, models.DangerPrivileged} {
		if got := p.Decide(dc); got != DecisionAsk {
			t.Errorf("NO mode + %s: expected ASK, got %s", dc, got)
		}
	}
}

func TestDecide_AutoModeExecutesOnlySafe(t *testing.T) {
	p := NewConfirmationPolicy(config.ConfirmAuto, nil)
	if got := p.Decide(models.DangerSafe); got != DecisionExecute {
		t.Errorf("AUTO + SAFE: expected EXECUTE, got %s", got)
	}
	if got := p.Decide(models.DangerMutating); got != DecisionAsk {
		t.Errorf("AUTO + MUTATING: expected ASK, got %s", got)
	}
	if got := p.Decide(models.DangerPrivileged); got != DecisionAsk {
		t.Errorf("AUTO + PRIVILEGED: expected ASK, got %s", got)
	}
}

func TestResolve_YesModeNeverCallsConfirmer(t *testing.T) {
	confirmer := &fakeConfirmer{allow: false}
	p := NewConfirmationPolicy(config.ConfirmYes, confirmer)
	ok, reason := p.Resolve(context.Background(), "shell", models.DangerPrivileged, nil)
	if !ok {
		t.Errorf("expected YES mode to proceed without asking, reason=%q", reason)
	}
	if confirmer.calls != 0 {
		t.Errorf("expected confirmer not to be invoked, got %d calls", confirmer.calls)
	}
}

func TestResolve_AskWithNoConfirmerDenies(t *testing.T) {
	p := NewConfirmationPolicy(config.ConfirmNo, nil)
	ok, reason := p.Resolve(context.Background(), "read_file", models.DangerSafe, nil)
	if ok {
		t.Error("expected denial when no confirmer is configured")
	}
	if reason == "" {
		t.Error("expected a non-empty denial reason")
	}
}

func TestResolve_AskDeniedByUser(t *testing.T) {
	confirmer := &fakeConfirmer{allow: false}
	p := NewConfirmationPolicy(config.ConfirmAuto, confirmer)
	ok, reason := p.Resolve(context.Background(), "write_file", models.DangerMutating, nil)
	if ok {
		t.Error("expected denial when the user declines")
	}
	if reason == "" {
		t.Error("expected a denial reason")
	}
}

func TestResolve_AskApprovedByUser(t *testing.T) {
	confirmer := &fakeConfirmer{allow: true}
	p := NewConfirmationPolicy(config.ConfirmAuto, confirmer)
	ok, _ := p.Resolve(context.Background(), "write_file", models.DangerMutating, nil)
	if !ok {
		t.Error("expected approval when the user confirms")
	}
}

func TestResolve_ConfirmerErrorDenies(t *testing.T) {
	confirmer := &fakeConfirmer{err: errors.New("channel closed")}
	p := NewConfirmationPolicy(config.ConfirmAuto, confirmer)
	ok, reason := p.Resolve(context.Background(), "write_file", models.DangerMutating, nil)
	if ok {
		t.Error("expected denial when the confirmer errors")
	}
	if reason == "" {
		t.Error("expected a denial reason")
	}
}
