package tools

import (
	"context"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/pkg/models"
)

// Decision is the outcome of a confirmation check for one tool call.
type Decision string

const (
	DecisionExecute Decision = "EXECUTE"
	DecisionAsk     Decision = "ASK"
	DecisionDeny    Decision = "DENY"
)

// Confirmer asks an external party (a human, a UI) whether a pending tool
// call should proceed. Implementations may time out; a timeout is treated
// as a denial by ConfirmationPolicy.
type Confirmer interface {
	Confirm(ctx context.Context, toolName string, args []byte) (bool, error)
}

// ConfirmationPolicy decides EXECUTE/ASK/DENY for a tool call based on its
// DangerClass and the configured mode:
//
//   - YES:  every call executes without confirmation.
//   - NO:   every call is asked for confirmation.
//   - AUTO: SAFE executes, MUTATING asks, PRIVILEGED asks (and is additionally
//     subject to the sudo whitelist/blocklist when the tool shells out).
type ConfirmationPolicy struct {
	Mode      config.ConfirmationMode
	Confirmer Confirmer
}

// NewConfirmationPolicy creates a ConfirmationPolicy. confirmer may be nil,
// in which case ASK decisions degrade to DENY (no one to ask).
func NewConfirmationPolicy(mode config.ConfirmationMode, confirmer Confirmer) *ConfirmationPolicy {
	return &ConfirmationPolicy{Mode: mode, Confirmer: confirmer}
}

// Decide returns the policy decision for a tool of the given danger class.
func (p *ConfirmationPolicy) Decide(danger models.DangerClass) Decision {
	switch p.Mode {
	case config.ConfirmYes:
		return DecisionExecute
	case config.ConfirmNo:
		return DecisionAsk
	case config.ConfirmAuto:
		fallthrough
	default:
		if danger == models.DangerSafe {
			return DecisionExecute
		}
		return DecisionAsk
	}
}

// Resolve applies Decide and, for an ASK outcome, invokes the Confirmer. It
// returns whether the call may proceed and, when it may not, the reason to
// surface as a BLOCKED tool result.
func (p *ConfirmationPolicy) Resolve(ctx context.Context, toolName string, danger models.DangerClass, args []byte) (bool, string) {
	switch p.Decide(danger) {
	case DecisionExecute:
		return true, ""
	case DecisionDeny:
		return false, "denied by confirmation policy (mode=" + string(p.Mode) + ")"
	case DecisionAsk:
		if p.Confirmer == nil {
			return false, "confirmation required but no confirmer is configured"
		}
		ok, err := p.Confirmer.Confirm(ctx, toolName, args)
		if err != nil {
			return false, "confirmation failed: " + err.Error()
		}
		if !ok {
			return false, "denied by user"
		}
		return true, ""
	default:
		return false, "unknown confirmation decision"
	}
}
