package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft         RunStatus = "draft"
	RunStatusAutoGenerated RunStatus = "auto_generated"
	RunStatusAutoApproved  RunStatus = "auto_approved"
	RunStatusEdited        RunStatus = "edited"
	RunStatusApproved      RunStatus = "approved"
	RunStatusLocked        RunStatus = "locked"
)

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusDraft, RunStatusAutoGenerated, RunStatusAutoApproved,
		RunStatusEdited, RunStatusApproved, RunStatusLocked:
		return true
	}
	return false
}

func (s RunStatus) IsLocked() bool {
	return s == RunStatusLocked
}

// yearToDateStatuses are the run statuses whose items count as paid.
var yearToDateStatuses = []RunStatus{RunStatusAutoApproved, RunStatusEdited, RunStatusApproved, RunStatusLocked}

// CountsTowardYearToDate reports whether items of a run in this status feed
// the year-to-date PCB figures of later months.
func (s RunStatus) CountsTowardYearToDate() bool {
	for _, status := range yearToDateStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// YearToDateStatuses returns the statuses accepted by CountsTowardYearToDate.
func YearToDateStatuses() []string {
	out := make([]string, len(yearToDateStatuses))
	for i, status := range yearToDateStatuses {
		out[i] = string(status)
	}
	return out
}

// Transition enum
type Transition string

const (
	TransitionGenerate    Transition = "generate"
	TransitionAutoApprove Transition = "auto_approve"
	TransitionEdit        Transition = "edit"
	TransitionApprove     Transition = "approve"
	TransitionLock        Transition = "lock"
)

// Guard names reported on rejection
const (
	GuardSourceStatus       = "source_status"
	GuardAutoApproveEnabled = "auto_approve_enabled"
	GuardVarianceThreshold  = "variance_within_threshold"
	GuardActorRequired      = "actor_required"
	GuardReasonRequired     = "reason_required"
)

// GuardInput carries what the guards of a transition inspect.
type GuardInput struct {
	Actor              string
	Reason             string
	AutoApproveEnabled bool
	VariancePercentage decimal.Decimal
	Threshold          decimal.Decimal
}

type transitionRule struct {
	from   []RunStatus
	to     RunStatus
	guards []func(GuardInput) (guard string, detail string, ok bool)
}

// transitions is the single definition of every legal run status change.
var transitions = map[Transition]transitionRule{
	TransitionGenerate: {
		from: []RunStatus{RunStatusDraft},
		to:   RunStatusAutoGenerated,
	},
	TransitionAutoApprove: {
		from:   []RunStatus{RunStatusAutoGenerated},
		to:     RunStatusAutoApproved,
		guards: []func(GuardInput) (string, string, bool){autoApproveEnabled, varianceWithinThreshold},
	},
	TransitionEdit: {
		from:   []RunStatus{RunStatusAutoApproved},
		to:     RunStatusEdited,
		guards: []func(GuardInput) (string, string, bool){actorRequired, reasonRequired},
	},
	TransitionApprove: {
		from:   []RunStatus{RunStatusEdited, RunStatusDraft, RunStatusAutoGenerated},
		to:     RunStatusApproved,
		guards: []func(GuardInput) (string, string, bool){actorRequired},
	},
	TransitionLock: {
		from: []RunStatus{RunStatusApproved, RunStatusAutoApproved},
		to:   RunStatusLocked,
	},
}

func ParseTransition(s string) (Transition, error) {
	t := Transition(strings.TrimSpace(strings.ToLower(s)))
	if _, ok := transitions[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTransition, s)
	}
	return t, nil
}

// Next returns the status reached by applying t, or a *GuardError naming the violated guard.
func (s RunStatus) Next(t Transition, in GuardInput) (RunStatus, error) {
	rule, ok := transitions[t]
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrInvalidTransition, t)
	}

	if !s.CanTransition(t) {
		return s, &GuardError{
			Transition: t,
			Guard:      GuardSourceStatus,
			Current:    s,
			Detail:     fmt.Sprintf("allowed from %s", joinStatuses(rule.from)),
		}
	}

	for _, guard := range rule.guards {
		if name, detail, ok := guard(in); !ok {
			return s, &GuardError{Transition: t, Guard: name, Current: s, Detail: detail}
		}
	}

	return rule.to, nil
}

// CanTransition reports whether t is legal from s, ignoring input guards.
func (s RunStatus) CanTransition(t Transition) bool {
	rule, ok := transitions[t]
	if !ok {
		return false
	}
	for _, from := range rule.from {
		if from == s {
			return true
		}
	}
	return false
}

func autoApproveEnabled(in GuardInput) (string, string, bool) {
	return GuardAutoApproveEnabled, "auto approval is disabled for this company", in.AutoApproveEnabled
}

func varianceWithinThreshold(in GuardInput) (string, string, bool) {
	detail := fmt.Sprintf("variance %s%% exceeds threshold %s%%",
		in.VariancePercentage.StringFixed(2), in.Threshold.StringFixed(2))
	return GuardVarianceThreshold, detail, in.VariancePercentage.Abs().LessThanOrEqual(in.Threshold)
}

func actorRequired(in GuardInput) (string, string, bool) {
	return GuardActorRequired, "actor is required", strings.TrimSpace(in.Actor) != ""
}

func reasonRequired(in GuardInput) (string, string, bool) {
	return GuardReasonRequired, "reason is required", strings.TrimSpace(in.Reason) != ""
}

func joinStatuses(statuses []RunStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
