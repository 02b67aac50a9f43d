/*
approval.go - Approval lifecycle for payroll batches

PURPOSE:
  Gates disbursement through an explicit approval state machine:

    none ──submit──▶ PENDING_APPROVAL ──approve──▶ APPROVED (terminal)
                            │
                          reject
                            ▼
                        REJECTED ──submit (resubmission)──▶ PENDING_APPROVAL

  REJECTED is the only state with a path back into the cycle. APPROVED is
  terminal.

TWO LAYERS:
  1. Transition(): a pure function (state, action) -> (new status | error).
     Every legal and illegal pair is enumerable and unit-testable with no
     store or HTTP involved.
  2. StateMachine: applies Transition to a stored batch with an atomic
     compare-and-set, stamps timestamps, and appends one audit record per
     successful transition.

CONCURRENCY:
  Two actors racing to transition the same batch (simultaneous approve
  and reject) is the one hazard. The store applies the mutation only if
  the stored approval status still matches the one the guard observed;
  a lost race surfaces as InvalidStateError with nothing written.

SEE ALSO:
  - store.go: BatchStore compare-and-set contract, AuditLog
  - errors.go: InvalidStateError naming the required precondition
*/
package payroll

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// PURE TRANSITION FUNCTION
// =============================================================================

type Action string

const (
	ActionSubmit  Action = "submit-for-approval"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// State is the pair of status axes a guard can observe.
type State struct {
	Processing ProcessingStatus
	Approval   ApprovalStatus
}

// Transition returns the approval status that results from applying action
// to state, or an InvalidStateError naming the unmet precondition. It
// mutates nothing.
func Transition(state State, action Action) (ApprovalStatus, error) {
	switch action {
	case ActionSubmit:
		if state.Processing != ProcessingCompleted {
			return "", &InvalidStateError{
				Action:   string(ActionSubmit),
				Required: "processing status " + string(ProcessingCompleted),
				Found:    "processing status " + string(state.Processing),
			}
		}
		if state.Approval != ApprovalNone && state.Approval != ApprovalRejected {
			return "", &InvalidStateError{
				Action:   string(ActionSubmit),
				Required: "approval status none or " + string(ApprovalRejected),
				Found:    "approval status " + string(state.Approval),
			}
		}
		return ApprovalPending, nil

	case ActionApprove:
		if state.Approval != ApprovalPending {
			return "", &InvalidStateError{
				Action:   string(ActionApprove),
				Required: "approval status " + string(ApprovalPending),
				Found:    "approval status " + describeApproval(state.Approval),
			}
		}
		return ApprovalApproved, nil

	case ActionReject:
		if state.Approval != ApprovalPending {
			return "", &InvalidStateError{
				Action:   string(ActionReject),
				Required: "approval status " + string(ApprovalPending),
				Found:    "approval status " + describeApproval(state.Approval),
			}
		}
		return ApprovalRejected, nil

	default:
		return "", &InvalidStateError{
			Action:   string(action),
			Required: "a known action",
			Found:    "unknown action",
		}
	}
}

func describeApproval(s ApprovalStatus) string {
	if s == ApprovalNone {
		return "none"
	}
	return string(s)
}

// =============================================================================
// STATE MACHINE - Applies transitions to stored batches
// =============================================================================

type StateMachine struct {
	Batches BatchStore
	Audit   AuditLog
	Logger  *zap.Logger

	// Now is injected so transition timestamps are deterministic in tests.
	Now func() time.Time
}

func NewStateMachine(batches BatchStore, audit AuditLog, logger *zap.Logger) *StateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateMachine{
		Batches: batches,
		Audit:   audit,
		Logger:  logger,
		Now:     time.Now,
	}
}

// SubmitForApproval moves a COMPLETED batch into PENDING_APPROVAL. Legal
// from approval status none or REJECTED; resubmission clears the blocking
// rejection notes (they remain in the audit trail).
func (sm *StateMachine) SubmitForApproval(ctx context.Context, companyID string, id BatchID, actor, notes string) (*Batch, error) {
	return sm.apply(ctx, companyID, id, actor, notes, ActionSubmit, func(b *Batch, now time.Time) {
		b.ApprovalStatus = ApprovalPending
		b.SubmittedAt = &now
		b.RejectionNotes = ""
	})
}

// Approve moves a PENDING_APPROVAL batch to APPROVED. This signals
// downstream disbursement eligibility.
func (sm *StateMachine) Approve(ctx context.Context, companyID string, id BatchID, actor string) (*Batch, error) {
	return sm.apply(ctx, companyID, id, actor, "", ActionApprove, func(b *Batch, now time.Time) {
		b.ApprovalStatus = ApprovalApproved
		b.ApprovedAt = &now
	})
}

// Reject moves a PENDING_APPROVAL batch to REJECTED. Notes are required;
// the batch can re-enter the cycle via resubmission.
func (sm *StateMachine) Reject(ctx context.Context, companyID string, id BatchID, actor, notes string) (*Batch, error) {
	if notes == "" {
		return nil, &ValidationError{Field: "notes", Message: "rejection notes are required"}
	}
	return sm.apply(ctx, companyID, id, actor, notes, ActionReject, func(b *Batch, now time.Time) {
		b.ApprovalStatus = ApprovalRejected
		b.RejectedAt = &now
		b.RejectionNotes = notes
	})
}

func (sm *StateMachine) apply(ctx context.Context, companyID string, id BatchID, actor, notes string, action Action, mutate func(*Batch, time.Time)) (*Batch, error) {
	now := sm.Now()
	var from ApprovalStatus

	updated, err := sm.Batches.UpdateApproval(ctx, companyID, id, func(b *Batch) error {
		from = b.ApprovalStatus
		if _, err := Transition(State{Processing: b.ProcessingStatus, Approval: b.ApprovalStatus}, action); err != nil {
			return err
		}
		mutate(b, now)
		b.UpdatedAt = now
		return nil
	})
	if errors.Is(err, ErrStaleState) {
		// Lost the race: re-read so the error names the state that won.
		found := "concurrently modified"
		if fresh, getErr := sm.Batches.Get(ctx, companyID, id); getErr == nil {
			found = "approval status " + describeApproval(fresh.ApprovalStatus)
		}
		return nil, &InvalidStateError{Action: string(action), Required: "unchanged state during transition", Found: found}
	}
	if err != nil {
		return nil, err
	}

	record := AuditRecord{
		ID:      uuid.NewString(),
		BatchID: id,
		Actor:   actor,
		From:    from,
		To:      updated.ApprovalStatus,
		At:      now,
		Notes:   notes,
	}
	if err := sm.Audit.Append(ctx, record); err != nil {
		// The transition is committed; a failed audit write is logged, not
		// rolled back.
		sm.Logger.Error("audit append failed",
			zap.String("batch_id", string(id)),
			zap.String("action", string(action)),
			zap.Error(err))
	}

	sm.Logger.Info("approval transition",
		zap.String("batch_id", string(id)),
		zap.String("company_id", companyID),
		zap.String("actor", actor),
		zap.String("from", describeApproval(from)),
		zap.String("to", string(updated.ApprovalStatus)))

	return updated, nil
}
