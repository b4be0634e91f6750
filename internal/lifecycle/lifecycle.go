// Package lifecycle enforces the valid state transitions for a claim and
// appends one immutable audit trail entry per transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitevar/sitevar/internal/record"
	"github.com/sitevar/sitevar/internal/store"
)

// transitions is the single authoritative allowed-successor table.
// paid is terminal: no outgoing transitions.
var transitions = map[record.ClaimStatus][]record.ClaimStatus{
	record.StatusCaptured:  {record.StatusSubmitted, record.StatusDisputed},
	record.StatusSubmitted: {record.StatusApproved, record.StatusDisputed},
	record.StatusApproved:  {record.StatusPaid, record.StatusDisputed},
	record.StatusDisputed:  {record.StatusSubmitted, record.StatusApproved},
	record.StatusPaid:      {},
}

// TransitionErrorCode categorizes transition failures.
type TransitionErrorCode string

const (
	// ErrCodeInvalidTransition means the target status is not in the
	// allowed-successor set of the claim's current status.
	ErrCodeInvalidTransition TransitionErrorCode = "INVALID_TRANSITION"

	// ErrCodeNotAuthorized means the actor's role does not permit this
	// transition even though the transition table allows it.
	ErrCodeNotAuthorized TransitionErrorCode = "NOT_AUTHORIZED"
)

// TransitionError is returned for rejected lifecycle transitions.
type TransitionError struct {
	Code    TransitionErrorCode
	ClaimID string
	From    record.ClaimStatus
	To      record.ClaimStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: claim %s: %s -> %s", e.Code, e.ClaimID, e.From, e.To)
}

// IsInvalidTransition reports whether err is an invalid-transition
// rejection. Uses errors.As to handle wrapped errors.
func IsInvalidTransition(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == ErrCodeInvalidTransition
	}
	return false
}

// IsNotAuthorized reports whether err is a role-policy rejection.
func IsNotAuthorized(err error) bool {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == ErrCodeNotAuthorized
	}
	return false
}

// Allowed reports whether from -> to is in the transition table.
func Allowed(from, to record.ClaimStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the allowed target statuses from a given status.
// Returns an empty slice for terminal states.
func Successors(from record.ClaimStatus) []record.ClaimStatus {
	next := transitions[from]
	out := make([]record.ClaimStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition applies the role policy layered above the transition
// table: field-level actors may only submit captured claims. The policy
// never widens the table - a transition must be Allowed first.
func CanTransition(role record.Role, from, to record.ClaimStatus) bool {
	if !Allowed(from, to) {
		return false
	}
	if role == record.RoleField {
		return from == record.StatusCaptured && to == record.StatusSubmitted
	}
	return true
}

// Engine validates and applies lifecycle transitions against the store.
type Engine struct {
	store *store.Store
}

// NewEngine creates a lifecycle engine bound to a store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Transition moves a claim to a new status, appending exactly one status
// change row in the same transaction as the status update. Fails with an
// INVALID_TRANSITION error if the target is not an allowed successor of
// the claim's current status, without touching the store.
func (e *Engine) Transition(ctx context.Context, claimID string,
	to record.ClaimStatus, actor string, note *string) (record.StatusChange, error) {

	if !to.Valid() {
		return record.StatusChange{}, fmt.Errorf("transition: unknown status %q", to)
	}

	claim, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return record.StatusChange{}, fmt.Errorf("transition: %w", err)
	}

	if !Allowed(claim.Status, to) {
		return record.StatusChange{}, &TransitionError{
			Code:    ErrCodeInvalidTransition,
			ClaimID: claimID,
			From:    claim.Status,
			To:      to,
		}
	}

	// The store's compare-and-set rejects the write if the status moved
	// between our read and the update, so a racing transition cannot
	// smuggle an illegal edge through.
	change, err := e.store.SetClaimStatus(ctx, claimID, claim.Status, to, actor, note)
	if err != nil {
		return record.StatusChange{}, fmt.Errorf("transition: %w", err)
	}
	return change, nil
}

// TransitionAs is Transition with the role policy applied first.
func (e *Engine) TransitionAs(ctx context.Context, role record.Role, claimID string,
	to record.ClaimStatus, actor string, note *string) (record.StatusChange, error) {

	if !to.Valid() {
		return record.StatusChange{}, fmt.Errorf("transition: unknown status %q", to)
	}

	claim, err := e.store.GetClaim(ctx, claimID)
	if err != nil {
		return record.StatusChange{}, fmt.Errorf("transition: %w", err)
	}

	if Allowed(claim.Status, to) && !CanTransition(role, claim.Status, to) {
		return record.StatusChange{}, &TransitionError{
			Code:    ErrCodeNotAuthorized,
			ClaimID: claimID,
			From:    claim.Status,
			To:      to,
		}
	}

	return e.Transition(ctx, claimID, to, actor, note)
}
