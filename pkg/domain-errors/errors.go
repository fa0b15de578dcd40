// Package domainerrors defines the coded error type returned by every engine
// operation. Codes map 1:1 to response codes on the wire, so callers can act
// on the code without parsing messages.
//
// Three classes of engine codes:
//   - authorization/precondition: the caller asked for something the current
//     actor or lifecycle does not allow; recoverable by choosing another action
//   - state-conflict: the requested transition already happened or cannot
//     happen from the current state; safe to surface as "already done"
//   - invariant-protection: the operation would corrupt the ledger; rejected
//     outright, but not evidence of corruption (the guards working as intended)
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and caller branching.
type Code string

// Ambient codes shared by all modules.
const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Authorization and precondition codes.
const (
	CodeSelfContribution   Code = "self_contribution"
	CodeClosedCampaign     Code = "closed_campaign"
	CodePrematureMilestone Code = "premature_milestone"
	CodeRefundNotAvailable Code = "refund_not_available"
	CodeNoStake            Code = "no_stake"
)

// State-conflict codes.
const (
	CodeAlreadyVoted    Code = "already_voted"
	CodeAlreadyReleased Code = "already_released"
	CodeAlreadyRefunded Code = "already_refunded"
	CodeNotApproved     Code = "not_approved"
	CodeMilestoneClosed Code = "milestone_closed"
	CodeNoContribution  Code = "no_contribution"
)

// Invariant-protection codes.
const (
	CodeInvalidAmount      Code = "invalid_amount"
	CodeOverAllocation     Code = "over_allocation"
	CodeInsufficientEscrow Code = "insufficient_escrow"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so infrastructure failures never leak detail.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err, empty for uncoded errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP status. Unknown codes map to 500 so a
// missing entry fails safe rather than leaking a 200.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeValidation, CodeInvalidAmount:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeSelfContribution, CodeNoStake:
		return http.StatusForbidden
	case CodeNotFound, CodeNoContribution:
		return http.StatusNotFound
	case CodeConflict, CodeClosedCampaign, CodePrematureMilestone,
		CodeRefundNotAvailable, CodeAlreadyVoted, CodeAlreadyReleased,
		CodeAlreadyRefunded, CodeNotApproved, CodeMilestoneClosed:
		return http.StatusConflict
	case CodeOverAllocation, CodeInsufficientEscrow, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
