package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrOrderNotFound      = errors.New("payment order not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrRefundNotFound     = errors.New("refund not found")

	// Валидация
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Конфликты состояния
	ErrTeamNameConflict       = errors.New("team name is already in use")
	ErrTeamNotPaid            = errors.New("team payment is not completed")
	ErrTeamNotEligible        = errors.New("team must be approved and paid")
	ErrTeamAlreadyRejected    = errors.New("team registration was rejected")
	ErrTeamAlreadyApproved    = errors.New("team registration is already approved")
	ErrTeamPaid               = errors.New("team with a completed payment cannot be deleted")
	ErrTeamAlreadyPaid        = errors.New("team has already paid")
	ErrTournamentFull         = errors.New("tournament has no free slots")
	ErrTournamentNotUpcoming  = errors.New("tournament has already started")
	ErrTournamentNotLive      = errors.New("tournament is not live")
	ErrRefundAlreadyRequested = errors.New("refund already requested for this payment")
	ErrUserEmailConflict      = errors.New("email address is already in use")

	// Аутентификация
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	ErrStorageUnavailable = errors.New("file storage is not configured")
	ErrUnsupportedFile    = errors.New("unsupported file type")
)

// ValidationError carries per-field messages. It matches ErrValidationFailed with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

type validator struct {
	fields map[string]string
}

func (v *validator) check(ok bool, field, msg string) {
	if ok {
		return
	}
	if v.fields == nil {
		v.fields = map[string]string{}
	}
	if _, exists := v.fields[field]; !exists {
		v.fields[field] = msg
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// UpstreamError is a failed call to the bracket service or the payment gateway.
// Timeout separates "no answer in time" from a definite rejection.
type UpstreamError struct {
	Service string
	Op      string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: timed out: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Service: service, Op: op, Timeout: isTimeout(err), Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
