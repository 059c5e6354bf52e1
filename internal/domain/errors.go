package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tenancy core. Handlers map these onto the HTTP
// error taxonomy: 404, 409, 400, 401 respectively.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already in use")
	ErrVPConflict     = errors.New("agency already has a VP")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidToken   = errors.New("invalid token")
)

// DenialReason classifies why the authorization policy rejected an action.
type DenialReason string

const (
	DenialRoleNotAllowed DenialReason = "ROLE_NOT_ALLOWED"
	DenialCrossAgency    DenialReason = "CROSS_AGENCY"
	DenialCrossTenant    DenialReason = "CROSS_TENANT"
	DenialNoAgency       DenialReason = "NO_AGENCY"
)

// DeniedError is returned by the authorization policy when an authenticated
// actor is not permitted to perform the requested action (HTTP 403).
type DeniedError struct {
	Reason DenialReason
	Detail string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("forbidden (%s): %s", e.Reason, e.Detail)
}

// Denied constructs a DeniedError.
func Denied(reason DenialReason, detail string) *DeniedError {
	return &DeniedError{Reason: reason, Detail: detail}
}

// IsDenied reports whether err is a policy denial and returns it if so.
func IsDenied(err error) (*DeniedError, bool) {
	var de *DeniedError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
