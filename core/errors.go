package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoPortAvailable = errors.New("no local port available for the redirect receiver")
	ErrCsrfMismatch    = errors.New("redirect state does not match the login attempt")
	ErrRedirectTimeout = errors.New("timed out waiting for the authorization redirect")
	ErrNotEntitled     = errors.New("account does not own the game")
	ErrVersionNotFound = errors.New("version not found in manifest")
	ErrChannelClosed   = errors.New("progress channel closed")
	ErrLoginInProgress = errors.New("a login attempt is already running")
	ErrNetworkTimeout  = errors.New("network call timed out")
)

// ProtocolError reports an unexpected response shape from a remote
// service, as opposed to a transport failure.
type ProtocolError struct {
	Service string
	Detail  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s", e.Service, e.Detail)
}

// XboxRestrictionReason classifies the XSTS denial codes that are worth
// showing to the user as distinct messages.
type XboxRestrictionReason string

const (
	RestrictionSignUpRequired  XboxRestrictionReason = "xbox account sign-up required"
	RestrictionRegionBlocked   XboxRestrictionReason = "xbox live is not available in this region"
	RestrictionAgeVerification XboxRestrictionReason = "age verification required"
	RestrictionChildAccount    XboxRestrictionReason = "child account must be added to a family"
	RestrictionUnknown         XboxRestrictionReason = "xbox live refused the sign-in"
)

// XboxRestriction is an XSTS denial, carrying the upstream XErr code.
type XboxRestriction struct {
	Code   int64
	Reason XboxRestrictionReason
}

func (e *XboxRestriction) Error() string {
	return fmt.Sprintf("%s (XErr %d)", e.Reason, e.Code)
}

// IntegrityViolation means a downloaded or local artifact does not match
// the checksum the manifest declares. Always fatal to the run.
type IntegrityViolation struct {
	Artifact string
	Expected string
	Actual   string
}

func (e *IntegrityViolation) Error() string {
	return fmt.Sprintf("integrity violation on %s: expected %s, got %s", e.Artifact, e.Expected, e.Actual)
}
