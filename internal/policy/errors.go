package policy

import "fmt"

// ControlPolicyError is the base of every typed policy failure (spec §4.5).
// The orchestrator (C8) is the single catch-site: it reads StatusCode and
// Detail to synthesize the client-facing error response.
type ControlPolicyError struct {
	PolicyName string
	StatusCode int
	Detail     string
	Cause      error
}

func (e *ControlPolicyError) Error() string {
	if e.PolicyName != "" {
		return fmt.Sprintf("%s: %s", e.PolicyName, e.Detail)
	}

	return e.Detail
}

func (e *ControlPolicyError) Unwrap() error { return e.Cause }

func newError(policyName, detail string, status int) *ControlPolicyError {
	return &ControlPolicyError{PolicyName: policyName, Detail: detail, StatusCode: status}
}

// PolicyLoadError surfaces a load-time configuration problem (C6): unknown
// tag, missing required constructor argument, malformed nested document.
func NewPolicyLoadError(policyName, detail string) *ControlPolicyError {
	return newError(policyName, detail, 500)
}

// NoRequestError is raised when a policy that needs a request runs against
// a transaction that has none (shouldn't happen given I1, but policies
// guard defensively per P5).
func NewNoRequestError(policyName string) *ControlPolicyError {
	return newError(policyName, "no request in transaction", 500)
}

// ApiKeyNotFoundError is raised when a required upstream credential is
// absent from settings or environment.
func NewApiKeyNotFoundError(policyName, detail string) *ControlPolicyError {
	return newError(policyName, detail, 500)
}

// ClientAuthenticationError is the 401 raised when a presented client
// credential is unknown or inactive.
func NewClientAuthenticationError(policyName, detail string) *ControlPolicyError {
	return newError(policyName, detail, 401)
}

// ClientAuthenticationNotFoundError is the 401 raised when no credential
// was presented at all.
func NewClientAuthenticationNotFoundError(policyName, detail string) *ControlPolicyError {
	return newError(policyName, detail, 401)
}

// LeakedApiKeyError is the 403 raised when LeakedApiKeyDetection finds a
// credential pattern in request content.
func NewLeakedApiKeyError(policyName, detail string) *ControlPolicyError {
	return newError(policyName, detail, 403)
}

// UpstreamError wraps a transport/API failure from the backend call,
// translated to a 502 per the error-handling taxonomy (spec §7) unless the
// backend itself reported a structured status.
func NewUpstreamError(policyName, detail string, cause error) *ControlPolicyError {
	e := newError(policyName, detail, 502)
	e.Cause = cause

	return e
}
