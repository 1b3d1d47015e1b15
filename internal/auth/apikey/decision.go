package apikey

import (
	"net/http"
	"strconv"
)

// Outcome is the terminal result of a checkpoint evaluation.
type Outcome int

// Checkpoint outcomes.
const (
	// OutcomeUnauthenticated means no credential was supplied.
	OutcomeUnauthenticated Outcome = iota
	// OutcomeUnauthorized means the credential does not resolve to a client.
	OutcomeUnauthorized
	// OutcomeAuthorized means the credential resolves to a known client.
	OutcomeAuthorized
)

// Outcomes lists every outcome in decision order.
var Outcomes = []Outcome{OutcomeUnauthenticated, OutcomeUnauthorized, OutcomeAuthorized}

// String returns the metric/log label of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status emitted for the outcome.
func (o Outcome) StatusCode() int {
	switch o {
	case OutcomeAuthorized:
		return http.StatusNoContent
	case OutcomeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// Body returns the response body emitted for the outcome: the decimal
// status code.
func (o Outcome) Body() string {
	return strconv.Itoa(o.StatusCode())
}

// Present reports whether a context value counts as supplied.
// Empty and absent values are not distinguished.
func Present(value string) bool {
	return value != ""
}

// Decide maps credential and identity presence to an outcome.
// identityPresent is not consulted when no credential is present.
func Decide(credentialPresent, identityPresent bool) Outcome {
	switch {
	case !credentialPresent:
		return OutcomeUnauthenticated
	case !identityPresent:
		return OutcomeUnauthorized
	default:
		return OutcomeAuthorized
	}
}
