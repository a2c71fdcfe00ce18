package sherlock

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors classifying protocol failures. Remote rejections are
// returned as *APIError values wrapping one of these, so callers can
// match with errors.Is while still reaching the status code and body.
var (
	// ErrTransport covers connectivity failures, timeouts, and
	// unreadable responses — anything below the protocol layer.
	ErrTransport = errors.New("transport error")

	// ErrChallengeRequestFailed — the registrar refused to issue a
	// login challenge.
	ErrChallengeRequestFailed = errors.New("challenge request failed")

	// ErrAuthenticationRejected — the login was refused: bad
	// signature, expired or already-consumed challenge, unknown key.
	ErrAuthenticationRejected = errors.New("authentication rejected")

	// ErrOfferRequestFailed — the purchase endpoint returned neither
	// payment-required nor success.
	ErrOfferRequestFailed = errors.New("offer request failed")

	// ErrUnexpectedSuccess — the purchase endpoint returned a success
	// status. Purchases are always payment-gated, so a 2xx here means
	// the registrar did something we did not negotiate.
	ErrUnexpectedSuccess = errors.New("unexpected success for payment-gated purchase")

	// ErrMalformedOfferSet — a payment-required response was missing
	// required offer fields.
	ErrMalformedOfferSet = errors.New("malformed offer set")

	// ErrUnsupportedPaymentMethod — the chosen method is not in the
	// offer's allowed set. Raised locally, before any network call.
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")

	// ErrPaymentRequestFailed — the payment-request endpoint rejected
	// the submission.
	ErrPaymentRequestFailed = errors.New("payment request failed")

	// ErrMalformedPaymentInstruction — the payment-request response
	// did not carry the settlement artifact for the chosen method.
	ErrMalformedPaymentInstruction = errors.New("malformed payment instruction")

	// ErrRequestFailed covers rejections of the plain API calls
	// (search, domain list, DNS records).
	ErrRequestFailed = errors.New("request failed")
)

const bodyExcerptLimit = 512

// APIError describes a rejected remote call with enough detail to
// diagnose it without access to the raw transport.
type APIError struct {
	Err    error  // sentinel classifying the failure
	Status int    // HTTP status returned by the registrar
	Body   string // response body excerpt
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: HTTP %d", e.Err, e.Status)
	}
	return fmt.Sprintf("%v: HTTP %d: %s", e.Err, e.Status, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

func apiError(sentinel error, status int, body []byte) *APIError {
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > bodyExcerptLimit {
		excerpt = excerpt[:bodyExcerptLimit]
	}
	return &APIError{Err: sentinel, Status: status, Body: excerpt}
}

// isUnauthorized reports whether err is an auth-shaped remote failure,
// the signal that a cached bearer token has gone stale.
func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
