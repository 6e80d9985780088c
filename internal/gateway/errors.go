package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/LeventeLantos/sms-questionnaire/internal/client"
)

type Kind string

const (
	InvalidNumber       Kind = "invalid_number"
	InsufficientBalance Kind = "insufficient_balance"
	UnverifiedNumber    Kind = "unverified_number"
	GeoRestricted       Kind = "geo_restricted"
	RateLimited         Kind = "rate_limited"
	ContentTooLong      Kind = "content_too_long"
	Timeout             Kind = "timeout"
	Unknown             Kind = "unknown"
)

// Error is a failed send, classified so callers can tell transient carrier
// trouble from permanent rejections.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	// Temporary marks unclassified failures that are worth retrying, such as
	// carrier 5xx answers and transport errors.
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("sms send failed (%s, code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("sms send failed (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool {
	return e.Kind == RateLimited || e.Kind == Timeout || e.Temporary
}

// UserMessage is safe to show to an operator.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case InvalidNumber:
		return "The phone number is not valid for SMS delivery."
	case InsufficientBalance:
		return "The SMS account balance is too low to send messages."
	case UnverifiedNumber:
		return "The phone number has not been verified with the SMS provider."
	case GeoRestricted:
		return "Sending SMS to this region is not enabled."
	case RateLimited:
		return "Too many messages are being sent right now. Please try again shortly."
	case ContentTooLong:
		return "The message is too long to send."
	case Timeout:
		return "The SMS provider did not answer in time. Please try again."
	default:
		return "The SMS could not be sent. Please try again later."
	}
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Twilio error codes, see https://www.twilio.com/docs/api/errors.
var twilioKinds = map[int]Kind{
	21211: InvalidNumber,
	21214: InvalidNumber,
	21217: InvalidNumber,
	21401: InvalidNumber,
	21421: InvalidNumber,
	21614: InvalidNumber,
	21608: UnverifiedNumber,
	21408: GeoRestricted,
	21612: GeoRestricted,
	20429: RateLimited,
	14107: RateLimited,
}

func classify(err error) *Error {
	if ge, ok := AsError(err); ok {
		return ge
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		e := &Error{Code: apiErr.Code, Message: apiErr.Message, Err: err}
		if e.Message == "" {
			e.Message = apiErr.Error()
		}
		if kind, ok := twilioKinds[apiErr.Code]; ok {
			e.Kind = kind
		} else {
			lower := strings.ToLower(apiErr.Message)
			switch {
			case strings.Contains(lower, "balance"), strings.Contains(lower, "funds"):
				e.Kind = InsufficientBalance
			case apiErr.StatusCode == http.StatusTooManyRequests:
				e.Kind = RateLimited
			default:
				e.Kind = Unknown
			}
		}
		e.Temporary = e.Kind == Unknown && apiErr.StatusCode >= 500
		return e
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: Timeout, Message: err.Error(), Err: err}
	}

	return &Error{Kind: Unknown, Message: err.Error(), Temporary: true, Err: err}
}
