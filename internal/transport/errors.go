package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed remote operation.
type Kind string

// The closed set of error kinds surfaced to callers.
const (
	KindOffline        Kind = "offline"
	KindNotFound       Kind = "not_found"
	KindInvalidSession Kind = "invalid_session"
	KindBadRequest     Kind = "bad_request"
	KindAuthFailure    Kind = "auth_failure"
	KindRateLimited    Kind = "rate_limited"
	KindServerFault    Kind = "server_fault"
	KindUnreachable    Kind = "unreachable"
)

// Operation names, used in errors and logs.
const (
	OpStart      = "start"
	OpQuestion   = "question"
	OpAnswer     = "answer"
	OpFollowup   = "followup"
	OpEnd        = "end"
	OpTranscribe = "transcribe"
	OpRestore    = "restore"
)

// Error is returned by every Client method that fails.
type Error struct {
	Op     string
	Kind   Kind
	Status int    // HTTP status, 0 when no response was received
	Detail string // message supplied by the service, if any
	Err    error  // underlying cause for transport-level failures
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Offline builds the error returned for an operation rejected locally
// because there is no connectivity. It never reaches the wire.
func Offline(op string) *Error {
	return &Error{Op: op, Kind: KindOffline}
}

// KindOf returns the kind of err, or "" if err is not a transport error.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsKind reports whether err is a transport error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

const (
	msgSessionExpired = "Your session is invalid or expired. Please go back to the setup screen and start a new interview."
	msgNotFound       = "Interview service not found. Please check if the backend is running."
	msgBadRequest     = "Bad request. Please restart the interview from the setup screen and try again."
	msgAuth           = "Authentication error with provider API key. Please verify your key and provider."
	msgRateLimited    = "Rate limit reached. Please wait a moment and try again."
	msgServerFault    = "Internal server error. Please try again later."
	msgUnreachable    = "Cannot connect to the interview service. Please ensure the backend is running and reachable."
)

var offlineVerbs = map[string]string{
	OpStart:      "start an interview",
	OpQuestion:   "generate question",
	OpAnswer:     "submit answer",
	OpFollowup:   "request a follow-up",
	OpEnd:        "notify the service",
	OpTranscribe: "transcribe audio",
	OpRestore:    "restore the session",
}

// UserMessage returns the text shown to the user for err. Service-supplied
// detail wins over the generic message for the kind, except where the kind
// always means the session is gone.
func UserMessage(err error) string {
	var te *Error
	if !errors.As(err, &te) {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	switch te.Kind {
	case KindOffline:
		verb, ok := offlineVerbs[te.Op]
		if !ok {
			verb = "reach the interview service"
		}
		return fmt.Sprintf("Cannot %s while offline. Please check your internet connection.", verb)
	case KindInvalidSession:
		return msgSessionExpired
	case KindNotFound:
		if isSessionNotFound(te.Detail) {
			return msgSessionExpired
		}
		return orDefault(te.Detail, msgNotFound)
	case KindBadRequest:
		return orDefault(te.Detail, msgBadRequest)
	case KindAuthFailure:
		return orDefault(te.Detail, msgAuth)
	case KindRateLimited:
		return orDefault(te.Detail, msgRateLimited)
	case KindServerFault:
		return orDefault(te.Detail, msgServerFault)
	case KindUnreachable:
		return msgUnreachable
	}
	return te.Error()
}

func orDefault(detail, fallback string) string {
	if strings.TrimSpace(detail) != "" {
		return detail
	}
	return fallback
}

func isSessionNotFound(detail string) bool {
	return strings.Contains(strings.ToLower(detail), "session not found")
}

// kindForStatus maps a non-2xx status to an error kind.
func kindForStatus(status int, detail string) Kind {
	if isSessionNotFound(detail) {
		return KindNotFound
	}
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindInvalidSession
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailure
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindBadRequest
	default:
		return KindServerFault
	}
}
