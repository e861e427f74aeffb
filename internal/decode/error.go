package decode

import "fmt"

// ErrorKind classifies a decode failure.
type ErrorKind int

const (
	// KindMalformedJSON means the input text is not valid JSON.
	KindMalformedJSON ErrorKind = iota
	// KindUnsupportedEnvelope means the text is valid JSON but not a
	// ris_message envelope (e.g. a ris_error or pong control message).
	// Callers can safely skip these.
	KindUnsupportedEnvelope
	// KindMissingField means a field required for the message kind is absent.
	KindMissingField
	// KindInvalidField means a field is present but fails semantic parsing.
	KindInvalidField
	// KindUnknownMessageKind means the inner message type tag is outside the
	// set this decoder understands.
	KindUnknownMessageKind
	// KindEndOfRIB means a structurally valid UPDATE carried no routing
	// change: it is the peer's end-of-RIB synchronization marker. Benign;
	// callers log and continue.
	KindEndOfRIB
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedJSON:
		return "malformed_json"
	case KindUnsupportedEnvelope:
		return "unsupported_envelope"
	case KindMissingField:
		return "missing_field"
	case KindInvalidField:
		return "invalid_field"
	case KindUnknownMessageKind:
		return "unknown_message_kind"
	case KindEndOfRIB:
		return "end_of_rib"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by this package. Field names the
// offending field for missing/invalid failures; Fragment carries the raw
// value that failed to parse, for diagnostics.
type Error struct {
	Kind     ErrorKind
	Field    string
	Fragment string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("missing field %q", e.Field)
	case KindInvalidField:
		if e.Fragment != "" {
			return fmt.Sprintf("invalid field %q: %q", e.Field, e.Fragment)
		}
		return fmt.Sprintf("invalid field %q", e.Field)
	case KindUnknownMessageKind:
		return fmt.Sprintf("unknown message kind %q", e.Fragment)
	case KindUnsupportedEnvelope:
		if e.Fragment != "" {
			return fmt.Sprintf("unsupported envelope %q", e.Fragment)
		}
		return "unsupported envelope"
	case KindEndOfRIB:
		return "end of RIB marker"
	default:
		return "malformed JSON"
	}
}

// Is reports kind equality, so callers can match any failure of a given kind
// with errors.Is against the exported sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is. The two below are the recoverable conditions a
// streaming caller is expected to skip rather than treat as a real failure.
var (
	ErrEndOfRIB            = &Error{Kind: KindEndOfRIB}
	ErrUnsupportedEnvelope = &Error{Kind: KindUnsupportedEnvelope}
)

func malformed(fragment string) *Error {
	return &Error{Kind: KindMalformedJSON, Fragment: fragment}
}

func missing(field string) *Error {
	return &Error{Kind: KindMissingField, Field: field}
}

func invalid(field, fragment string) *Error {
	return &Error{Kind: KindInvalidField, Field: field, Fragment: fragment}
}
