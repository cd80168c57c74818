package forest

import "fmt"

// Kind classifies a forest error into one of a small set of categories.
type Kind string

const (
	// KindDecode marks a truncated or malformed tree/items/meta blob.
	KindDecode Kind = "decode"
	// KindStorage marks a failure returned by the storage backend.
	KindStorage Kind = "storage"
	// KindInvariant marks a builder or forest invariant breach — a bug,
	// not a recoverable condition.
	KindInvariant Kind = "invariant"
	// KindRefResolution marks a Ref pointing at a missing or corrupt
	// tree blob.
	KindRefResolution Kind = "ref_resolution"
)

// Error is the error type every exported forest operation returns on
// failure. Kind lets callers classify a failure with errors.Is against
// one of the Err* sentinels below, the same role KVError plays in
// freyjadb's pkg/store, generalized with an Is method so a single
// sentinel matches every dynamically-worded instance of its kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("eyros: %s: %s", e.Kind, e.Message)
}

// Is implements the errors.Is protocol: two *Error values match if they
// share a Kind, regardless of Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for errors.Is comparisons, one per error kind.
var (
	ErrDecode        = &Error{Kind: KindDecode, Message: "decode error"}
	ErrStorage       = &Error{Kind: KindStorage, Message: "storage error"}
	ErrInvariant     = &Error{Kind: KindInvariant, Message: "invariant violation"}
	ErrRefResolution = &Error{Kind: KindRefResolution, Message: "reference resolution failure"}
)

func decodeErrorf(format string, args ...any) error {
	return &Error{Kind: KindDecode, Message: fmt.Sprintf(format, args...)}
}

func storageErrorf(format string, args ...any) error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...)}
}

func invariantErrorf(format string, args ...any) error {
	return &Error{Kind: KindInvariant, Message: fmt.Sprintf(format, args...)}
}

func refResolutionErrorf(format string, args ...any) error {
	return &Error{Kind: KindRefResolution, Message: fmt.Sprintf(format, args...)}
}
