package predict

import "fmt"

// Kind classifies why a prediction did not produce a result.
type Kind int

const (
	KindModelNotLoaded Kind = iota + 1
	KindMissingInput
	KindInvalidImage
	KindPredictionFailed
)

func (k Kind) String() string {
	switch k {
	case KindModelNotLoaded:
		return "ML model not loaded"
	case KindMissingInput:
		return "Missing input"
	case KindInvalidImage:
		return "Invalid image"
	case KindPredictionFailed:
		return "Prediction failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ClientError reports whether the caller, not the service, is at fault.
func (k Kind) ClientError() bool {
	return k == KindMissingInput || k == KindInvalidImage
}

// Error is the single error type returned by Service.
type Error struct {
	Kind Kind
	// Field names the missing request field for KindMissingInput.
	Field  string
	Detail string
	Err    error
}

// Title is the short tag sent to clients, e.g. "Missing image_base64".
func (e *Error) Title() string {
	if e.Kind == KindMissingInput && e.Field != "" {
		return "Missing " + e.Field
	}
	return e.Kind.String()
}

func (e *Error) Error() string {
	return e.Title() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notLoaded(cause error) *Error {
	return &Error{
		Kind:   KindModelNotLoaded,
		Detail: "The ML model failed to load. Please contact the administrator.",
		Err:    cause,
	}
}

func missing(field, detail string) *Error {
	return &Error{Kind: KindMissingInput, Field: field, Detail: detail}
}

func invalidImage(err error) *Error {
	return &Error{Kind: KindInvalidImage, Detail: err.Error(), Err: err}
}

func failed(err error) *Error {
	return &Error{Kind: KindPredictionFailed, Detail: err.Error(), Err: err}
}
