package batch

import "fmt"

// UnitErrorKind classifies a per-unit failure.
type UnitErrorKind string

const (
	KindInsufficientImages   UnitErrorKind = "INSUFFICIENT_IMAGES"
	KindDocumentIncomplete   UnitErrorKind = "DOCUMENT_INCOMPLETE"
	KindClassificationFailed UnitErrorKind = "CLASSIFICATION_FAILED"
	KindCompositionFailed    UnitErrorKind = "COMPOSITION_FAILED"
	KindTimeout              UnitErrorKind = "TIMEOUT"
)

// UnitError is a terminal per-unit failure. It escapes only as far as the
// orchestrator, which converts it into an outcome and moves on.
type UnitError struct {
	Kind    UnitErrorKind
	Unit    string
	Message string
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unit %q: %s", e.Unit, e.Message)
}

func newUnitError(kind UnitErrorKind, unit, format string, args ...any) *UnitError {
	return &UnitError{Kind: kind, Unit: unit, Message: fmt.Sprintf(format, args...)}
}
