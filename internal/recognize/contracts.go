package recognize

import (
	"context"
	"errors"
	"fmt"

	"idmerge/constants"
)

// Hint tells the provider which extraction to attempt.
type Hint string

const (
	HintFront Hint = "front"
	HintBack  Hint = "back"
	// HintCombined asks for a full-page text scan (no field extraction);
	// the classifier uses it for the keyword pre-scan.
	HintCombined Hint = "combined"
)

// FrontFields is the structured extraction from a document front side.
type FrontFields struct {
	Name     string `json:"name"`
	IDNumber string `json:"id_number"`
	Gender   string `json:"gender"`
	Nation   string `json:"nation"`
	Birthday string `json:"birthday"`
	Address  string `json:"address"`
}

// BackFields is the structured extraction from a document back side.
// KeywordHits is kept sorted so verdicts derived from it are deterministic.
type BackFields struct {
	IssueAuthority string   `json:"issue_authority"`
	ValidPeriod    string   `json:"valid_period"`
	KeywordHits    []string `json:"keyword_hits,omitempty"`
}

// Result is the tagged extraction outcome of one recognize call.
// Exactly one of Front/Back is set for side hints; RawText carries the
// full recognized text for combined scans. Immutable once returned.
type Result struct {
	Side    constants.Side `json:"side"`
	Front   *FrontFields   `json:"front,omitempty"`
	Back    *BackFields    `json:"back,omitempty"`
	RawText string         `json:"raw_text,omitempty"`
}

// ErrorKind classifies a recognition failure for the retry policy.
type ErrorKind string

const (
	KindTransient ErrorKind = "TRANSIENT" // network/rate-limit/timeout, retryable
	KindAuth      ErrorKind = "AUTH"      // expired or rejected session token, retryable
	KindInvalid   ErrorKind = "INVALID"   // malformed image or response, not retryable
)

// Error is the provider failure surfaced to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recognition %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("recognition %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a recognition error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the error kind, defaulting to Transient for errors the
// provider did not classify (plain network failures and the like).
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindTransient
}

// Recognizer is the external recognition capability: one image in, one
// structured extraction out. Implementations hold no mutable session state
// visible to callers and are safe for concurrent use.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, hint Hint) (Result, error)
}
