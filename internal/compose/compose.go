// Package compose is the boundary to the external document compositor: two
// images plus extracted fields in, one printable artifact out. The layout
// engine itself is a black box behind the Compositor contract.
package compose

import (
	"context"

	"idmerge/internal/recognize"
)

// Request carries everything the compositor needs for one artifact.
type Request struct {
	FrontImage []byte
	BackImage  []byte
	Fields     *recognize.FrontFields
}

// Compositor renders a front/back pair plus fields into a printable
// artifact. Implementations are safe for concurrent use.
type Compositor interface {
	Compose(ctx context.Context, req Request) ([]byte, error)
}
