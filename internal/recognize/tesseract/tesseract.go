package tesseract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"idmerge/constants"
	"idmerge/internal/recognize"
)

// Engine is a local tesseract-backed Recognizer for offline runs. A fresh
// gosseract client is created per call; the engine itself holds no state and
// is safe for concurrent use.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	tessdataDir   string
	log           *slog.Logger
}

func NewEngine(tessdataDir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		clientFactory: gosseract.NewClient,
		languages:     []string{"chi_sim", "eng"},
		tessdataDir:   tessdataDir,
		log:           logger,
	}
}

// Recognize implements recognize.Recognizer.
func (e *Engine) Recognize(ctx context.Context, image []byte, hint recognize.Hint) (recognize.Result, error) {
	select {
	case <-ctx.Done():
		return recognize.Result{}, recognize.NewError(recognize.KindTransient, "canceled", ctx.Err())
	default:
	}

	text, err := e.text(image)
	if err != nil {
		return recognize.Result{}, err
	}

	switch hint {
	case recognize.HintCombined:
		return recognize.Result{Side: constants.SideUnknown, RawText: text}, nil
	case recognize.HintFront:
		return parseFront(text)
	case recognize.HintBack:
		return parseBack(text)
	default:
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "unknown hint: "+string(hint), nil)
	}
}

func (e *Engine) text(image []byte) (string, error) {
	c := e.clientFactory()
	defer func() {
		if err := c.Close(); err != nil {
			e.log.Warn("tesseract.close_error", "error", err)
		}
	}()

	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return "", recognize.NewError(recognize.KindTransient, "set tessdata prefix", err)
		}
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return "", recognize.NewError(recognize.KindTransient, "set languages", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return "", recognize.NewError(recognize.KindInvalid, "set image", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", recognize.NewError(recognize.KindTransient, "recognize text", err)
	}
	return strings.TrimSpace(text), nil
}
