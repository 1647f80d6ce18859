package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"idmerge/internal/compose"
	"idmerge/internal/match"
	"idmerge/internal/recognize"
)

// Outcome is the terminal record for one unit, written exactly once.
type Outcome struct {
	UnitName       string                 `json:"unit_name"`
	Success        bool                   `json:"success"`
	ExtractedName  string                 `json:"extracted_name,omitempty"`
	Fields         *recognize.FrontFields `json:"fields,omitempty"`
	FrontRef       string                 `json:"front_ref,omitempty"`
	BackRef        string                 `json:"back_ref,omitempty"`
	BestEffortBack bool                   `json:"best_effort_back,omitempty"`
	ArtifactPath   string                 `json:"artifact_path,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Elapsed        time.Duration          `json:"elapsed"`
}

// Summary is the fold over all unit outcomes, in input order.
type Summary struct {
	Total           int      `json:"total"`
	Succeeded       int      `json:"succeeded"`
	Failed          int      `json:"failed"`
	FailedUnitNames []string `json:"failed_unit_names,omitempty"`
}

// Record is one completed batch run, the persisted shape.
type Record struct {
	ID        uuid.UUID `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
	Outcomes  []Outcome `json:"results"`
	Summary   Summary   `json:"summary"`
}

// Store persists completed batch records. Store failures never fail a batch.
type Store interface {
	SaveBatch(ctx context.Context, rec Record) error
}

// UnitMatcher pairs a unit's images into a front/back selection.
type UnitMatcher interface {
	Match(ctx context.Context, unit match.Unit) (match.Result, error)
}

// Options tune a batch run.
type Options struct {
	Workers     int           // bounded worker pool size; 1 means sequential
	UnitTimeout time.Duration // per-unit deadline; 0 means 5m
	ArtifactDir string        // where composed artifacts are written
}

// Orchestrator drives a batch: one matcher call and one composition per
// unit, one outcome per unit, one summary per batch. A unit's failure never
// aborts the batch.
type Orchestrator struct {
	matcher UnitMatcher
	comp    compose.Compositor // nil skips composition
	store   Store              // nil skips persistence
	opts    Options
	log     *slog.Logger
}

func NewOrchestrator(matcher UnitMatcher, comp compose.Compositor, store Store, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Workers > 8 {
		opts.Workers = 8
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 5 * time.Minute
	}
	return &Orchestrator{matcher: matcher, comp: comp, store: store, opts: opts, log: logger}
}

// Run processes all units and returns the completed record. Outcomes land in
// an index-addressed slice, so the summary folds in input order no matter
// how many workers ran.
func (o *Orchestrator) Run(ctx context.Context, units []Unit) (Record, error) {
	rec := Record{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	o.log.Info("batch.start", "batch_id", rec.ID, "units", len(units), "workers", o.opts.Workers)

	outcomes := make([]Outcome, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			outcomes[i] = o.processUnit(gctx, u)
			return nil
		})
	}
	_ = g.Wait() // unit failures are captured in their outcomes

	rec.Outcomes = outcomes
	for _, out := range outcomes {
		rec.Summary.Total++
		if out.Success {
			rec.Summary.Succeeded++
		} else {
			rec.Summary.Failed++
			rec.Summary.FailedUnitNames = append(rec.Summary.FailedUnitNames, out.UnitName)
		}
	}

	if o.store != nil {
		if err := o.store.SaveBatch(ctx, rec); err != nil {
			o.log.Error("batch.store_failed", "batch_id", rec.ID, "error", err)
		}
	}

	o.log.Info("batch.done",
		"batch_id", rec.ID,
		"total", rec.Summary.Total,
		"succeeded", rec.Summary.Succeeded,
		"failed", rec.Summary.Failed,
	)
	return rec, nil
}

func (o *Orchestrator) processUnit(ctx context.Context, u Unit) Outcome {
	start := time.Now()
	defer o.cleanupSpool(u)

	uctx, cancel := context.WithTimeout(ctx, o.opts.UnitTimeout)
	defer cancel()

	out := o.runUnit(uctx, u)
	out.Elapsed = time.Since(start)
	if out.Success {
		o.log.Info("batch.unit.ok",
			"unit", u.Name, "front", out.FrontRef, "back", out.BackRef,
			"best_effort_back", out.BestEffortBack,
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)
	} else {
		o.log.Warn("batch.unit.failed", "unit", u.Name, "error", out.ErrorMessage,
			"elapsed_ms", out.Elapsed.Milliseconds())
	}
	return out
}

func (o *Orchestrator) runUnit(ctx context.Context, u Unit) Outcome {
	if len(u.Images) < 2 {
		msg := fmt.Sprintf("found %d image(s); at least 2 (front and back) are required", len(u.Images))
		if u.Declared && len(u.Images) == 0 {
			msg += "; declared file names may not match any uploaded item"
		}
		return failedOutcome(u, newUnitError(KindInsufficientImages, u.Name, "%s", msg))
	}

	res, err := o.matcher.Match(ctx, match.Unit{Name: u.Name, Images: u.Images})
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return failedOutcome(u, newUnitError(KindTimeout, u.Name, "timed out after %s", o.opts.UnitTimeout))
		case errors.Is(err, match.ErrDocumentIncomplete):
			return failedOutcome(u, newUnitError(KindDocumentIncomplete, u.Name, "%v", err))
		default:
			return failedOutcome(u, newUnitError(KindClassificationFailed, u.Name, "classification failed: %v", err))
		}
	}

	out := Outcome{
		UnitName:       u.Name,
		Success:        true,
		ExtractedName:  res.Name,
		Fields:         res.Fields,
		FrontRef:       res.Front.Ref,
		BackRef:        res.Back.Ref,
		BestEffortBack: res.BestEffortBack,
	}

	if o.comp != nil {
		artifact, err := o.comp.Compose(ctx, compose.Request{
			FrontImage: imageData(u, res.Front.Ref),
			BackImage:  imageData(u, res.Back.Ref),
			Fields:     res.Fields,
		})
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return failedOutcome(u, newUnitError(KindTimeout, u.Name, "timed out after %s", o.opts.UnitTimeout))
			}
			return failedOutcome(u, newUnitError(KindCompositionFailed, u.Name, "composition failed: %v", err))
		}
		path, err := o.writeArtifact(u.Name, artifact)
		if err != nil {
			return failedOutcome(u, newUnitError(KindCompositionFailed, u.Name, "store artifact: %v", err))
		}
		out.ArtifactPath = path
	}
	return out
}

func failedOutcome(u Unit, uerr *UnitError) Outcome {
	return Outcome{UnitName: u.Name, ErrorMessage: uerr.Error()}
}

func (o *Orchestrator) writeArtifact(unitName string, artifact []byte) (string, error) {
	dir := o.opts.ArtifactDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.pdf", sanitizeName(unitName), uuid.New().String()[:8])
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, artifact, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

func imageData(u Unit, ref string) []byte {
	for _, img := range u.Images {
		if img.Ref == ref {
			return img.Data
		}
	}
	return nil
}

func (o *Orchestrator) cleanupSpool(u Unit) {
	if u.TempDir == "" {
		return
	}
	if err := os.RemoveAll(u.TempDir); err != nil {
		o.log.Warn("batch.spool_cleanup_failed", "unit", u.Name, "dir", u.TempDir, "error", err)
	}
}
