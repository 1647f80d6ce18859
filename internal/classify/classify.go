// Package classify decides, per image, which document side it most likely
// shows. Gateway failures on one side hypothesis degrade that side's verdict
// to zero instead of aborting: a single image is expected to plausibly be
// either side, and one-sided recognition failure is routine.
package classify

import (
	"context"
	"log/slog"
	"sort"

	"idmerge/constants"
	"idmerge/internal/recognize"
	"idmerge/internal/validate"
)

// Candidate is the per-image classification outcome. Built once during
// classification and never mutated afterwards; callers that need a variant
// (e.g. a best-effort note) create a copy.
type Candidate struct {
	Ref             string
	Front           validate.Verdict
	Back            validate.Verdict
	FrontFields     *recognize.FrontFields
	BackFields      *recognize.BackFields
	RecommendedSide constants.Side
}

func (c Candidate) FrontScore() int { return c.Front.Score }
func (c Candidate) BackScore() int  { return c.Back.Score }

// Classifier scores one image against both side hypotheses.
type Classifier struct {
	rec recognize.Recognizer
	val *validate.Validator
	log *slog.Logger
}

func NewClassifier(rec recognize.Recognizer, val *validate.Validator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{rec: rec, val: val, log: logger}
}

// Classify never fails outright; the worst case is a candidate with both
// verdicts at zero and RecommendedSide Unknown.
func (c *Classifier) Classify(ctx context.Context, ref string, image []byte) Candidate {
	cand := Candidate{Ref: ref}

	// Keyword pre-scan: a full-page hypothesis whose only job is to spot
	// back-side marker phrases. If it finds one, the back path can pass the
	// keyword tier even when field extraction fails.
	var hits []string
	if scan, err := c.rec.Recognize(ctx, image, recognize.HintCombined); err != nil {
		c.log.Warn("classify.scan_failed", "ref", ref, "error", err)
	} else {
		hits = c.val.MarkerHits(scan.RawText)
	}

	cand.Front, cand.FrontFields = c.scoreFront(ctx, ref, image)
	cand.Back, cand.BackFields = c.scoreBack(ctx, ref, image, hits)
	cand.RecommendedSide = recommend(cand.Front, cand.Back)

	c.log.Info("classify.done",
		"ref", ref,
		"front_score", cand.Front.Score,
		"back_score", cand.Back.Score,
		"side", string(cand.RecommendedSide),
	)
	return cand
}

func (c *Classifier) scoreFront(ctx context.Context, ref string, image []byte) (validate.Verdict, *recognize.FrontFields) {
	res, err := c.rec.Recognize(ctx, image, recognize.HintFront)
	if err != nil || res.Front == nil {
		c.log.Warn("classify.front_failed", "ref", ref, "error", err)
		return failedVerdict("front extraction failed"), nil
	}
	return c.val.ScoreFront(*res.Front), res.Front
}

func (c *Classifier) scoreBack(ctx context.Context, ref string, image []byte, hits []string) (validate.Verdict, *recognize.BackFields) {
	res, err := c.rec.Recognize(ctx, image, recognize.HintBack)
	if err != nil || res.Back == nil {
		c.log.Warn("classify.back_failed", "ref", ref, "error", err, "keyword_hits", len(hits))
		if len(hits) == 0 {
			return failedVerdict("back extraction failed"), nil
		}
		// Keyword short-circuit: authority/period extraction failed, but the
		// marker phrases alone satisfy the keyword tier.
		bf := &recognize.BackFields{KeywordHits: hits}
		return c.val.ScoreBack(*bf), bf
	}
	bf := *res.Back
	bf.KeywordHits = mergeHits(bf.KeywordHits, hits)
	return c.val.ScoreBack(bf), &bf
}

// recommend applies the side precedence. Ties favor front, since front
// carries the identity-critical fields.
func recommend(front, back validate.Verdict) constants.Side {
	switch {
	case front.Score > back.Score && front.Score >= validate.FrontPassScore:
		return constants.SideFront
	case back.Score > front.Score && back.Score >= validate.BackPassWithoutMatch:
		return constants.SideBack
	case front.Score == back.Score && front.Score > 0:
		return constants.SideFront
	default:
		return constants.SideUnknown
	}
}

func failedVerdict(reason string) validate.Verdict {
	return validate.Verdict{Valid: false, Score: 0, Reasons: []string{reason}}
}

func mergeHits(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, h := range a {
		set[h] = struct{}{}
	}
	for _, h := range b {
		set[h] = struct{}{}
	}
	merged := make([]string, 0, len(set))
	for h := range set {
		merged = append(merged, h)
	}
	sort.Strings(merged)
	return merged
}
