// Package match pairs the images of one logical unit into a front/back
// selection. All images are classified before anything is picked: the best
// back candidate depends on which image was already claimed as front.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"idmerge/constants"
	"idmerge/internal/classify"
	"idmerge/internal/recognize"
)

// BestEffortNote marks a back pick whose validation did not pass, so
// downstream consumers know to lower their confidence in the artifact.
const BestEffortNote = "best-effort pick: back validation did not pass"

// ErrDocumentIncomplete means no back-eligible image remained after the
// front pick. Fatal for the unit only, never for the batch.
var ErrDocumentIncomplete = errors.New("document incomplete: no usable back-side image")

// Image is one raw candidate image of a unit.
type Image struct {
	Ref  string
	Data []byte
}

// Unit is one logical document owner's bag of candidate images.
type Unit struct {
	Name   string
	Images []Image
}

// Result is the front/back selection for one unit.
type Result struct {
	Front          classify.Candidate
	Back           classify.Candidate
	Name           string
	Fields         *recognize.FrontFields
	BestEffortBack bool
}

// SideClassifier scores a single image against both side hypotheses.
type SideClassifier interface {
	Classify(ctx context.Context, ref string, image []byte) classify.Candidate
}

// Matcher selects the best front/back pair out of a unit's images.
type Matcher struct {
	cls SideClassifier
	log *slog.Logger
}

func NewMatcher(cls SideClassifier, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{cls: cls, log: logger}
}

// Match classifies every image and applies the selection rules. The chosen
// front and back are never the same image. Units with fewer than 2 images
// are rejected by the orchestrator before they get here; a single-image unit
// that slips through fails as document-incomplete once the front pick leaves
// nothing for the back.
func (m *Matcher) Match(ctx context.Context, unit Unit) (Result, error) {
	if len(unit.Images) == 0 {
		return Result{}, fmt.Errorf("unit %q has no images", unit.Name)
	}

	cands := make([]classify.Candidate, len(unit.Images))
	for i, img := range unit.Images {
		cands[i] = m.cls.Classify(ctx, img.Ref, img.Data)
	}

	frontIdx := pickFront(cands)
	var res Result
	if frontIdx >= 0 {
		res.Front = cands[frontIdx]
		res.Fields = cands[frontIdx].FrontFields
	} else {
		// No front-eligible image: fall back to unit order and let the unit
		// name stand in for the extracted one.
		frontIdx = 0
		res.Front = cands[0]
	}

	if res.Fields != nil && res.Fields.Name != "" {
		res.Name = res.Fields.Name
	} else {
		res.Name = unit.Name
	}

	backIdx := pickBack(cands, frontIdx)
	if backIdx >= 0 {
		res.Back = cands[backIdx]
	} else {
		// Best effort: first image that is not the chosen front, regardless
		// of score, flagged so consumers see validation did not pass.
		fb := firstOther(cands, frontIdx)
		if fb < 0 {
			return Result{}, ErrDocumentIncomplete
		}
		res.Back = withBackNote(cands[fb], BestEffortNote)
		res.BestEffortBack = true
	}

	m.log.Info("match.done",
		"unit", unit.Name,
		"front", res.Front.Ref, "front_score", res.Front.FrontScore(),
		"back", res.Back.Ref, "back_score", res.Back.BackScore(),
		"best_effort_back", res.BestEffortBack,
	)
	return res, nil
}

// pickFront returns the index of the best front candidate, or -1 when the
// pool is empty. Sorting is stable so equal scores keep unit order.
func pickFront(cands []classify.Candidate) int {
	var pool []int
	for i, c := range cands {
		if c.RecommendedSide == constants.SideFront || c.FrontScore() > 0 {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return -1
	}
	sort.SliceStable(pool, func(a, b int) bool {
		return cands[pool[a]].FrontScore() > cands[pool[b]].FrontScore()
	})
	return pool[0]
}

// pickBack returns the index of the best back candidate excluding the chosen
// front, or -1 when the pool (after exclusion) is empty.
func pickBack(cands []classify.Candidate, frontIdx int) int {
	var pool []int
	for i, c := range cands {
		if i == frontIdx {
			continue
		}
		if c.RecommendedSide == constants.SideBack || c.BackScore() > 0 {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return -1
	}
	sort.SliceStable(pool, func(a, b int) bool {
		return cands[pool[a]].BackScore() > cands[pool[b]].BackScore()
	})
	return pool[0]
}

func firstOther(cands []classify.Candidate, frontIdx int) int {
	for i := range cands {
		if i != frontIdx {
			return i
		}
	}
	return -1
}

// withBackNote copies the candidate with an extra reason line on its back
// verdict. Candidates are replaced, never patched in place.
func withBackNote(c classify.Candidate, note string) classify.Candidate {
	out := c
	reasons := make([]string, 0, len(c.Back.Reasons)+1)
	reasons = append(reasons, c.Back.Reasons...)
	reasons = append(reasons, note)
	out.Back.Reasons = reasons
	return out
}
