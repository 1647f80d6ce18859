package baidu

import (
	"encoding/json"
	"strings"

	"idmerge/constants"
	"idmerge/internal/recognize"
)

// wordEntry is one recognized field value in the provider payload.
type wordEntry struct {
	Words string `json:"words"`
}

type idcardPayload struct {
	LogID       json.Number          `json:"log_id"`
	WordsResult map[string]wordEntry `json:"words_result"`
	ImageStatus string               `json:"image_status"`
}

type generalPayload struct {
	LogID       json.Number `json:"log_id"`
	WordsResult []wordEntry `json:"words_result"`
}

// mapFront turns a validated front-side payload into FrontFields. Missing
// identity-critical keys fail fast as Invalid instead of propagating empty
// strings into scoring.
func mapFront(raw []byte) (recognize.Result, error) {
	if err := validateIDCard(raw); err != nil {
		return recognize.Result{}, err
	}
	var p idcardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "decode front payload", err)
	}
	name, okName := p.WordsResult["姓名"]
	idNum, okID := p.WordsResult["公民身份号码"]
	if !okName && !okID {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "front payload missing name and id number", nil)
	}
	f := &recognize.FrontFields{
		Name:     strings.TrimSpace(name.Words),
		IDNumber: strings.TrimSpace(idNum.Words),
		Gender:   strings.TrimSpace(p.WordsResult["性别"].Words),
		Nation:   strings.TrimSpace(p.WordsResult["民族"].Words),
		Birthday: strings.TrimSpace(p.WordsResult["出生"].Words),
		Address:  strings.TrimSpace(p.WordsResult["住址"].Words),
	}
	return recognize.Result{Side: constants.SideFront, Front: f}, nil
}

// mapBack turns a validated back-side payload into BackFields. The provider
// reports issue/expiry dates separately; they join into the period form the
// validator understands ("YYYYMMDD-YYYYMMDD" or "YYYYMMDD-长期").
func mapBack(raw []byte) (recognize.Result, error) {
	if err := validateIDCard(raw); err != nil {
		return recognize.Result{}, err
	}
	var p idcardPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "decode back payload", err)
	}
	authority, okAuth := p.WordsResult["签发机关"]
	period := strings.TrimSpace(p.WordsResult["有效期限"].Words)
	if period == "" {
		issued := strings.TrimSpace(p.WordsResult["签发日期"].Words)
		expires := strings.TrimSpace(p.WordsResult["失效日期"].Words)
		if issued != "" && expires != "" {
			period = issued + "-" + expires
		}
	}
	if !okAuth && period == "" {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "back payload missing authority and period", nil)
	}
	b := &recognize.BackFields{
		IssueAuthority: strings.TrimSpace(authority.Words),
		ValidPeriod:    period,
	}
	return recognize.Result{Side: constants.SideBack, Back: b}, nil
}

// mapGeneral flattens a full-page scan into raw text for the keyword pre-scan.
func mapGeneral(raw []byte) (recognize.Result, error) {
	if err := validateGeneral(raw); err != nil {
		return recognize.Result{}, err
	}
	var p generalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "decode general payload", err)
	}
	lines := make([]string, 0, len(p.WordsResult))
	for _, w := range p.WordsResult {
		lines = append(lines, w.Words)
	}
	return recognize.Result{Side: constants.SideUnknown, RawText: strings.Join(lines, "\n")}, nil
}
