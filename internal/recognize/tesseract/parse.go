package tesseract

import (
	"regexp"
	"strings"

	"idmerge/constants"
	"idmerge/internal/recognize"
)

// Labeled-line extraction from raw OCR text. Tesseract output for card scans
// keeps label and value on one line often enough for this to work; anything
// it cannot find stays empty and loses points downstream.
var (
	reName      = regexp.MustCompile(`姓\s*名[:：\s]*(\S+)`)
	reGender    = regexp.MustCompile(`性\s*别[:：\s]*([男女])`)
	reNation    = regexp.MustCompile(`民\s*族[:：\s]*(\S+)`)
	reBirthday  = regexp.MustCompile(`出\s*生[:：\s]*(\S+)`)
	reAddress   = regexp.MustCompile(`住\s*址[:：\s]*(\S.*)`)
	reIDNumber  = regexp.MustCompile(`公民身份号码[:：\s]*([0-9Xx\s]{18,})`)
	reBareID    = regexp.MustCompile(`\b(\d{17}[0-9Xx])\b`)
	reAuthority = regexp.MustCompile(`签发机关[:：\s]*(\S.*)`)
	rePeriod    = regexp.MustCompile(`有效期限[:：\s]*(\S.*)`)
)

func parseFront(text string) (recognize.Result, error) {
	f := &recognize.FrontFields{
		Name:     firstGroup(reName, text),
		Gender:   firstGroup(reGender, text),
		Nation:   firstGroup(reNation, text),
		Birthday: firstGroup(reBirthday, text),
		Address:  strings.TrimSpace(firstGroup(reAddress, text)),
	}
	id := firstGroup(reIDNumber, text)
	if id == "" {
		id = firstGroup(reBareID, text)
	}
	f.IDNumber = strings.Join(strings.Fields(id), "")

	if f.Name == "" && f.IDNumber == "" {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "no front fields in scan text", nil)
	}
	return recognize.Result{Side: constants.SideFront, Front: f}, nil
}

func parseBack(text string) (recognize.Result, error) {
	b := &recognize.BackFields{
		IssueAuthority: strings.TrimSpace(firstGroup(reAuthority, text)),
		ValidPeriod:    strings.TrimSpace(firstGroup(rePeriod, text)),
	}
	if b.IssueAuthority == "" && b.ValidPeriod == "" {
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "no back fields in scan text", nil)
	}
	return recognize.Result{Side: constants.SideBack, Back: b}, nil
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
