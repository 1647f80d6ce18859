package validate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"idmerge/internal/recognize"
	"idmerge/internal/validate"
)

func newValidator(t *testing.T) *validate.Validator {
	t.Helper()
	v, err := validate.NewValidator(validate.DefaultRules())
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestScoreFront(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name      string
		fields    recognize.FrontFields
		wantScore int
		wantValid bool
	}{
		{
			name: "all fields present",
			fields: recognize.FrontFields{
				Name:     "李雷",
				IDNumber: "11010119900101001X",
				Gender:   "男",
				Nation:   "汉",
				Birthday: "19900101",
				Address:  "北京市东城区某街道1号",
			},
			wantScore: 100,
			wantValid: true,
		},
		{
			name: "id with internal spaces and lowercase x",
			fields: recognize.FrontFields{
				Name:     "韩梅梅",
				IDNumber: "110101 19900101 001x",
				Gender:   "female",
			},
			wantScore: 75,
			wantValid: true,
		},
		{
			name: "name and id only",
			fields: recognize.FrontFields{
				Name:     "李雷",
				IDNumber: "110101199001010010",
			},
			wantScore: 60,
			wantValid: true,
		},
		{
			name: "id too short",
			fields: recognize.FrontFields{
				Name:     "李雷",
				IDNumber: "1101011990",
				Gender:   "男",
			},
			wantScore: 45,
			wantValid: false,
		},
		{
			name: "single rune name rejected",
			fields: recognize.FrontFields{
				Name:     "李",
				IDNumber: "11010119900101001X",
			},
			wantScore: 30,
			wantValid: false,
		},
		{
			name:      "empty extraction",
			fields:    recognize.FrontFields{},
			wantScore: 0,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ScoreFront(tt.fields)
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d (reasons: %v)", got.Score, tt.wantScore, got.Reasons)
			}
			if got.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", got.Valid, tt.wantValid)
			}
		})
	}
}

func TestScoreFrontReasons(t *testing.T) {
	v := newValidator(t)

	got := v.ScoreFront(recognize.FrontFields{
		Name:     "李雷",
		IDNumber: "110101 19900101 001X",
		Gender:   "男",
		Nation:   "汉",
		Address:  "北京市东城区",
	})
	want := validate.Verdict{
		Valid: true,
		Score: 90,
		Reasons: []string{
			"name: pass (+30)",
			"id_number: pass (+30)",
			"gender: pass (+15)",
			"nation: pass (+10)",
			"birthday: fail (empty)",
			"address: pass (+5)",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreBack(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name      string
		fields    recognize.BackFields
		wantScore int
		wantValid bool
	}{
		{
			name: "keyword tier alone passes",
			fields: recognize.BackFields{
				KeywordHits: []string{"居民身份证"},
			},
			wantScore: 80,
			wantValid: true,
		},
		{
			name: "all tiers capped at 100",
			fields: recognize.BackFields{
				IssueAuthority: "北京市公安局东城分局",
				ValidPeriod:    "20100101-20300101",
				KeywordHits:    []string{"中华人民共和国", "居民身份证"},
			},
			wantScore: 100,
			wantValid: true,
		},
		{
			name: "keyword plus partial supplements",
			fields: recognize.BackFields{
				IssueAuthority: "某某机关",
				ValidPeriod:    "无法识别",
				KeywordHits:    []string{"居民身份证"},
			},
			wantScore: 100,
			wantValid: true,
		},
		{
			name: "supplements without keyword stay below threshold",
			fields: recognize.BackFields{
				IssueAuthority: "北京市公安局",
				ValidPeriod:    "长期",
			},
			wantScore: 50,
			wantValid: false,
		},
		{
			name: "unrecognized hit ignored",
			fields: recognize.BackFields{
				KeywordHits: []string{"发票"},
			},
			wantScore: 0,
			wantValid: false,
		},
		{
			name:      "empty extraction",
			fields:    recognize.BackFields{},
			wantScore: 0,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.ScoreBack(tt.fields)
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d (reasons: %v)", got.Score, tt.wantScore, got.Reasons)
			}
			if got.Valid != tt.wantValid {
				t.Errorf("valid = %v, want %v", got.Valid, tt.wantValid)
			}
		})
	}
}

func TestScoreBackReasons(t *testing.T) {
	v := newValidator(t)

	got := v.ScoreBack(recognize.BackFields{
		IssueAuthority: "北京市公安局",
		ValidPeriod:    "2010.01.01-2030.01.01",
		KeywordHits:    []string{"居民身份证"},
	})
	want := validate.Verdict{
		Valid: true,
		Score: 100,
		Reasons: []string{
			"keywords: pass (+80) matched=[居民身份证]",
			"issue_authority: pass (+30)",
			"valid_period: pass (+20)",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("verdict mismatch (-want +got):\n%s", diff)
	}
}

func TestScoringIsDeterministic(t *testing.T) {
	v := newValidator(t)

	front := recognize.FrontFields{Name: "李雷", IDNumber: "11010119900101001X", Gender: "男"}
	back := recognize.BackFields{
		IssueAuthority: "天津市公安局",
		ValidPeriod:    "长期",
		KeywordHits:    []string{"中华人民共和国", "居民身份证"},
	}

	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(v.ScoreFront(front), v.ScoreFront(front)); diff != "" {
			t.Fatalf("front verdict drifted between calls:\n%s", diff)
		}
		if diff := cmp.Diff(v.ScoreBack(back), v.ScoreBack(back)); diff != "" {
			t.Fatalf("back verdict drifted between calls:\n%s", diff)
		}
	}
}

func TestMarkerHits(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "both markers, sorted",
			text: "居民身份证 中华人民共和国 签发机关",
			want: []string{"中华人民共和国", "居民身份证"},
		},
		{
			name: "one marker",
			text: "这是一张居民身份证的背面",
			want: []string{"居民身份证"},
		},
		{
			name: "no markers",
			text: "收据 2024-01-01 金额 100 元",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, v.MarkerHits(tt.text)); diff != "" {
				t.Errorf("hits mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPeriodPatterns(t *testing.T) {
	v := newValidator(t)

	pass := []string{"2010.01.01-2030.01.01", "2010.1.1-长期", "20100101-20300101", "20100101-长期", "长期"}
	fail := []string{"2010/01/01-2030/01/01", "从2010到2030", ""}

	for _, p := range pass {
		got := v.ScoreBack(recognize.BackFields{ValidPeriod: p})
		if got.Score != 20 {
			t.Errorf("period %q: score = %d, want 20", p, got.Score)
		}
	}
	for _, p := range fail {
		got := v.ScoreBack(recognize.BackFields{ValidPeriod: p})
		if got.Score >= 20 {
			t.Errorf("period %q: score = %d, want < 20", p, got.Score)
		}
	}
}
