package baidu

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"idmerge/internal/recognize"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapFront(t *testing.T) {
	raw := []byte(`{
		"log_id": 1234,
		"words_result": {
			"姓名": {"words": "李雷"},
			"公民身份号码": {"words": "11010119900101001X"},
			"性别": {"words": "男"},
			"民族": {"words": "汉"},
			"出生": {"words": "19900101"},
			"住址": {"words": "北京市东城区某街道1号"}
		}
	}`)
	res, err := mapFront(raw)
	if err != nil {
		t.Fatalf("mapFront: %v", err)
	}
	want := &recognize.FrontFields{
		Name:     "李雷",
		IDNumber: "11010119900101001X",
		Gender:   "男",
		Nation:   "汉",
		Birthday: "19900101",
		Address:  "北京市东城区某街道1号",
	}
	if diff := cmp.Diff(want, res.Front); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestMapFrontMissingIdentity(t *testing.T) {
	raw := []byte(`{"log_id": 1, "words_result": {"住址": {"words": "somewhere"}}}`)
	_, err := mapFront(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := recognize.KindOf(err); got != recognize.KindInvalid {
		t.Errorf("kind = %s, want %s", got, recognize.KindInvalid)
	}
}

func TestMapFrontSchemaViolation(t *testing.T) {
	raw := []byte(`{"log_id": 1, "words_result": {"姓名": {"words": 42}}}`)
	_, err := mapFront(raw)
	if got := recognize.KindOf(err); err == nil || got != recognize.KindInvalid {
		t.Fatalf("err = %v (kind %s), want Invalid schema rejection", err, got)
	}
}

func TestMapBack(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *recognize.BackFields
	}{
		{
			name: "period field present",
			raw: `{"log_id": 1, "words_result": {
				"签发机关": {"words": "北京市公安局"},
				"有效期限": {"words": "20100101-20300101"}
			}}`,
			want: &recognize.BackFields{IssueAuthority: "北京市公安局", ValidPeriod: "20100101-20300101"},
		},
		{
			name: "dates joined into a period",
			raw: `{"log_id": 1, "words_result": {
				"签发机关": {"words": "天津市公安局"},
				"签发日期": {"words": "20100101"},
				"失效日期": {"words": "长期"}
			}}`,
			want: &recognize.BackFields{IssueAuthority: "天津市公安局", ValidPeriod: "20100101-长期"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := mapBack([]byte(tt.raw))
			if err != nil {
				t.Fatalf("mapBack: %v", err)
			}
			if diff := cmp.Diff(tt.want, res.Back); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapBackEmpty(t *testing.T) {
	_, err := mapBack([]byte(`{"log_id": 1, "words_result": {}}`))
	if got := recognize.KindOf(err); err == nil || got != recognize.KindInvalid {
		t.Fatalf("err = %v (kind %s), want Invalid", err, got)
	}
}

func TestMapGeneral(t *testing.T) {
	raw := []byte(`{"log_id": 1, "words_result": [
		{"words": "中华人民共和国"},
		{"words": "居民身份证"}
	]}`)
	res, err := mapGeneral(raw)
	if err != nil {
		t.Fatalf("mapGeneral: %v", err)
	}
	want := "中华人民共和国\n居民身份证"
	if res.RawText != want {
		t.Errorf("raw text = %q, want %q", res.RawText, want)
	}
}

func TestCheckAPIErrorKinds(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, testLogger())

	tests := []struct {
		code int
		want recognize.ErrorKind
	}{
		{110, recognize.KindAuth},
		{111, recognize.KindAuth},
		{216201, recognize.KindInvalid},
		{216630, recognize.KindInvalid},
		{18, recognize.KindTransient}, // qps limit
	}
	for _, tt := range tests {
		raw, _ := json.Marshal(map[string]any{"error_code": tt.code, "error_msg": "x"})
		err := c.checkAPIError(raw)
		if err == nil {
			t.Fatalf("code %d: expected error", tt.code)
		}
		if got := recognize.KindOf(err); got != tt.want {
			t.Errorf("code %d: kind = %s, want %s", tt.code, got, tt.want)
		}
	}

	if err := c.checkAPIError([]byte(`{"log_id": 1, "words_result": {}}`)); err != nil {
		t.Errorf("clean payload flagged: %v", err)
	}
}

func TestClientRecognizeFront(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc(idcardPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("id_card_side"); got != "front" {
			t.Errorf("id_card_side = %q, want front", got)
		}
		if r.URL.Query().Get("access_token") != "tok" {
			t.Error("missing access token")
		}
		_, _ = w.Write([]byte(`{"log_id": 1, "words_result": {
			"姓名": {"words": "李雷"},
			"公民身份号码": {"words": "11010119900101001X"}
		}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", SecretKey: "s", BaseURL: srv.URL}, testLogger())

	res, err := c.Recognize(context.Background(), []byte("img"), recognize.HintFront)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Front == nil || res.Front.Name != "李雷" {
		t.Errorf("result = %+v", res)
	}

	// second call reuses the cached token
	if _, err := c.Recognize(context.Background(), []byte("img"), recognize.HintFront); err != nil {
		t.Fatalf("second Recognize: %v", err)
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1 (cached)", got)
	}
}

func TestClientAuthErrorDropsToken(t *testing.T) {
	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, _ *http.Request) {
		tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc(idcardPath, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error_code": 110, "error_msg": "token expired"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", SecretKey: "s", BaseURL: srv.URL}, testLogger())

	_, err := c.Recognize(context.Background(), []byte("img"), recognize.HintBack)
	if got := recognize.KindOf(err); err == nil || got != recognize.KindAuth {
		t.Fatalf("err = %v (kind %s), want Auth", err, got)
	}

	// the dropped token forces a refresh on the next call
	_, _ = c.Recognize(context.Background(), []byte("img"), recognize.HintBack)
	if got := tokenCalls.Load(); got != 2 {
		t.Errorf("token requests = %d, want 2 after drop", got)
	}
}
