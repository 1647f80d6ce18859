package baidu

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"idmerge/internal/recognize"
)

const (
	idcardPath  = "/rest/2.0/ocr/v1/idcard"
	generalPath = "/rest/2.0/ocr/v1/general_basic"
	tokenPath   = "/oauth/2.0/token"
)

// Config holds provider credentials and endpoints.
type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	TokenURL  string // defaults to BaseURL + /oauth/2.0/token
	Timeout   time.Duration
}

// Client talks to the Baidu OCR REST API. The session token is cached until
// shortly before expiry; an auth failure drops the cache so the next attempt
// (the gateway retries Auth errors) fetches a fresh token.
type Client struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = strings.TrimRight(cfg.BaseURL, "/") + tokenPath
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger,
	}
}

// Recognize implements recognize.Recognizer.
func (c *Client) Recognize(ctx context.Context, image []byte, hint recognize.Hint) (recognize.Result, error) {
	rid := uuid.New().String()
	start := time.Now()

	token, err := c.accessToken(ctx)
	if err != nil {
		return recognize.Result{}, err
	}

	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))

	var endpoint string
	switch hint {
	case recognize.HintFront:
		endpoint = idcardPath
		form.Set("id_card_side", "front")
	case recognize.HintBack:
		endpoint = idcardPath
		form.Set("id_card_side", "back")
	case recognize.HintCombined:
		endpoint = generalPath
	default:
		return recognize.Result{}, recognize.NewError(recognize.KindInvalid, "unknown hint: "+string(hint), nil)
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint + "?access_token=" + url.QueryEscape(token)
	raw, err := c.postForm(ctx, rid, u, form)
	if err != nil {
		return recognize.Result{}, err
	}

	c.log.Info("baidu.recognize.response",
		"req_id", rid, "hint", string(hint), "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if err := c.checkAPIError(raw); err != nil {
		return recognize.Result{}, err
	}

	switch hint {
	case recognize.HintCombined:
		return mapGeneral(raw)
	case recognize.HintFront:
		return mapFront(raw)
	default:
		return mapBack(raw)
	}
}

func (c *Client) postForm(ctx context.Context, rid, u string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, recognize.NewError(recognize.KindInvalid, "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, recognize.NewError(recognize.KindTransient, "provider unreachable", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("baidu.response_body_close_error", "req_id", rid, "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, recognize.NewError(recognize.KindTransient, "read response", err)
	}
	if resp.StatusCode/100 != 2 {
		kind := recognize.KindTransient
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = recognize.KindAuth
		}
		return nil, recognize.NewError(kind, fmt.Sprintf("non-2xx status: %d", resp.StatusCode), nil)
	}
	return raw, nil
}

// checkAPIError translates the provider's in-body error envelope into an
// error kind the gateway retry policy can branch on.
func (c *Client) checkAPIError(raw []byte) error {
	var env struct {
		ErrorCode int    `json:"error_code"`
		ErrorMsg  string `json:"error_msg"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.ErrorCode == 0 {
		return nil
	}
	msg := fmt.Sprintf("provider error %d: %s", env.ErrorCode, env.ErrorMsg)
	switch env.ErrorCode {
	case 100, 110, 111: // invalid/expired access token
		c.dropToken()
		return recognize.NewError(recognize.KindAuth, msg, nil)
	case 216200, 216201, 216202, 216630: // empty image / bad format / oversize / unrecognizable
		return recognize.NewError(recognize.KindInvalid, msg, nil)
	default: // qps limits, provider internals
		return recognize.NewError(recognize.KindTransient, msg, nil)
	}
}

func (c *Client) dropToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExp = time.Time{}
	c.mu.Unlock()
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		t := c.token
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.APIKey)
	form.Set("client_secret", c.cfg.SecretKey)

	raw, err := c.postForm(ctx, uuid.New().String(), c.cfg.TokenURL, form)
	if err != nil {
		return "", err
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Error       string `json:"error"`
		ErrorDesc   string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", recognize.NewError(recognize.KindTransient, "decode token response", err)
	}
	if tok.Error != "" || tok.AccessToken == "" {
		return "", recognize.NewError(recognize.KindAuth, "token request rejected: "+tok.ErrorDesc, nil)
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	// refresh a minute early so a token never expires mid-call
	c.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	c.mu.Unlock()

	c.log.Info("baidu.token.refreshed", "expires_in", tok.ExpiresIn)
	return tok.AccessToken, nil
}
