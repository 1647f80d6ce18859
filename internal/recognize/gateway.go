package recognize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"idmerge/internal/imgcheck"
)

// GatewayConfig holds the retry policy knobs.
type GatewayConfig struct {
	Attempts    int           // total attempts, default 3
	Backoff     time.Duration // linear unit: wait attempt*Backoff after a failed attempt, default 2s
	CallTimeout time.Duration // per-attempt deadline, default 60s
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 2 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 60 * time.Second
	}
	return c
}

// Gateway wraps a Recognizer with per-call timeout, retry with linear
// backoff, and error translation. It keeps no state between calls and is
// safe to share across concurrent unit workers.
type Gateway struct {
	rec   Recognizer
	cfg   GatewayConfig
	log   *slog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewGateway(rec Recognizer, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		rec:   rec,
		cfg:   cfg.withDefaults(),
		log:   logger,
		sleep: sleepCtx,
	}
}

// Recognize runs one extraction with the retry policy applied.
// Transient and Auth failures are retried (the provider's session tokens can
// expire mid-run); Invalid fails immediately. A per-attempt deadline overrun
// counts as Transient.
func (g *Gateway) Recognize(ctx context.Context, image []byte, hint Hint) (Result, error) {
	rid := uuid.New().String()

	if _, err := imgcheck.Check(image); err != nil {
		return Result{}, NewError(KindInvalid, "image precheck failed", err)
	}

	var lastErr error

	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		res, err := g.rec.Recognize(callCtx, image, hint)
		cancel()

		if err == nil {
			g.log.Info("recognize.ok",
				"req_id", rid, "hint", string(hint), "attempt", attempt,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return res, nil
		}

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewError(KindTransient, "provider call timed out", err)
		}
		kind := KindOf(err)
		lastErr = err

		g.log.Warn("recognize.attempt_failed",
			"req_id", rid, "hint", string(hint), "attempt", attempt,
			"kind", string(kind), "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)

		if kind == KindInvalid {
			return Result{}, err
		}
		if ctx.Err() != nil {
			return Result{}, NewError(KindTransient, "canceled while retrying", ctx.Err())
		}
		if attempt < g.cfg.Attempts {
			wait := time.Duration(attempt) * g.cfg.Backoff
			g.log.Info("recognize.backoff", "req_id", rid, "attempt", attempt, "wait", wait.String())
			if err := g.sleep(ctx, wait); err != nil {
				return Result{}, NewError(KindTransient, "canceled during backoff", err)
			}
		}
	}

	g.log.Error("recognize.exhausted",
		"req_id", rid, "hint", string(hint), "attempts", g.cfg.Attempts, "error", lastErr,
	)
	return Result{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
