package main

import (
	"log/slog"
	"os"

	"idmerge/internal/classify"
	"idmerge/internal/common"
	"idmerge/internal/compose"
	"idmerge/internal/match"
	"idmerge/internal/recognize"
	"idmerge/internal/recognize/baidu"
	"idmerge/internal/recognize/tesseract"
	"idmerge/internal/validate"
)

func newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

func buildGateway(cfg *common.Config, logger *slog.Logger) (*recognize.Gateway, error) {
	var rec recognize.Recognizer
	switch cfg.Recognition.Provider {
	case "tesseract":
		rec = tesseract.NewEngine(cfg.Recognition.TessdataDir, logger)
	default:
		rec = baidu.NewClient(baidu.Config{
			APIKey:    cfg.Recognition.APIKey,
			SecretKey: cfg.Recognition.SecretKey,
			BaseURL:   cfg.Recognition.BaseURL,
			TokenURL:  cfg.Recognition.TokenURL,
			Timeout:   cfg.Recognition.CallTimeout,
		}, logger)
	}
	return recognize.NewGateway(rec, recognize.GatewayConfig{
		Attempts:    cfg.Recognition.Attempts,
		Backoff:     cfg.Recognition.Backoff,
		CallTimeout: cfg.Recognition.CallTimeout,
	}, logger), nil
}

func buildValidator(cfg *common.Config) (*validate.Validator, error) {
	rules := validate.DefaultRules()
	if cfg.Batch.RulesPath != "" {
		loaded, err := validate.LoadRules(cfg.Batch.RulesPath)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return validate.NewValidator(rules)
}

func buildMatcher(cfg *common.Config, logger *slog.Logger) (*match.Matcher, error) {
	gw, err := buildGateway(cfg, logger)
	if err != nil {
		return nil, err
	}
	val, err := buildValidator(cfg)
	if err != nil {
		return nil, err
	}
	cls := classify.NewClassifier(gw, val, logger)
	return match.NewMatcher(cls, logger), nil
}

func buildCompositor(cfg *common.Config, logger *slog.Logger) compose.Compositor {
	if cfg.Compose.URL == "" {
		logger.Warn("COMPOSE_URL not configured, composition will be skipped")
		return nil
	}
	return compose.NewHTTPCompositor(cfg.Compose.URL, cfg.Compose.Timeout, logger)
}
