package explain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/codelab/config"
)

// Request is an error to explain.
type Request struct {
	Code     string
	Language string
	Error    string
}

// Explainer turns execution errors into explanations.
type Explainer interface {
	Explain(ctx context.Context, req Request) string
}

// Settings for the chat model.
type Settings struct {
	Enabled     bool
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Service asks the chat model first and falls back to the rule catalog.
type Service struct {
	logger   *zap.Logger
	settings Settings
	chatter  Chatter
	catalog  *Catalog
}

// NewService creates a Service. A nil chatter disables the model call.
func NewService(logger *zap.Logger, settings Settings, chatter Chatter, catalog *Catalog) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Service{
		logger:   logger,
		settings: settings,
		chatter:  chatter,
		catalog:  catalog,
	}
}

// New builds the explanation service from configuration.
func New(logger *zap.Logger, cfg *config.Config) (*Service, error) {
	logger = logger.Named("explain")
	settings := Settings{
		Enabled:     cfg.Explain.Enabled,
		Model:       cfg.Explain.Model,
		Temperature: cfg.Explain.Temperature,
		Timeout:     cfg.GetExplainTimeout(),
	}

	var chatter Chatter
	if settings.Enabled {
		ollama, err := NewOllamaChatter(cfg.Explain.Host, nil)
		if err != nil {
			return nil, err
		}
		chatter = ollama
	}

	logger.Info("explainer ready",
		zap.Bool("model_enabled", settings.Enabled),
		zap.String("host", cfg.Explain.Host),
		zap.String("model", settings.Model),
		zap.Float64("temperature", settings.Temperature))

	return NewService(logger, settings, chatter, DefaultCatalog()), nil
}

// Explain never fails: any model error degrades to the fallback catalog.
//
//nolint:gocritic // request struct mirrors the HTTP payload
func (s *Service) Explain(ctx context.Context, req Request) string {
	if s.settings.Enabled && s.chatter != nil {
		explanation, err := s.ask(ctx, req)
		if err == nil {
			return explanation
		}
		s.logger.Warn("AI explanation failed, using fallback",
			zap.String("language", req.Language),
			zap.Error(err))
	}

	return s.Fallback(req.Language, req.Error)
}

// Fallback returns the canned explanation for an error.
func (s *Service) Fallback(language, errorText string) string {
	return s.catalog.Explain(language, errorText)
}

func (s *Service) ask(ctx context.Context, req Request) (string, error) {
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	return s.chatter.Chat(ctx, ChatRequest{
		Model:       s.settings.Model,
		Temperature: s.settings.Temperature,
		Messages:    Prompt(req),
	})
}

// Prompt builds the tutor conversation for an error.
//
//nolint:gocritic // request struct mirrors the HTTP payload
func Prompt(req Request) []Message {
	return []Message{
		{
			Role: "system",
			Content: fmt.Sprintf("You are an expert programming tutor. Explain the error in the %s code in a clear, helpful way. Provide specific fixes and examples.",
				req.Language),
		},
		{
			Role:    "user",
			Content: fmt.Sprintf("Code: %s\n\nError: %s\n\nPlease explain this error and provide a solution.", req.Code, req.Error),
		},
	}
}
