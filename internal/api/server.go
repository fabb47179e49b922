// Package api serves the sampler over an OpenAI style HTTP interface.
package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/samcharles93/sampler/internal/inference"
	"github.com/samcharles93/sampler/internal/logger"
)

// Source resolves models for requests and lists what is available.
type Source interface {
	inference.ModelSource
	Models() ([]inference.ModelInfo, error)
}

// Server runs one sampling request at a time; each request gets its own
// driver seeded from the request or the clock.
type Server struct {
	src      Source
	defaults inference.Config
	log      logger.Logger
	clock    func() time.Time

	mu sync.Mutex
}

func NewServer(src Source, defaults inference.Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		src:      src,
		defaults: defaults,
		log:      log,
		clock:    time.Now,
	}
}

// MaxRequestBytes bounds a completion request body.
const MaxRequestBytes int64 = 1 << 20

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/completions", s.handleCompletions, middleware.BodyLimit(MaxRequestBytes))
	e.GET("/v1/models", s.handleListModels)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(c *echo.Context) error {
	models, err := s.src.Models()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
	}
	data := make([]ModelObject, 0, len(models))
	for _, m := range models {
		created := m.Modified.Unix()
		if m.Modified.IsZero() {
			created = 0
		}
		data = append(data, ModelObject{
			ID:      m.Name,
			Object:  "model",
			Created: created,
			OwnedBy: "local",
			NCtx:    m.HParams.NCtx,
			NVocab:  m.HParams.NVocab,
		})
	}
	return c.JSON(http.StatusOK, ModelList{Object: "list", Data: data})
}

func (s *Server) handleCompletions(c *echo.Context) error {
	req, err := decodeJSON[CompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	cfg := s.configFor(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := logger.WithContext(c.Request().Context(), s.log)
	d, err := inference.Open(ctx, cfg, s.src)
	if err != nil {
		return s.fail(c, err)
	}
	defer d.Close()

	promptTokens, err := d.Encoder().Encode(cfg.Prompt)
	if err != nil {
		return writeBadRequest(c, "encode prompt: "+err.Error())
	}

	choices := make([]CompletionChoice, 0, cfg.NSamples)
	stats, err := d.Generate(ctx, cfg.Prompt, func(n int, text string) error {
		choices = append(choices, CompletionChoice{Index: n - 1, Text: text, FinishReason: "length"})
		return nil
	})
	if err != nil {
		return s.fail(c, err)
	}
	s.log.Info("completion served", "model", cfg.ModelName, "samples", stats.Samples, "tokens", stats.TokensGenerated, "duration", stats.Duration)

	return c.JSON(http.StatusOK, CompletionResponse{
		ID:      newCompletionID(),
		Object:  "text_completion",
		Created: s.clock().Unix(),
		Model:   cfg.ModelName,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     len(promptTokens),
			CompletionTokens: stats.TokensGenerated,
			TotalTokens:      len(promptTokens) + stats.TokensGenerated,
		},
	})
}

func (s *Server) configFor(req CompletionRequest) inference.Config {
	cfg := s.defaults
	if m := strings.TrimSpace(req.Model); m != "" {
		cfg.ModelName = m
	}
	cfg.Prompt = req.Prompt
	if req.N != nil {
		cfg.NSamples = *req.N
		cfg.BatchSize = 1
	}
	if req.BatchSize != nil {
		cfg.BatchSize = *req.BatchSize
	}
	if req.MaxTokens != nil {
		cfg.Length = *req.MaxTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.TopK != nil {
		cfg.TopK = *req.TopK
	}
	if req.TopP != nil {
		cfg.TopP = *req.TopP
	}
	if req.Seed != nil {
		seed := *req.Seed
		cfg.Seed = &seed
	}
	return cfg
}

func (s *Server) fail(c *echo.Context, err error) error {
	status, errType := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("completion failed", "error", err)
	}
	return writeError(c, status, errType, err.Error(), "")
}
