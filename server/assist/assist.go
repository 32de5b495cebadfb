// Package assist serves the /api/ask endpoint: a pass-through from a
// question about the currently viewed process to an OpenAI-compatible chat
// model. It sits outside the sync core; a missing API key disables answers
// but never affects presence or document sync.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/zeeshan-mehdi/ARISXR/server/config"
)

const systemPrompt = `You are an ARIS Process Intelligence AI assistant helping users understand BPMN business processes. You have access to the current process visualization and can answer questions about process flows, elements, and business logic. Be concise but informative. If asked about specific elements, explain their purpose and connections.`

// ErrNotConfigured is returned when no API key is configured.
var ErrNotConfigured = errors.New("assist: OpenAI configuration is missing, set OPENAI_API_KEY")

// AskRequest is the /api/ask request body.
type AskRequest struct {
	ProcessContext string `json:"processContext"`
	Question       string `json:"question"`
}

// AskResponse is the /api/ask response body. Exactly one field is set.
type AskResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// chatModel is the slice of the eino model surface the service needs.
type chatModel interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Service answers process questions. The chat model is created lazily on the
// first question so the server starts fine without credentials.
type Service struct {
	log zerolog.Logger
	cfg config.OpenAIConfig

	mu    sync.Mutex
	model chatModel
}

// New returns a Service using the given model configuration.
func New(cfg config.OpenAIConfig, log zerolog.Logger) *Service {
	return &Service{log: log, cfg: cfg}
}

func (s *Service) chatModel(ctx context.Context) (chatModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != nil {
		return s.model, nil
	}
	if s.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	maxTokens := s.cfg.MaxTokens
	temperature := s.cfg.Temperature
	m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      s.cfg.APIKey,
		BaseURL:     s.cfg.BaseURL,
		Model:       s.cfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat model: %w", err)
	}
	s.model = m
	return m, nil
}

// Answer asks the model one question about the given process context.
func (s *Service) Answer(ctx context.Context, processContext, question string) (string, error) {
	m, err := s.chatModel(ctx)
	if err != nil {
		return "", err
	}
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Process Context:\n%s\n\nQuestion: %s", processContext, question)),
	}
	out, err := m.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	if out.Content == "" {
		return "I couldn't generate a response.", nil
	}
	return out.Content, nil
}

// HandleAsk is the POST /api/ask handler.
func (s *Service) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, AskResponse{Error: "method not allowed"})
		return
	}
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AskResponse{Error: "invalid request body"})
		return
	}
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, AskResponse{Error: "question is required"})
		return
	}
	answer, err := s.Answer(r.Context(), req.ProcessContext, req.Question)
	if err != nil {
		s.log.Error().Err(err).Msg("answering process question")
		writeJSON(w, http.StatusInternalServerError, AskResponse{Error: fmt.Sprintf("Failed to get AI response: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{Answer: answer})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
