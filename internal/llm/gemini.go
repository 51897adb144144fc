package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/jarvis/internal/config"
)

const transcribeInstruction = "Transcribe this audio verbatim. Reply with the transcript only."

// GeminiClient implements Client and Transcriber on the Gemini API.
type GeminiClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	model         string
	retry         retrier
}

// NewGeminiClient creates a Gemini client from cfg.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(cfg.MaxTokens),
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &GeminiClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		model:         cfg.Model,
		retry: retrier{
			log:        logger,
			maxRetries: cfg.MaxRetries,
			delay:      cfg.RetryDelay,
			timeout:    cfg.Timeout,
			status:     geminiStatus,
		},
	}, nil
}

// Model returns the model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Complete maps system messages to the system instruction and the rest to
// user and model turns.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c.log.DebugContext(ctx, "Generating completion", "message_count", len(req.Messages))

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("completion request has no user content")
	}

	copyCfg := *c.contentConfig
	if len(system) > 0 {
		copyCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if req.Temperature != nil {
		t := *req.Temperature
		copyCfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		copyCfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	return c.generate(ctx, "chat completion", contents, &copyCfg)
}

// Transcribe sends the audio inline and asks the model for a transcript.
func (c *GeminiClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("failed to read audio: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(filename))
	if mimeType == "" {
		mimeType = "audio/ogg"
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(transcribeInstruction),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)}

	copyCfg := *c.contentConfig
	return c.generate(ctx, "transcription", contents, &copyCfg)
}

func (c *GeminiClient) generate(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var resp *genai.GenerateContentResponse
	err := c.retry.do(ctx, op, func(ctx context.Context) error {
		var err error
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.model, contents, cfg)
		return err
	})
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, op, resp)
}

func (c *GeminiClient) extractText(ctx context.Context, op string, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%s blocked by safety filter: %s", op, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "operation", op, "finish_reason", finishReason)
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
