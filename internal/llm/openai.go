package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/edgard/jarvis/internal/config"
)

// OpenAIClient talks to any OpenAI-compatible endpoint. It implements Client,
// Speaker, Transcriber and Imager.
type OpenAIClient struct {
	client      *gopenai.Client
	log         *slog.Logger
	model       string
	ttsModel    string
	ttsVoice    string
	sttModel    string
	imageModel  string
	temperature float32
	maxTokens   int
	retry       retrier
}

// NewOpenAIClient builds a client from cfg. httpClient may be nil.
func NewOpenAIClient(cfg config.LLMConfig, httpClient *http.Client, log *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	aiConfig := gopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		aiConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		aiConfig.HTTPClient = httpClient
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized successfully", "model", cfg.Model, "base_url", aiConfig.BaseURL)

	return &OpenAIClient{
		client:      gopenai.NewClientWithConfig(aiConfig),
		log:         logger,
		model:       cfg.Model,
		ttsModel:    cfg.TTSModel,
		ttsVoice:    cfg.TTSVoice,
		sttModel:    cfg.STTModel,
		imageModel:  cfg.ImageModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry: retrier{
			log:        logger,
			maxRetries: cfg.MaxRetries,
			delay:      cfg.RetryDelay,
			timeout:    cfg.Timeout,
			status:     openAIStatus,
		},
	}, nil
}

// Model returns the chat model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c.log.DebugContext(ctx, "Generating completion", "message_count", len(req.Messages))

	messages := make([]gopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, gopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var resp gopenai.ChatCompletionResponse
	err := c.retry.do(ctx, "chat completion", func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   maxTokens,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		c.log.WarnContext(ctx, "Completion returned empty text", "finish_reason", resp.Choices[0].FinishReason)
		return "", ErrEmptyResponse
	}

	c.log.DebugContext(ctx, "Completion generated", "prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return text, nil
}

// Speak synthesizes text as Opus audio, suitable for Telegram voice notes.
// An empty voice uses the configured one.
func (c *OpenAIClient) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = c.ttsVoice
	}

	var audio []byte
	err := c.retry.do(ctx, "speech synthesis", func(ctx context.Context) error {
		resp, err := c.client.CreateSpeech(ctx, gopenai.CreateSpeechRequest{
			Model:          gopenai.SpeechModel(c.ttsModel),
			Input:          text,
			Voice:          gopenai.SpeechVoice(voice),
			ResponseFormat: gopenai.SpeechResponseFormatOpus,
		})
		if err != nil {
			return err
		}
		defer resp.Close()

		audio, err = io.ReadAll(resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, ErrEmptyResponse
	}
	return audio, nil
}

// Transcribe converts audio into text. filename carries the format hint.
func (c *OpenAIClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	// The body can only be read once, so transcription is not retried.
	var resp gopenai.AudioResponse
	err := c.retry.attempt(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateTranscription(ctx, gopenai.AudioRequest{
			Model:    c.sttModel,
			FilePath: filename,
			Reader:   audio,
		})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Image generates a single 1024x1024 image and returns its bytes.
func (c *OpenAIClient) Image(ctx context.Context, prompt string) ([]byte, error) {
	req := gopenai.ImageRequest{
		Prompt: prompt,
		Model:  c.imageModel,
		N:      1,
		Size:   gopenai.CreateImageSize1024x1024,
	}
	// gpt-image models always answer with base64 and reject the parameter.
	if !strings.HasPrefix(c.imageModel, "gpt-image") {
		req.ResponseFormat = gopenai.CreateImageResponseFormatB64JSON
	}

	var resp gopenai.ImageResponse
	err := c.retry.do(ctx, "image generation", func(ctx context.Context) error {
		var err error
		resp, err = c.client.CreateImage(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrEmptyResponse
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func openAIStatus(err error) int {
	var apiErr *gopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *gopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
