package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/nexus/helper"
)

const (
	DefaultModel             = openai.GPT4oMini
	DefaultMaxTokens         = 4096
	DefaultTemperature       = 0.7
	DefaultRequestsPerMinute = 50
	DefaultMaxRetries        = 3
	rateWindow               = time.Minute
)

// APIKey is a named API key. Names are reported instead of the key itself.
type APIKey struct {
	Name  string
	Value string
}

// OpenAIConfig configures an OpenAIGenerator.
type OpenAIConfig struct {
	Keys              []APIKey
	BaseURL           string
	Model             string
	CodeModel         string
	CodeKeyName       string
	MaxTokens         int
	Temperature       float32
	RequestsPerMinute int
	MaxRetries        int
	Timeout           time.Duration
	Backoff           time.Duration
}

type keyState struct {
	APIKey
	requests int
	resetAt  time.Time
}

// OpenAIGenerator generates chat completions through any OpenAI compatible
// API. It spreads requests over several keys, rotating to the next key when
// the current one reaches its per minute budget or gets rate limited.
type OpenAIGenerator struct {
	config  OpenAIConfig
	keys    []*keyState
	current int
	mu      sync.Mutex
	now     func() time.Time
	log     *slog.Logger
}

// NewOpenAIGenerator creates a new generator for the configured keys.
func NewOpenAIGenerator(config OpenAIConfig, logger *slog.Logger) (*OpenAIGenerator, error) {
	if len(config.Keys) == 0 {
		return nil, helper.NewError("create openai generator", fmt.Errorf("no api keys configured"))
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.CodeModel == "" {
		config.CodeModel = config.Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature <= 0 {
		config.Temperature = DefaultTemperature
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &OpenAIGenerator{
		config: config,
		now:    time.Now,
		log:    logger,
	}
	start := g.now()
	for i, key := range config.Keys {
		if key.Value == "" {
			continue
		}
		if key.Name == "" {
			key.Name = fmt.Sprintf("key_%d", i)
		}
		g.keys = append(g.keys, &keyState{APIKey: key, resetAt: start})
	}
	if len(g.keys) == 0 {
		return nil, helper.NewError("create openai generator", fmt.Errorf("all api keys are empty"))
	}

	return g, nil
}

// Generate sends the messages to the chat completion endpoint. Rate limited
// keys are rotated, unauthorized keys are dropped, and the request is retried
// up to MaxRetries times.
func (g *OpenAIGenerator) Generate(ctx context.Context, messages []Message, taskType TaskType) (*Generation, error) {
	model := g.config.Model
	if taskType == TaskCode {
		model = g.config.CodeModel
	}

	request := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   g.config.MaxTokens,
		Temperature: g.config.Temperature,
	}
	for _, m := range messages {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	var lastErr error
	for attempt := 0; attempt < g.config.MaxRetries; attempt++ {
		key, err := g.acquire(taskType)
		if err != nil {
			return nil, helper.NewError("chat completion", err)
		}

		text, err := g.complete(ctx, key, request)
		if err == nil {
			return &Generation{Text: text, Model: model, KeyUsed: key.Name}, nil
		}
		lastErr = err

		switch statusCode(err) {
		case http.StatusTooManyRequests:
			g.log.Warn("Rate limited", slog.String("key", key.Name), slog.Int("attempt", attempt+1))
			g.rotate()
		case http.StatusUnauthorized:
			g.log.Error("Invalid api key", slog.String("key", key.Name))
			if g.remove(key.Name) == 0 {
				return nil, helper.NewError("chat completion", fmt.Errorf("all api keys are invalid"))
			}
			continue
		default:
			g.log.Warn("Chat completion attempt failed", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		}

		if err := g.wait(ctx, attempt); err != nil {
			return nil, helper.NewError("chat completion", err)
		}
	}

	return nil, helper.NewError("chat completion", fmt.Errorf("all %d attempts failed: %w", g.config.MaxRetries, lastErr))
}

func (g *OpenAIGenerator) complete(ctx context.Context, key APIKey, request openai.ChatCompletionRequest) (string, error) {
	clientConfig := openai.DefaultConfig(key.Value)
	if g.config.BaseURL != "" {
		clientConfig.BaseURL = g.config.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	response, err := client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return response.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) wait(ctx context.Context, attempt int) error {
	if g.config.Backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.config.Backoff << attempt)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// acquire picks the key for the next request and counts the request against it.
func (g *OpenAIGenerator) acquire(taskType TaskType) (APIKey, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.keys) == 0 {
		return APIKey{}, fmt.Errorf("no api keys available")
	}

	if taskType == TaskCode && g.config.CodeKeyName != "" {
		for i, key := range g.keys {
			if key.Name == g.config.CodeKeyName {
				g.current = i
				break
			}
		}
	}

	if g.limited(g.keys[g.current]) {
		g.rotateLocked()
	}

	key := g.keys[g.current]
	key.requests++
	return key.APIKey, nil
}

// limited reports whether a key used up its budget in the current window.
// An expired window is reset first.
func (g *OpenAIGenerator) limited(key *keyState) bool {
	now := g.now()
	if now.Sub(key.resetAt) > rateWindow {
		key.requests = 0
		key.resetAt = now
	}
	return key.requests >= g.config.RequestsPerMinute
}

func (g *OpenAIGenerator) rotate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotateLocked()
}

// rotateLocked moves to the next key that is not limited. If all keys are
// limited the key with the oldest window is used.
func (g *OpenAIGenerator) rotateLocked() {
	for i := 1; i < len(g.keys); i++ {
		next := (g.current + i) % len(g.keys)
		if !g.limited(g.keys[next]) {
			g.current = next
			g.log.Info("Rotated api key", slog.String("key", g.keys[next].Name))
			return
		}
	}

	g.log.Warn("All api keys rate limited, using least recent")
	oldest := 0
	for i, key := range g.keys {
		if key.resetAt.Before(g.keys[oldest].resetAt) {
			oldest = i
		}
	}
	g.current = oldest
}

// remove drops a key and returns the number of keys left.
func (g *OpenAIGenerator) remove(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, key := range g.keys {
		if key.Name != name {
			continue
		}
		g.keys = append(g.keys[:i], g.keys[i+1:]...)
		if g.current > i || g.current >= len(g.keys) {
			g.current--
		}
		if g.current < 0 {
			g.current = 0
		}
		break
	}
	return len(g.keys)
}

// CurrentKey returns the name of the key the next request will start with.
func (g *OpenAIGenerator) CurrentKey() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.keys) == 0 {
		return ""
	}
	return g.keys[g.current].Name
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var requestErr *openai.RequestError
	if errors.As(err, &requestErr) {
		return requestErr.HTTPStatusCode
	}
	return 0
}
