package canon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hetulpatel/pricearb/internal/config"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"

	noneAnswer = "NONE"
)

const systemPrompt = `You match retail product titles to a fixed catalogue.
Reply with exactly one catalogue entry, copied verbatim, when the title is the same product
(same model, capacity and variant). Reply with NONE when no entry is the same product.
Never explain your answer.`

// Config holds client settings.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Catalog   []string
	Timeout   time.Duration
	MaxTokens int
}

// FromConfig adapts the canon config section.
func FromConfig(cfg config.CanonConfig) Config {
	return Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Catalog: cfg.Catalog,
		Timeout: cfg.Timeout.Duration,
	}
}

// LLM canonicalizes titles with an OpenAI-compatible chat model. Answers are
// cached for the life of the value.
type LLM struct {
	api       *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration

	catalog []string
	byLower map[string]string

	mu    sync.Mutex
	cache map[string]string // "" means no match
}

// NewLLM creates a canonicalizer from config.
func NewLLM(cfg Config) (*LLM, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("canon: API key is required")
	}
	byLower := make(map[string]string, len(cfg.Catalog))
	var catalog []string
	for _, entry := range cfg.Catalog {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, dup := byLower[strings.ToLower(entry)]; dup {
			continue
		}
		byLower[strings.ToLower(entry)] = entry
		catalog = append(catalog, entry)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("canon: catalog is empty")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 64
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	openaiCfg := openai.DefaultConfig(apiKey)
	openaiCfg.BaseURL = baseURL

	return &LLM{
		api:       openai.NewClientWithConfig(openaiCfg),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		catalog:   catalog,
		byLower:   byLower,
		cache:     make(map[string]string),
	}, nil
}

// Canonical implements Canonicalizer. Titles already equal to a catalogue
// entry (ignoring case) resolve without a model call.
func (c *LLM) Canonical(ctx context.Context, name string) (string, bool, error) {
	key := strings.TrimSpace(name)
	if key == "" {
		return "", false, nil
	}
	if entry, ok := c.byLower[strings.ToLower(key)]; ok {
		return entry, true, nil
	}

	c.mu.Lock()
	cached, hit := c.cache[key]
	c.mu.Unlock()
	if hit {
		return cached, cached != "", nil
	}

	reply, err := c.complete(ctx, systemPrompt, c.userPrompt(key))
	if err != nil {
		return "", false, fmt.Errorf("canon: %w", err)
	}
	entry := c.match(reply)

	c.mu.Lock()
	c.cache[key] = entry
	c.mu.Unlock()
	return entry, entry != "", nil
}

func (c *LLM) userPrompt(title string) string {
	var b strings.Builder
	b.WriteString("Catalogue:\n")
	for _, entry := range c.catalog {
		b.WriteString("- ")
		b.WriteString(entry)
		b.WriteByte('\n')
	}
	b.WriteString("\nTitle: ")
	b.WriteString(title)
	return b.String()
}

// match maps a model reply onto a catalogue entry. Anything that is not an
// entry counts as no match.
func (c *LLM) match(reply string) string {
	answer := strings.TrimSpace(reply)
	answer = strings.TrimPrefix(answer, "- ")
	answer = strings.Trim(answer, "\"'`.")
	answer = strings.TrimSpace(answer)
	if strings.EqualFold(answer, noneAnswer) {
		return ""
	}
	return c.byLower[strings.ToLower(answer)]
}

func (c *LLM) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens: c.maxTokens,
	}

	resp, err := c.api.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
