package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"manga-bot/backend/pkg/config"
	"manga-bot/backend/pkg/errors"
	"manga-bot/backend/pkg/logger"
)

// Apology is the fixed reply when every provider in the chain fails.
const Apology = "Sorry, I'm having trouble thinking right now. Try again in a moment."

const systemPrompt = "You are Manga, a Discord bot assistant. " +
	"Be accurate, concise, and action-oriented."

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
)

// Provider is one LLM backend in the fallback chain.
type Provider interface {
	Name() string
	Generate(ctx context.Context, system, user string) (string, error)
}

// openAIProvider speaks any OpenAI-compatible chat completion API.
type openAIProvider struct {
	name   string
	client *openai.Client
	model  string
}

func newOpenAIProvider(name, apiKey, baseURL, model string) *openAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Chain tries providers in a fixed priority order with a per-provider
// deadline and one overall deadline. Callers of the string helpers never
// see an error; exhaustion yields the apology.
type Chain struct {
	providers  []Provider
	perTimeout time.Duration
	overall    time.Duration
	log        *zap.Logger
}

// NewChain builds the chain from configured credentials, in priority
// order: OpenAI, then OpenRouter, then Groq.
func NewChain(cfg *config.Config) *Chain {
	var providers []Provider
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, newOpenAIProvider("openai", cfg.OpenAIAPIKey, "", cfg.OpenAIModel))
	}
	if cfg.OpenRouterAPIKey != "" {
		providers = append(providers, newOpenAIProvider("openrouter", cfg.OpenRouterAPIKey, openRouterBaseURL, cfg.OpenRouterModel))
	}
	if cfg.GroqAPIKey != "" {
		providers = append(providers, newOpenAIProvider("groq", cfg.GroqAPIKey, groqBaseURL, cfg.GroqModel))
	}
	return newChain(providers, cfg.ProviderTimeout, cfg.ChatTimeout)
}

func newChain(providers []Provider, perTimeout, overall time.Duration) *Chain {
	return &Chain{
		providers:  providers,
		perTimeout: perTimeout,
		overall:    overall,
		log:        logger.Named("llm"),
	}
}

// Enabled reports whether any provider is configured.
func (c *Chain) Enabled() bool {
	return len(c.providers) > 0
}

// Generate walks the chain until a provider answers. Each provider gets
// its own deadline; a failure falls through to the next.
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", errors.ErrLLMAllProvidersFailed
	}
	for _, p := range c.providers {
		pctx, cancel := context.WithTimeout(ctx, c.perTimeout)
		text, err := p.Generate(pctx, systemPrompt, prompt)
		cancel()
		if err == nil {
			return text, nil
		}
		c.log.Warn("Provider failed, falling through",
			zap.String("provider", p.Name()),
			zap.Error(errors.NewLLMProviderFailed(p.Name(), true, err)),
		)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.ErrLLMAllProvidersFailed
}

// ChatResponse replies to a text-channel message. Never errors.
func (c *Chain) ChatResponse(ctx context.Context, username, message string) string {
	prompt := fmt.Sprintf("User '%s' says: %q\nReply helpfully and concisely (1-2 sentences).", username, message)
	return c.respond(ctx, prompt)
}

// VoiceResponse replies to a spoken utterance. Never errors.
func (c *Chain) VoiceResponse(ctx context.Context, username, speech string) string {
	prompt := fmt.Sprintf("User '%s' said in voice chat: %q\nReply conversationally in 1-2 short sentences. Be friendly and natural.", username, speech)
	return c.respond(ctx, prompt)
}

func (c *Chain) respond(ctx context.Context, prompt string) string {
	octx, cancel := context.WithTimeout(ctx, c.overall)
	defer cancel()
	text, err := c.Generate(octx, prompt)
	if err != nil {
		return Apology
	}
	return text
}
