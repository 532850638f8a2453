package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/envutil"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/openai"
)

const defaultTimeout = 180 * time.Second

// OpenAICompleter sends requests through the Responses API with strict json_schema output.
type OpenAICompleter struct {
	client openai.Client
}

func NewOpenAICompleter(c openai.Client) *OpenAICompleter { return &OpenAICompleter{client: c} }

func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (map[string]any, error) {
	if c == nil || c.client == nil {
		return nil, ErrNotConfigured
	}
	system, user := SplitMessages(req.Messages)
	obj, err := c.client.GenerateJSON(ctx, system, user, req.SchemaName, req.Schema)
	if err != nil {
		if errors.Is(err, openai.ErrUnparseable) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		return nil, err
	}
	return obj, nil
}

// NewFromEnv picks a provider from LLM_PROVIDER ("openai" or "ark"). When unset, OpenAI is used
// if OPENAI_API_KEY is present and Ark otherwise. Missing credentials yield ErrNotConfigured.
func NewFromEnv(ctx context.Context, log *logger.Logger) (Completer, error) {
	if log == nil {
		log = logger.Nop()
	}
	provider := strings.ToLower(envutil.String("LLM_PROVIDER", ""))
	if provider == "" {
		provider = "openai"
		if envutil.String("OPENAI_API_KEY", "") == "" && envutil.String("ARK_API_KEY", "") != "" {
			provider = "ark"
		}
	}
	switch provider {
	case "openai":
		client, err := openai.NewClient(log)
		if err != nil {
			if errors.Is(err, openai.ErrMissingAPIKey) {
				return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
			}
			return nil, err
		}
		return NewOpenAICompleter(client), nil
	case "ark":
		return NewArkCompleter(ctx, log)
	default:
		return nil, fmt.Errorf("%w: unknown LLM_PROVIDER %q", ErrNotConfigured, provider)
	}
}
