package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/yungbote/neurobridge-coursegen/internal/observability"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/promptstyle"
)

// ChatModelCompleter drives any eino chat model as a structured completer. Chat models do not
// enforce a schema server-side, so the schema travels in the system prompt and the reply is
// extracted leniently before the caller's validation.
type ChatModelCompleter struct {
	model    model.BaseChatModel
	provider string
	log      *logger.Logger
}

func NewChatModelCompleter(m model.BaseChatModel, provider string, log *logger.Logger) (*ChatModelCompleter, error) {
	if m == nil {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = logger.Nop()
	}
	if provider == "" {
		provider = "chatmodel"
	}
	return &ChatModelCompleter{model: m, provider: provider, log: log.With("service", "ChatModelCompleter", "provider", provider)}, nil
}

func (c *ChatModelCompleter) Complete(ctx context.Context, req Request) (map[string]any, error) {
	if req.SchemaName == "" || req.Schema == nil {
		return nil, fmt.Errorf("llm: schema name and schema required")
	}
	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return nil, fmt.Errorf("llm: encode schema %s: %w", req.SchemaName, err)
	}
	system, user := SplitMessages(req.Messages)
	system = promptstyle.ApplySystem(system, "json") +
		"\n\nRespond with exactly one JSON object that validates against this JSON schema (" + req.SchemaName + "):\n" +
		string(schemaJSON)

	start := time.Now()
	msg, err := c.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	})
	if err != nil {
		observability.Current().ObserveLLMRequest(c.provider, req.SchemaName, "error", time.Since(start), 0, 0)
		return nil, fmt.Errorf("llm: %s generate: %w", c.provider, err)
	}
	in, out := 0, 0
	if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		in, out = msg.ResponseMeta.Usage.PromptTokens, msg.ResponseMeta.Usage.CompletionTokens
	}
	observability.Current().ObserveLLMRequest(c.provider, req.SchemaName, "ok", time.Since(start), in, out)

	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, ErrEmptyOutput
	}
	obj, err := ExtractObject(msg.Content)
	if err != nil {
		c.log.Warn("unparseable completion", "schema", req.SchemaName, "error", err)
		return nil, err
	}
	return obj, nil
}
