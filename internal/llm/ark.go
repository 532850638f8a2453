package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/envutil"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

// NewArkCompleter builds a completer on the Volcengine Ark chat model from ARK_API_KEY,
// ARK_MODEL and optional ARK_BASE_URL.
func NewArkCompleter(ctx context.Context, log *logger.Logger) (*ChatModelCompleter, error) {
	apiKey := envutil.String("ARK_API_KEY", "")
	modelName := envutil.String("ARK_MODEL", "")
	if apiKey == "" || modelName == "" {
		return nil, fmt.Errorf("%w: ARK_API_KEY and ARK_MODEL are required", ErrNotConfigured)
	}
	cfg := &ark.ChatModelConfig{
		APIKey:     apiKey,
		Model:      modelName,
		HTTPClient: &http.Client{Timeout: envutil.Seconds("ARK_TIMEOUT_SECONDS", defaultTimeout)},
	}
	if base := strings.TrimRight(envutil.String("ARK_BASE_URL", ""), "/"); base != "" {
		cfg.BaseURL = base
	}
	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create ark chat model: %w", err)
	}
	return NewChatModelCompleter(chatModel, "ark", log)
}
