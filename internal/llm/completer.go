package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/neurobridge-coursegen/internal/observability"
)

// Request is one structured completion: a named JSON schema plus the conversation to answer.
type Request struct {
	SchemaName string
	Schema     map[string]any
	Messages   []*schema.Message
}

// Completer returns an object matching Request.Schema, or fails.
type Completer interface {
	Complete(ctx context.Context, req Request) (map[string]any, error)
}

type CompleterFunc func(ctx context.Context, req Request) (map[string]any, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (map[string]any, error) {
	return f(ctx, req)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Invoke runs one completion and decodes it into T. The decoded value is checked against its
// `validate` struct tags; decode or validation failures wrap ErrInvalidOutput.
func Invoke[T any](ctx context.Context, c Completer, name string, sch map[string]any, messages ...*schema.Message) (T, error) {
	var zero T
	if c == nil {
		return zero, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	obj, err := c.Complete(ctx, Request{SchemaName: name, Schema: sch, Messages: messages})
	if err != nil {
		return zero, err
	}
	out, err := Decode[T](obj)
	if err != nil {
		observability.Current().IncInvalidOutput(name)
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Decode converts a loosely typed completion into T and validates it.
func Decode[T any](obj map[string]any) (T, error) {
	var out T
	if obj == nil {
		return out, fmt.Errorf("%w: nil object", ErrInvalidOutput)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := structValidator().Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// Non-struct targets carry no tags to check.
			return out, nil
		}
		return out, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return out, nil
}

// SplitMessages folds a conversation into one system and one user string for providers that
// take exactly that pair.
func SplitMessages(msgs []*schema.Message) (system string, user string) {
	var sys, usr []string
	for _, m := range msgs {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role == schema.System {
			sys = append(sys, m.Content)
		} else {
			usr = append(usr, m.Content)
		}
	}
	return strings.Join(sys, "\n\n"), strings.Join(usr, "\n\n")
}
