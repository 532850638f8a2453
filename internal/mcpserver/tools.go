package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

// Generator is the part of the generation service the tool needs.
type Generator interface {
	GenerateSync(ctx context.Context, input course.GenerationInput, onProgress workflow.ProgressFunc) (*course.State, error)
}

// GenerateCourseTool handles the generate_course MCP tool.
type GenerateCourseTool struct {
	gen Generator
	log *logger.Logger
}

func NewGenerateCourseTool(gen Generator, log *logger.Logger) *GenerateCourseTool {
	return &GenerateCourseTool{gen: gen, log: log.With("tool", "generate_course")}
}

func (t *GenerateCourseTool) Definition() mcp.Tool {
	levels := make([]string, 0, len(course.Difficulties))
	for _, d := range course.Difficulties {
		levels = append(levels, string(d))
	}
	return mcp.NewTool("generate_course",
		mcp.WithDescription(
			"Generate a complete course for a topic: modules, lessons, a concept graph, a flow "+
				"validation score and written lesson content. Returns the course as JSON.",
		),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Subject of the course, e.g. \"Negotiation\""),
		),
		mcp.WithString("difficulty",
			mcp.Description("Target learner level: "+strings.Join(levels, ", ")+" (default beginner)"),
			mcp.Enum(levels...),
		),
		mcp.WithString("assessment",
			mcp.Description("Optional JSON object of assessment question to learner answer"),
		),
	)
}

func (t *GenerateCourseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := strings.TrimSpace(req.GetString("topic", ""))
	if topic == "" {
		return mcp.NewToolResultError("'topic' is required"), nil
	}
	rawDifficulty := req.GetString("difficulty", "")
	difficulty := course.ParseDifficulty(rawDifficulty)
	if strings.TrimSpace(rawDifficulty) != "" && difficulty == "" {
		return mcp.NewToolResultError(fmt.Sprintf("unknown difficulty %q", rawDifficulty)), nil
	}

	var answers map[string]string
	if raw := strings.TrimSpace(req.GetString("assessment", "")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'assessment' must be a JSON object of strings: %v", err)), nil
		}
	}

	state, err := t.gen.GenerateSync(ctx, course.GenerationInput{
		Topic:               topic,
		TargetDifficulty:    difficulty,
		AssessmentResponses: answers,
	}, func(ev workflow.ProgressEvent) {
		t.log.Info("Generation progress", "phase", ev.Phase, "progress", ev.Progress, "message", ev.Summary)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("course generation failed: %v", err)), nil
	}

	raw, err := course.EncodeState(state)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode course: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}
