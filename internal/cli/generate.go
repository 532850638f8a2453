package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-coursegen/internal/cli/formatter"
	"github.com/yungbote/neurobridge-coursegen/internal/course"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

func newGenerateCmd(app *App) *cobra.Command {
	var (
		topic      string
		difficulty string
		assessment string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a course in-process and print or save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("--topic is required")
			}
			level := course.ParseDifficulty(difficulty)
			if strings.TrimSpace(difficulty) != "" && level == "" {
				return fmt.Errorf("unknown difficulty %q", difficulty)
			}
			answers, err := loadAssessment(assessment)
			if err != nil {
				return err
			}

			gen, closeFn, err := app.OpenLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			p := formatter.Printer{Color: app.Color}
			state, err := gen.GenerateSync(cmd.Context(), course.GenerationInput{
				Topic:               topic,
				TargetDifficulty:    level,
				AssessmentResponses: answers,
			}, func(ev workflow.ProgressEvent) {
				fmt.Fprintln(app.stderr(), p.ProgressLine(ev))
			})
			if err != nil {
				return fmt.Errorf("generating course: %w", err)
			}

			if out != "" {
				if err := writeState(out, state); err != nil {
					return err
				}
				fmt.Fprintf(app.stderr(), "Saved course to %s\n", out)
			}
			fmt.Fprint(app.stdout(), p.CourseSummary(state, app.threshold()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Course topic")
	cmd.Flags().StringVarP(&difficulty, "difficulty", "d", "", difficultyUsage())
	cmd.Flags().StringVar(&assessment, "assessment", "", "YAML file of assessment question to answer")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the full course state as JSON to this file")

	return cmd
}

func difficultyUsage() string {
	levels := make([]string, 0, len(course.Difficulties))
	for _, d := range course.Difficulties {
		levels = append(levels, string(d))
	}
	return "Learner level: " + strings.Join(levels, ", ") + " (default beginner)"
}

// loadAssessment reads a flat YAML mapping of question to answer. An empty path means none.
func loadAssessment(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading assessment: %w", err)
	}
	var answers map[string]string
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parsing assessment %s: %w", path, err)
	}
	return answers, nil
}

func writeState(path string, s *course.State) error {
	data, err := course.EncodeState(s)
	if err != nil {
		return fmt.Errorf("encoding course: %w", err)
	}
	var pretty json.RawMessage = data
	indented, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding course: %w", err)
	}
	if err := os.WriteFile(path, append(indented, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
