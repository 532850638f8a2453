package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-coursegen/internal/mcpserver"
	"github.com/yungbote/neurobridge-coursegen/internal/workflow"
)

// App holds what the commands need. main builds the real closures; tests supply fakes.
type App struct {
	Version string
	Stdout  io.Writer
	Stderr  io.Writer
	// Color enables lipgloss styling on progress and summaries.
	Color bool
	// Threshold is the flow score a course needs to be reported as good.
	Threshold float64

	// OpenLocal builds an in-process generator without persistence. close releases it.
	OpenLocal func(ctx context.Context) (gen mcpserver.Generator, close func(), err error)
	// Serve runs the HTTP API until ctx is done.
	Serve func(ctx context.Context) error
	// ServeMCP serves the generate_course tool over stdio until stdin closes.
	ServeMCP func(ctx context.Context) error
}

func (a *App) stdout() io.Writer {
	if a.Stdout != nil {
		return a.Stdout
	}
	return os.Stdout
}

func (a *App) stderr() io.Writer {
	if a.Stderr != nil {
		return a.Stderr
	}
	return os.Stderr
}

func (a *App) threshold() float64 {
	if a.Threshold > 0 {
		return a.Threshold
	}
	return workflow.DefaultPolicy().QualityThreshold
}

// NewRootCmd creates the top-level "coursegen" command and registers all subcommands.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "coursegen",
		Short:         "Multi-agent course generator",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(app),
		newGenerateCmd(app),
		newMCPCmd(app),
	)

	return root
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the course generation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Serve(cmd.Context())
		},
	}
}

func newMCPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the generate_course tool over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.ServeMCP(cmd.Context())
		},
	}
}
