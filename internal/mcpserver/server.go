// Package mcpserver exposes course generation as an MCP tool over stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

func New(gen Generator, log *logger.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"coursegen",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	tool := NewGenerateCourseTool(gen, log)
	s.AddTool(tool.Definition(), tool.Handle)
	return s
}

// ServeStdio blocks serving s on stdin/stdout. Logs must go to stderr.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
