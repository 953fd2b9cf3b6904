package tools

import (
	"github.com/mark3labs/mcp-go/server"
)

// RegisterAll wires every tool onto the server. The debug retrieval tools
// are registered only when the debug flag is on.
func RegisterAll(s *server.MCPServer, deps *Deps) {
	RegisterInitStatusTool(s, deps)
	RegisterOverviewTool(s, deps)
	RegisterPlanTool(s, deps)
	RegisterTableInfoTool(s, deps)
	RegisterExecuteTool(s, deps)

	if deps.Config.Debug {
		RegisterFindTools(s, deps)
	}
}
