package server

import (
	"encoding/json"
	"net/http"

	"github.com/chatwire-ai/chatwire/internal/provider"
)

// ToolDescriptor describes one server-side tool for the catalog endpoint.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// MCPServerStatus reports one MCP server's connection state.
type MCPServerStatus struct {
	Status    string `json:"status"`
	ToolCount int    `json:"toolCount"`
	Error     string `json:"error,omitempty"`
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listTools handles GET /v1/tools
func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	tools := []ToolDescriptor{}
	if s.toolReg != nil {
		for _, t := range s.toolReg.List() {
			tools = append(tools, ToolDescriptor{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// listModels handles GET /v1/models
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	models := []provider.Model{}
	if s.providerReg != nil {
		models = s.providerReg.AllModels()
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// getMCPStatus handles GET /v1/mcp
func (s *Server) getMCPStatus(w http.ResponseWriter, r *http.Request) {
	// Return map of serverName -> status
	statuses := make(map[string]MCPServerStatus)

	if s.mcpClient != nil {
		for _, server := range s.mcpClient.Status() {
			status := MCPServerStatus{
				Status:    string(server.Status),
				ToolCount: server.ToolCount,
			}
			if server.Error != nil {
				status.Error = *server.Error
			}
			statuses[server.Name] = status
		}
	}

	writeJSON(w, http.StatusOK, statuses)
}
