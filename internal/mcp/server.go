// Package mcp provides a Model Context Protocol server exposing read-side
// team tools to external AI agents.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lodestar-hq/lodestar/internal/assistant"
	"github.com/lodestar-hq/lodestar/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server. Only read tools are exposed here; mutations
// go through the chat assistant where the acting user is known.
type Server struct {
	mcpServer *server.MCPServer
	sseServer *server.SSEServer
	db        *storage.Database
	exec      *assistant.Executor
	logger    *slog.Logger
	addr      string
	mu        sync.RWMutex
	running   bool
}

// Config holds configuration for the MCP server
type Config struct {
	// Address to listen on (e.g., ":8081")
	Address string
}

// NewServer creates a new MCP server with team tools
func NewServer(db *storage.Database, exec *assistant.Executor, logger *slog.Logger, cfg Config) *Server {
	mcpServer := server.NewMCPServer(
		"Lodestar",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(`You are connected to Lodestar, a team project and issue tracker.
You have read access to a team's projects, issues, members, and statistics.
Every tool requires a team_id identifying which team to query.

Key capabilities:
- List and search issues by project, workflow state, assignee, or title
- List projects with their keys and member counts
- List team members and their roles
- Get team statistics by workflow state`),
	)

	s := &Server{
		mcpServer: mcpServer,
		db:        db,
		exec:      exec,
		logger:    logger,
		addr:      cfg.Address,
	}

	s.registerTools()

	return s
}

// Start starts the MCP server on the configured address
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("MCP server already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting MCP server", "address", s.addr)

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/message"),
	)

	// Blocks until shutdown.
	if err := s.sseServer.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the MCP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Info("Stopping MCP server")
	s.running = false

	if s.sseServer != nil {
		if err := s.sseServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown MCP server: %w", err)
		}
	}

	return nil
}

// IsRunning returns true if the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the server's listening address
func (s *Server) Address() string {
	return s.addr
}

// registerTools registers the read-side team tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list_issues",
			mcp.WithDescription("List a team's issues, optionally filtered by project, workflow state, assignee, or a title substring."),
			mcp.WithString("team_id",
				mcp.Required(),
				mcp.Description("The team to query"),
			),
			mcp.WithString("project",
				mcp.Description("Filter by project id, key, or name"),
			),
			mcp.WithString("state",
				mcp.Description("Filter by workflow state id or name"),
			),
			mcp.WithString("assignee",
				mcp.Description("Filter by assignee id or name; 'unassigned' for no assignee"),
			),
			mcp.WithString("query",
				mcp.Description("Substring to match against issue titles"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of issues to return (default 25, max 100)"),
			),
		),
		s.handleListIssues,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("search_issues",
			mcp.WithDescription("Search a team's issues by title substring."),
			mcp.WithString("team_id",
				mcp.Required(),
				mcp.Description("The team to query"),
			),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Substring to match against issue titles"),
			),
		),
		s.handleSearchIssues,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_projects",
			mcp.WithDescription("List a team's projects with their keys, statuses, and member counts."),
			mcp.WithString("team_id",
				mcp.Required(),
				mcp.Description("The team to query"),
			),
			mcp.WithString("status",
				mcp.Description("Filter by status"),
				mcp.Enum("active", "completed", "canceled"),
			),
		),
		s.handleListProjects,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_team_members",
			mcp.WithDescription("List a team's members and their roles."),
			mcp.WithString("team_id",
				mcp.Required(),
				mcp.Description("The team to query"),
			),
			mcp.WithString("role",
				mcp.Description("Filter by role"),
				mcp.Enum("admin", "developer", "viewer"),
			),
		),
		s.handleListTeamMembers,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_team_stats",
			mcp.WithDescription("Get team statistics: issue counts per workflow state type plus project and member totals."),
			mcp.WithString("team_id",
				mcp.Required(),
				mcp.Description("The team to query"),
			),
		),
		s.handleGetTeamStats,
	)

	s.logger.Info("Registered MCP tools", "count", 5)
}
