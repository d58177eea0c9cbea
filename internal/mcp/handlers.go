package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lodestar-hq/lodestar/internal/assistant"
	"github.com/mark3labs/mcp-go/mcp"
)

// loadContext resolves the required team_id argument into a team snapshot.
func (s *Server) loadContext(ctx context.Context, req mcp.CallToolRequest) (*assistant.TeamContext, *mcp.CallToolResult) {
	teamID, err := req.RequireString("team_id")
	if err != nil {
		return nil, mcp.NewToolResultError("team_id parameter is required")
	}

	tc, err := assistant.LoadTeamContext(ctx, s.db, teamID)
	if err != nil {
		s.logger.Error("Failed to load team context", "team_id", teamID, "error", err)
		return nil, mcp.NewToolResultError(fmt.Sprintf("Failed to load team: %v", err))
	}
	return tc, nil
}

// toolResult converts the executor envelope into an MCP result.
func (s *Server) toolResult(result *assistant.ToolResult) (*mcp.CallToolResult, error) {
	if !result.Success {
		return mcp.NewToolResultError(result.Error), nil
	}
	return s.jsonResult(result)
}

// handleListIssues implements the list_issues tool
func (s *Server) handleListIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tc, errResult := s.loadContext(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	params := assistant.ListIssuesParams{
		Project:  req.GetString("project", ""),
		State:    req.GetString("state", ""),
		Assignee: req.GetString("assignee", ""),
		Query:    req.GetString("query", ""),
		Limit:    req.GetInt("limit", 0),
	}
	return s.toolResult(s.exec.ListIssues(ctx, tc, params))
}

// handleSearchIssues implements the search_issues tool
func (s *Server) handleSearchIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tc, errResult := s.loadContext(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	return s.toolResult(s.exec.SearchIssues(ctx, tc, assistant.SearchIssuesParams{Query: query}))
}

// handleListProjects implements the list_projects tool
func (s *Server) handleListProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tc, errResult := s.loadContext(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	params := assistant.ListProjectsParams{
		Status: req.GetString("status", ""),
	}
	return s.toolResult(s.exec.ListProjects(ctx, tc, params))
}

// handleListTeamMembers implements the list_team_members tool
func (s *Server) handleListTeamMembers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tc, errResult := s.loadContext(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	params := assistant.ListTeamMembersParams{
		Role: req.GetString("role", ""),
	}
	return s.toolResult(s.exec.ListTeamMembers(ctx, tc, params))
}

// handleGetTeamStats implements the get_team_stats tool
func (s *Server) handleGetTeamStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tc, errResult := s.loadContext(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	return s.toolResult(s.exec.GetTeamStats(ctx, tc))
}

// jsonResult marshals data as indented JSON into a text result
func (s *Server) jsonResult(data any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
