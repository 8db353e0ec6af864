package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/tastetwin/internal/storage"
	"github.com/kalambet/tastetwin/internal/taste"
)

// NewMCPServer exposes the matching service as MCP tools so an agent can
// query taste similarity over a stdio transport. Submissions stay HTTP-only;
// the MCP surface is read-only.
func NewMCPServer(svc *taste.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"tastetwin",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("tastetwin: taste-similarity matching over title embeddings."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("find_similar_users",
			mcp.WithDescription("Rank other users by taste similarity to the given user and return the top matches."),
			mcp.WithString("user_id", mcp.Description("Subject user id"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of matches (default 5)")),
		),
		mcpFindSimilarUsers(svc),
	)

	s.AddTool(
		mcp.NewTool("compare_users",
			mcp.WithDescription("Return the cosine similarity between two users' taste profiles."),
			mcp.WithString("user_id_a", mcp.Description("First user id"), mcp.Required()),
			mcp.WithString("user_id_b", mcp.Description("Second user id"), mcp.Required()),
		),
		mcpCompareUsers(svc),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Return a user's taste profile state (sources obtained, embedding dimensionality)."),
			mcp.WithString("user_id", mcp.Description("User id"), mcp.Required()),
		),
		mcpGetProfile(svc),
	)

	return s
}

func mcpFindSimilarUsers(svc *taste.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		result, err := svc.SimilarUsers(ctx, userID, limit)
		if errors.Is(err, taste.ErrNoOtherProfiles) {
			return mcpText("[]"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("ranking failed: %v", err)), nil
		}

		b, err := json.Marshal(result.Matches)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal matches: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCompareUsers(svc *taste.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		idA, err := req.RequireString("user_id_a")
		if err != nil {
			return mcpError("user_id_a is required"), nil
		}
		idB, err := req.RequireString("user_id_b")
		if err != nil {
			return mcpError("user_id_b is required"), nil
		}

		sim, err := svc.SimilarityBetween(ctx, idA, idB)
		if err != nil {
			return mcpError(fmt.Sprintf("comparison failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("%.6f", sim)), nil
	}
}

func mcpGetProfile(svc *taste.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		p, err := svc.GetProfile(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("profile %s not found", userID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load profile: %v", err)), nil
		}

		summary := map[string]any{
			"id":                  p.ID,
			"displayName":         p.DisplayName,
			"primarySource":       p.PrimarySource,
			"bothSourcesObtained": p.BothSourcesObtained,
			"embeddingDimensions": len(p.Embedding),
			"createdAt":           p.CreatedAt,
			"updatedAt":           p.UpdatedAt,
		}
		b, err := json.Marshal(summary)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
