package api

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/tastetwin/internal/storage"
	"github.com/kalambet/tastetwin/internal/taste"
)

// --- helpers ---

func newTestMCPService(t *testing.T) (*taste.Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := taste.NewService(store, &stubProvider{vec: []float32{1, 0}}, []string{"netflix", "prime"})
	return svc, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_FindSimilarUsers(t *testing.T) {
	svc, store := newTestMCPService(t)
	seedProfile(t, store, "subject", []float32{1, 0})
	seedProfile(t, store, "aligned", []float32{1, 0})
	seedProfile(t, store, "orthogonal", []float32{0, 1})
	seedProfile(t, store, "close", []float32{0.9, 0.1})
	handler := mcpFindSimilarUsers(svc)

	req := makeCallToolRequest("find_similar_users", map[string]interface{}{
		"user_id": "subject",
		"limit":   2,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var matches []struct {
		UserID     string  `json:"userId"`
		Similarity float32 `json:"similarity"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &matches); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].UserID != "aligned" || matches[1].UserID != "close" {
		t.Fatalf("order = %q, %q; want aligned, close", matches[0].UserID, matches[1].UserID)
	}
}

func TestMCPTool_FindSimilarUsers_MissingArg(t *testing.T) {
	svc, _ := newTestMCPService(t)
	handler := mcpFindSimilarUsers(svc)

	result, err := handler(context.Background(), makeCallToolRequest("find_similar_users", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing user_id")
	}
	if text := toolText(t, result); text != "user_id is required" {
		t.Fatalf("unexpected message: %s", text)
	}
}

func TestMCPTool_FindSimilarUsers_NoOtherProfiles(t *testing.T) {
	svc, store := newTestMCPService(t)
	seedProfile(t, store, "loner", []float32{1, 0})
	handler := mcpFindSimilarUsers(svc)

	result, err := handler(context.Background(), makeCallToolRequest("find_similar_users", map[string]interface{}{
		"user_id": "loner",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_CompareUsers(t *testing.T) {
	svc, store := newTestMCPService(t)
	seedProfile(t, store, "a", []float32{1, 0})
	seedProfile(t, store, "b", []float32{1, 0})
	handler := mcpCompareUsers(svc)

	req := makeCallToolRequest("compare_users", map[string]interface{}{
		"user_id_a": "a",
		"user_id_b": "b",
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	sim, err := strconv.ParseFloat(toolText(t, result), 64)
	if err != nil {
		t.Fatalf("response is not a number: %v", err)
	}
	if sim < 0.999 {
		t.Fatalf("similarity = %v, want ~1", sim)
	}
}

func TestMCPTool_CompareUsers_MissingArg(t *testing.T) {
	svc, _ := newTestMCPService(t)
	handler := mcpCompareUsers(svc)

	result, err := handler(context.Background(), makeCallToolRequest("compare_users", map[string]interface{}{
		"user_id_a": "a",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing user_id_b")
	}
	if text := toolText(t, result); text != "user_id_b is required" {
		t.Fatalf("unexpected message: %s", text)
	}
}

func TestMCPTool_CompareUsers_UnknownUser(t *testing.T) {
	svc, store := newTestMCPService(t)
	seedProfile(t, store, "a", []float32{1, 0})
	handler := mcpCompareUsers(svc)

	result, err := handler(context.Background(), makeCallToolRequest("compare_users", map[string]interface{}{
		"user_id_a": "a",
		"user_id_b": "ghost",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown user")
	}
	if text := toolText(t, result); !strings.Contains(text, "comparison failed") {
		t.Fatalf("unexpected message: %s", text)
	}
}

func TestMCPTool_GetProfile(t *testing.T) {
	svc, store := newTestMCPService(t)
	seedProfile(t, store, "alice", []float32{0.5, 0.5})
	handler := mcpGetProfile(svc)

	result, err := handler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
		"user_id": "alice",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var summary struct {
		ID                  string `json:"id"`
		PrimarySource       string `json:"primarySource"`
		BothSourcesObtained bool   `json:"bothSourcesObtained"`
		EmbeddingDimensions int    `json:"embeddingDimensions"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &summary); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if summary.ID != "alice" || summary.PrimarySource != "netflix" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if !summary.BothSourcesObtained || summary.EmbeddingDimensions != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestMCPTool_GetProfile_NotFound(t *testing.T) {
	svc, _ := newTestMCPService(t)
	handler := mcpGetProfile(svc)

	result, err := handler(context.Background(), makeCallToolRequest("get_profile", map[string]interface{}{
		"user_id": "ghost",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown user")
	}
	if text := toolText(t, result); text != "profile ghost not found" {
		t.Fatalf("unexpected message: %s", text)
	}
}
