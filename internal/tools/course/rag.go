package course

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"coursenerd/internal/kb"
	"coursenerd/internal/logging"
	"coursenerd/internal/session"
	"coursenerd/internal/tools"
)

// queryModes are the retrieval modes accepted by kb_query.
var queryModes = []any{"local", "global", "hybrid", "naive", "mix", "bypass"}

// NewKBQueryTool builds the kb_query tool over the given retrieval client.
// Successful queries record their citations in the session state.
func NewKBQueryTool(client *kb.Client, state *session.State) *tools.Tool {
	return &tools.Tool{
		Name:        "kb_query",
		Description: "Query the course knowledge base and return an answer with source citations",
		Category:    tools.CategoryRetrieval,
		Priority:    80,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "The question to ask the knowledge base"},
				"mode":  {Type: "string", Description: "Retrieval mode", Default: "hybrid", Enum: queryModes},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if state != nil && !state.KBEnabled() {
				return statusJSON("disabled", "knowledge base retrieval is turned off for this session"), nil
			}

			query, _ := args["query"].(string)
			mode, _ := args["mode"].(string)
			if mode == "" {
				mode = "hybrid"
			}

			result := client.Query(ctx, kb.QueryParams{Query: query, Mode: mode})
			if result.Status != kb.StatusSuccess {
				logging.ToolsWarn("kb_query failed: status=%s detail=%s", result.Status, result.Detail)
				return statusJSON(string(result.Status), result.Detail), nil
			}

			if state != nil {
				state.RecordRetrieval(*result)
			}

			return withSources(result.Answer, result), nil
		},
	}
}

// NewCheatSheetTool builds the create_cheat_sheet tool. It asks the
// knowledge base for a condensed topic summary in cheat-sheet shape.
func NewCheatSheetTool(client *kb.Client, state *session.State) *tools.Tool {
	return &tools.Tool{
		Name:        "create_cheat_sheet",
		Description: "Generate a condensed cheat sheet for a course topic from the knowledge base",
		Category:    tools.CategoryRetrieval,
		Priority:    60,
		Schema: tools.ToolSchema{
			Required: []string{"topic"},
			Properties: map[string]tools.Property{
				"topic": {Type: "string", Description: "The topic to summarize"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if state != nil && !state.KBEnabled() {
				return statusJSON("disabled", "knowledge base retrieval is turned off for this session"), nil
			}

			topic, _ := args["topic"].(string)
			prompt := "Answer as a compact cheat sheet: short headed sections with " +
				"bullet points, formulas, and definitions only. No prose paragraphs."
			result := client.Query(ctx, kb.QueryParams{
				Query:      fmt.Sprintf("Key definitions, formulas, and facts about: %s", topic),
				Mode:       "mix",
				UserPrompt: &prompt,
			})
			if result.Status != kb.StatusSuccess {
				logging.ToolsWarn("create_cheat_sheet failed: status=%s detail=%s", result.Status, result.Detail)
				return statusJSON(string(result.Status), result.Detail), nil
			}

			if state != nil {
				state.RecordRetrieval(*result)
			}

			sheet := fmt.Sprintf("# Cheat Sheet: %s\n\n%s", topic, result.Answer)
			return withSources(sheet, result), nil
		},
	}
}

// withSources appends a Sources list derived from the result's citations.
func withSources(answer string, result *kb.QueryResult) string {
	if len(result.Citations) == 0 {
		return answer
	}

	seen := make(map[string]bool, len(result.Citations))
	var sb strings.Builder
	sb.WriteString(answer)
	sb.WriteString("\n\nSources:\n")
	for _, c := range result.Citations {
		text := c.Text()
		if seen[text] {
			continue
		}
		seen[text] = true
		sb.WriteString("- " + text + "\n")
	}
	return sb.String()
}

// statusJSON renders a failure outcome as a structured result.
func statusJSON(status, detail string) string {
	out, _ := json.Marshal(map[string]string{
		"status": status,
		"detail": detail,
	})
	return string(out)
}
