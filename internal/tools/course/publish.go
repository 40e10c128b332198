package course

import (
	"context"
	"encoding/json"

	"coursenerd/internal/forum"
	"coursenerd/internal/logging"
	"coursenerd/internal/tools"
)

// NewFillForumTool builds fill_forum over the publisher. The outcome,
// success or failure, is always returned as structured JSON so the caller
// can report it verbatim.
func NewFillForumTool(p *forum.Publisher) *tools.Tool {
	return &tools.Tool{
		Name:        "fill_forum",
		Description: "Fill the Moodle new-discussion form with a draft post; never submits",
		Category:    tools.CategoryPublish,
		Schema: tools.ToolSchema{
			Required: []string{"subject", "message"},
			Properties: map[string]tools.Property{
				"subject":   {Type: "string", Description: "The discussion subject line"},
				"message":   {Type: "string", Description: "The post body in Markdown"},
				"forum_url": {Type: "string", Description: "Forum URL; defaults to the configured forum"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			subject := stringArg(args, "subject")
			message := stringArg(args, "message")
			forumURL := stringArg(args, "forum_url")

			result := p.PublishDraft(ctx, subject, message, forumURL)
			if !result.Success {
				logging.ToolsWarn("fill_forum failed: kind=%s detail=%s", result.ErrorKind, result.Detail)
			}

			out, err := json.Marshal(result)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
