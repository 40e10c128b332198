package course

import (
	"context"
	"encoding/json"

	"coursenerd/internal/forum"
	"coursenerd/internal/session"
	"coursenerd/internal/tools"
)

// NewGenerateForumDraftTool builds generate_forum_draft. The tool does not
// compose the post itself: it enqueues an explicit command for the
// forum-composer handler and reports what was queued.
func NewGenerateForumDraftTool(d Dispatcher) *tools.Tool {
	return &tools.Tool{
		Name:        "generate_forum_draft",
		Description: "Queue a forum draft request for the forum composer",
		Category:    tools.CategoryForum,
		Schema: tools.ToolSchema{
			Required: []string{"topic"},
			Properties: map[string]tools.Property{
				"topic":      {Type: "string", Description: "What the post should be about"},
				"understood": {Type: "string", Description: "What the student already understands"},
				"confused":   {Type: "string", Description: "What the student is still confused about"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			cmd := Command{
				Handler: ComposerForumDraft,
				Kind:    "compose_draft",
				Payload: map[string]any{
					"topic":      args["topic"],
					"understood": args["understood"],
					"confused":   args["confused"],
				},
			}
			if err := d.Enqueue(cmd); err != nil {
				return "", err
			}

			out, _ := json.Marshal(map[string]any{
				"queued":  true,
				"handler": cmd.Handler,
				"kind":    cmd.Kind,
			})
			return string(out), nil
		},
	}
}

// NewFormatForumPostTool builds format_forum_post. It assembles the
// three-section draft structure into a Markdown post, appending the
// session's accumulated citations.
func NewFormatForumPostTool(state *session.State) *tools.Tool {
	return &tools.Tool{
		Name:        "format_forum_post",
		Description: "Format a structured draft into a Markdown forum post with sources",
		Category:    tools.CategoryForum,
		Schema: tools.ToolSchema{
			Required: []string{"title"},
			Properties: map[string]tools.Property{
				"title":      {Type: "string", Description: "The post title"},
				"understood": {Type: "string", Description: "What I Understand section"},
				"confused":   {Type: "string", Description: "Confusion points section"},
				"summary":    {Type: "string", Description: "Summary section"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			draft := forum.Draft{
				Title:      stringArg(args, "title"),
				Understood: stringArg(args, "understood"),
				Confused:   stringArg(args, "confused"),
				AISummary:  stringArg(args, "summary"),
			}

			post := forum.FormatPost(draft)
			if state != nil {
				var texts []string
				for _, c := range state.Citations() {
					texts = append(texts, c.Text())
				}
				post = forum.AppendCitations(post, texts)
			}
			return post, nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
