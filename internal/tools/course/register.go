package course

import (
	"coursenerd/internal/forum"
	"coursenerd/internal/kb"
	"coursenerd/internal/session"
	"coursenerd/internal/tools"
)

// Deps holds the service handles the course tools close over. Constructed
// once at process start and passed down; no module-level clients.
type Deps struct {
	KB         *kb.Client
	State      *session.State
	Publisher  *forum.Publisher
	Dispatcher Dispatcher
}

// RegisterAll registers the full course tool set on the registry.
func RegisterAll(reg *tools.Registry, deps Deps) {
	reg.MustRegister(NewKBQueryTool(deps.KB, deps.State))
	reg.MustRegister(NewCheatSheetTool(deps.KB, deps.State))
	reg.MustRegister(NewGenerateForumDraftTool(deps.Dispatcher))
	reg.MustRegister(NewFormatForumPostTool(deps.State))
	reg.MustRegister(NewFillForumTool(deps.Publisher))
}
