package scenario

import (
	"context"
	"fmt"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

// Kanban drags the first task card of the source column onto the next
// column and expects the target column to grow by one.
func Kanban(cfg *config.Config) Scenario {
	return Scenario{
		Name:        "kanban",
		Description: "Admin moves a task between kanban columns",
		Steps: []Step{
			{Name: "login", Run: loginStep("admin")},
			{Name: "open board", Run: openKanban},
			{Name: "drag card", Run: dragCard},
		},
	}
}

func loginStep(identity string) func(context.Context, *Env) (check.Results, error) {
	return func(ctx context.Context, env *Env) (check.Results, error) {
		var r check.Results
		_, err := env.MustLogin(ctx, &r, identity)
		return r, err
	}
}

func kanbanSelectors(env *Env) (column, source, target, card string) {
	column = env.Selector("kanban.column", "[data-status]")
	source = env.Selector("kanban.source_column", `[data-status="todo"]`)
	target = env.Selector("kanban.target_column", `[data-status="in_progress"]`)
	card = env.Selector("kanban.card", "[data-task-id]")
	return
}

func openKanban(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "admin")
	if err != nil {
		return r, err
	}
	if err := env.Goto(ctx, page, env.Selector("kanban.path", "/admin/tasks")); err != nil {
		return r, err
	}
	column, _, _, _ := kanbanSelectors(env)
	env.ExpectVisible(ctx, &r, page, "Kanban columns visible", column)
	return r, nil
}

func dragCard(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "admin")
	if err != nil {
		return r, err
	}
	_, source, target, card := kanbanSelectors(env)
	sourceCard := source + " " + card
	targetCards := target + " " + card

	if !env.ExpectVisible(ctx, &r, page, "Task card present", sourceCard) {
		return r, nil
	}
	before, err := page.Count(ctx, targetCards)
	if err != nil {
		return r, fmt.Errorf("count target cards: %w", err)
	}
	if err := page.Drag(ctx, browser.DragOptions{Source: sourceCard, Target: target}); err != nil {
		return r, err
	}
	env.ExpectCount(ctx, &r, page, "Task moved to next column", targetCards, before+1)
	return r, nil
}
