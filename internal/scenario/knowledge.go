package scenario

import (
	"context"
	"fmt"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

const defaultCollectionName = "E2E Test Collection"

// Knowledge creates a collection in the knowledge hub, adds a resource to
// it and deletes it again.
func Knowledge(cfg *config.Config) Scenario {
	return Scenario{
		Name:        "knowledge",
		Description: "Admin creates, fills and deletes a knowledge collection",
		Steps: []Step{
			{Name: "login", Run: loginStep("admin")},
			{Name: "create collection", Run: createCollection},
			{Name: "add resource", Run: addResource},
			{Name: "delete collection", Run: deleteCollection},
		},
	}
}

func collectionName(env *Env) string {
	if n := env.Config.Scenarios.CollectionName; n != "" {
		return n
	}
	return defaultCollectionName
}

func createCollection(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "admin")
	if err != nil {
		return r, err
	}
	if err := env.Goto(ctx, page, env.Selector("knowledge.path", "/admin/knowledge")); err != nil {
		return r, err
	}
	if err := page.Click(ctx, browser.ClickOptions{Selector: env.Selector("knowledge.new_collection", `[data-testid="new-collection"]`)}); err != nil {
		return r, err
	}
	name := collectionName(env)
	if err := page.Fill(ctx, browser.FillOptions{Selector: env.Selector("knowledge.collection_name", `input[name="name"]`), Value: name}); err != nil {
		return r, err
	}
	if err := page.Click(ctx, browser.ClickOptions{Selector: env.Selector("knowledge.save", `button[type="submit"]`)}); err != nil {
		return r, err
	}
	env.ExpectText(ctx, &r, page, "Collection created", name)
	return r, nil
}

func addResource(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "admin")
	if err != nil {
		return r, err
	}
	title := fmt.Sprintf("E2E Resource %s", env.RunID)
	if err := page.Click(ctx, browser.ClickOptions{Selector: env.Selector("knowledge.new_resource", `[data-testid="new-resource"]`)}); err != nil {
		return r, err
	}
	if err := page.Fill(ctx, browser.FillOptions{Selector: env.Selector("knowledge.resource_title", `input[name="title"]`), Value: title}); err != nil {
		return r, err
	}
	if err := page.Click(ctx, browser.ClickOptions{Selector: env.Selector("knowledge.save", `button[type="submit"]`)}); err != nil {
		return r, err
	}
	env.ExpectText(ctx, &r, page, "Resource added", title)
	return r, nil
}

// deleteCollection is cleanup: a click error is recorded as a failed check
// instead of aborting.
func deleteCollection(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "admin")
	if err != nil {
		return r, err
	}
	err = page.Click(ctx, browser.ClickOptions{Selector: env.Selector("knowledge.delete_collection", `[data-testid="delete-collection"]`)})
	if err == nil {
		if confirm := env.Selector("knowledge.confirm_delete", `[data-testid="confirm-delete"]`); confirm != "" {
			err = page.Click(ctx, browser.ClickOptions{Selector: confirm})
		}
	}
	if err != nil {
		r.RecordFailure(check.StepFailure{Step: "Collection deleted", Reason: err.Error()})
		return r, nil
	}
	env.ExpectNoText(ctx, &r, page, "Collection deleted", collectionName(env))
	return r, nil
}
