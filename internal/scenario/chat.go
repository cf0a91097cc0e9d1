package scenario

import (
	"context"
	"fmt"

	"github.com/neboloop/agencycheck/internal/browser"
	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

// Chat has admin and client in two isolated browser contexts. Admin sends a
// message tagged with the run ID and client must see it.
func Chat(cfg *config.Config) Scenario {
	return Scenario{
		Name:        "chat",
		Description: "A message sent by admin reaches client",
		Steps: []Step{
			{Name: "login admin", Run: loginStep("admin")},
			{Name: "login client", Run: loginStep("client")},
			{Name: "send message", Run: sendMessage},
			{Name: "receive message", Run: receiveMessage},
		},
	}
}

func chatMessage(env *Env) string {
	return fmt.Sprintf("E2E message %s", env.RunID)
}

func sendMessage(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "admin")
	if err != nil {
		return r, err
	}
	if err := env.Goto(ctx, page, env.Selector("chat.admin_path", "/admin/messages")); err != nil {
		return r, err
	}
	input := env.Selector("chat.input", "textarea")
	if !env.ExpectVisible(ctx, &r, page, "Chat input visible", input) {
		return r, nil
	}
	msg := chatMessage(env)
	if err := page.Fill(ctx, browser.FillOptions{Selector: input, Value: msg}); err != nil {
		return r, err
	}
	if send := env.Selector("chat.send", ""); send != "" {
		err = page.Click(ctx, browser.ClickOptions{Selector: send})
	} else {
		err = page.Press(ctx, browser.PressOptions{Key: "Enter"})
	}
	if err != nil {
		return r, err
	}
	env.ExpectText(ctx, &r, page, "Message sent", msg)
	return r, nil
}

func receiveMessage(ctx context.Context, env *Env) (check.Results, error) {
	var r check.Results
	page, err := env.Page(ctx, "client")
	if err != nil {
		return r, err
	}
	if err := env.Goto(ctx, page, env.Selector("chat.client_path", "/client/messages")); err != nil {
		return r, err
	}
	env.ExpectText(ctx, &r, page, "Message received", chatMessage(env))
	return r, nil
}
