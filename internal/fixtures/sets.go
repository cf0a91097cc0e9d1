package fixtures

import (
	"context"
	"fmt"
	"strings"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/store"
	"github.com/neboloop/agencycheck/internal/supabase"
)

// identityOrder lists configured identities, admin/client/team first.
func (s *Seeder) identityOrder() []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range []string{"admin", "client", "team"} {
		if _, ok := s.Config.Identities[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range s.Config.IdentityNames() {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

func seedUsers(ctx context.Context, s *Seeder) check.Results {
	var r check.Results
	for _, name := range s.identityOrder() {
		id, _ := s.Config.Identity(name)
		userLabel := "Create user " + id.Email
		profileLabel := "Insert profile " + id.Email

		if s.Admin == nil {
			r.RecordFailure(check.StepFailure{Step: userLabel, Reason: "auth admin API unavailable"})
			skip(&r, profileLabel, "user")
			continue
		}
		password, err := s.Creds.First(id.PasswordKeys(name)...)
		if err != nil {
			r.RecordFailure(check.StepFailure{Step: userLabel, Reason: err.Error()})
			skip(&r, profileLabel, "user")
			continue
		}

		fullName := id.FullName
		if fullName == "" {
			fullName = "Demo " + id.Label
		}
		user, err := s.Admin.CreateUser(ctx, supabase.UserAttributes{
			Email:        id.Email,
			Password:     password,
			EmailConfirm: true,
			UserMetadata: map[string]any{"full_name": fullName, "role": name},
		})
		if isConflict(err) {
			user, err = s.Admin.FindUserByEmail(ctx, id.Email)
			if err == nil && user == nil {
				err = fmt.Errorf("user reported as existing but not found")
			}
		}
		if err != nil {
			r.RecordFailure(check.StepFailure{Step: userLabel, Reason: err.Error()})
			skip(&r, profileLabel, "user")
			continue
		}
		r.Pass(userLabel)

		s.insert(ctx, &r, profileLabel, "profiles", store.Row{
			"id":        user.ID,
			"email":     id.Email,
			"full_name": fullName,
			"role":      name,
		})
	}
	return r
}

type demoService struct {
	name        string
	description string
	milestones  []demoMilestone
}

type demoMilestone struct {
	title string
	tasks []string
}

var demoServices = []demoService{
	{
		name:        "E2E Website Redesign",
		description: "Full redesign of the marketing site",
		milestones: []demoMilestone{
			{"Discovery", []string{"Stakeholder interviews", "Audit current site"}},
			{"Design", []string{"Wireframes", "Visual design"}},
			{"Build", []string{"Implement pages", "QA pass"}},
		},
	},
	{
		name:        "E2E SEO Audit",
		description: "Technical and content SEO review",
		milestones: []demoMilestone{
			{"Crawl", []string{"Run crawler", "Triage errors"}},
			{"Report", []string{"Write findings", "Present to client"}},
		},
	},
}

func seedServices(ctx context.Context, s *Seeder) check.Results {
	var r check.Results
	for _, svc := range demoServices {
		serviceLabel := "Insert service " + svc.name
		serviceID, ok := s.insertParent(ctx, &r, serviceLabel, "services", store.Row{
			"id":          s.id(),
			"name":        svc.name,
			"description": svc.description,
			"status":      "active",
		}, "name")

		for i, m := range svc.milestones {
			milestoneLabel := fmt.Sprintf("Insert milestone %s / %s", svc.name, m.title)
			tasksLabel := fmt.Sprintf("Insert tasks for %s / %s", svc.name, m.title)
			if !ok {
				skip(&r, milestoneLabel, "service "+svc.name)
				skip(&r, tasksLabel, "service "+svc.name)
				continue
			}
			milestoneID, created := s.insertParent(ctx, &r, milestoneLabel, "milestones", store.Row{
				"id":          s.id(),
				"service_id":  serviceID,
				"title":       m.title,
				"status":      "pending",
				"order_index": i,
			}, "service_id", "title")
			if !created {
				skip(&r, tasksLabel, "milestone "+m.title)
				continue
			}

			tasks := make([]store.Row, len(m.tasks))
			for j, title := range m.tasks {
				tasks[j] = store.Row{
					"id":           s.id(),
					"milestone_id": milestoneID,
					"title":        title,
					"status":       "todo",
					"priority":     "medium",
				}
			}
			s.insert(ctx, &r, tasksLabel, "tasks", tasks...)
		}
	}
	return r
}

var emailTemplates = []struct {
	name, subject, body string
	variables           []string
}{
	{"welcome", "Welcome to the agency, {{name}}", "Hi {{name}}, your portal is ready.", []string{"name"}},
	{"milestone_complete", "Milestone complete: {{milestone}}", "{{milestone}} for {{service}} is done.", []string{"milestone", "service"}},
	{"task_assigned", "New task: {{task}}", "You were assigned {{task}}.", []string{"task"}},
}

func seedEmail(ctx context.Context, s *Seeder) check.Results {
	var r check.Results
	for _, t := range emailTemplates {
		s.insert(ctx, &r, "Insert email template "+t.name, "email_templates", store.Row{
			"id":        s.id(),
			"name":      t.name,
			"subject":   t.subject,
			"body":      t.body,
			"variables": t.variables,
		})
	}
	recipient := "client@demo.com"
	if id, err := s.Config.Identity("client"); err == nil {
		recipient = id.Email
	}
	s.insert(ctx, &r, "Insert email log", "email_logs", store.Row{
		"id":            s.id(),
		"template_name": "welcome",
		"recipient":     recipient,
		"subject":       "Welcome to the agency, Demo Client",
		"status":        "sent",
	})
	return r
}

func seedChat(ctx context.Context, s *Seeder) check.Results {
	var r check.Results
	convID, ok := s.insertParent(ctx, &r, "Insert conversation", "conversations", store.Row{
		"id":    s.id(),
		"title": "E2E Project Chat",
	}, "title")
	if !ok {
		skip(&r, "Insert messages", "conversation")
		return r
	}
	s.insert(ctx, &r, "Insert messages", "messages",
		store.Row{"id": s.id(), "conversation_id": convID, "content": "Welcome to your project chat"},
		store.Row{"id": s.id(), "conversation_id": convID, "content": "Thanks, looking forward to it"},
	)
	return r
}

type outline struct {
	Title string   `json:"title"`
	Tasks []string `json:"tasks"`
}

func seedTemplates(ctx context.Context, s *Seeder) check.Results {
	var r check.Results
	for _, svc := range demoServices {
		name := strings.TrimPrefix(svc.name, "E2E ") + " Template"
		milestones := make([]outline, len(svc.milestones))
		for i, m := range svc.milestones {
			milestones[i] = outline{Title: m.title, Tasks: m.tasks}
		}
		s.insert(ctx, &r, "Insert service template "+name, "service_templates", store.Row{
			"id":          s.id(),
			"name":        name,
			"description": svc.description,
			"milestones":  milestones,
		})
	}
	return r
}

func seedKnowledge(ctx context.Context, s *Seeder) check.Results {
	var r check.Results
	collID, ok := s.insertParent(ctx, &r, "Insert collection", "collections", store.Row{
		"id":          s.id(),
		"name":        "E2E Onboarding",
		"description": "Guides for new clients",
	}, "name")
	if !ok {
		skip(&r, "Insert resources", "collection")
		return r
	}
	s.insert(ctx, &r, "Insert resources", "resources",
		store.Row{"id": s.id(), "collection_id": collID, "title": "Getting started", "type": "article", "url": "https://example.com/start"},
		store.Row{"id": s.id(), "collection_id": collID, "title": "Brand checklist", "type": "document", "url": "https://example.com/brand"},
	)
	return r
}
