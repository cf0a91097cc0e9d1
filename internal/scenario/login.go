package scenario

import (
	"context"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
)

var loginOrder = []string{"admin", "client", "team"}

// identityOrder returns admin, client, team first, then any other
// configured identity sorted by name.
func identityOrder(cfg *config.Config) []string {
	var out []string
	seen := map[string]bool{}
	for _, name := range loginOrder {
		if _, ok := cfg.Identities[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range cfg.IdentityNames() {
		if !seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// Login signs every configured identity in on its own page and checks the
// landing URL.
func Login(cfg *config.Config) Scenario {
	sc := Scenario{
		Name:        "login",
		Description: "Each demo identity logs in and lands on its dashboard",
	}
	for _, name := range identityOrder(cfg) {
		sc.Steps = append(sc.Steps, Step{
			Name: name,
			Run: func(ctx context.Context, env *Env) (check.Results, error) {
				var r check.Results
				_, _, err := env.Login(ctx, &r, name)
				return r, err
			},
		})
	}
	return sc
}
