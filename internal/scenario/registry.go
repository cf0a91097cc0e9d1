package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/neboloop/agencycheck/internal/config"
)

var builders = map[string]func(*config.Config) Scenario{
	"login":      Login,
	"kanban":     Kanban,
	"chat":       Chat,
	"knowledge":  Knowledge,
	"responsive": Responsive,
}

// Names lists the built-in scenario names.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select builds the named scenarios in the given order. With no names it
// builds the ones enabled in the suite.
func Select(cfg *config.Config, names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		names = cfg.Scenarios.Enabled
	}
	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		build, ok := builders[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q (have: %s)", name, strings.Join(Names(), ", "))
		}
		out = append(out, build(cfg))
	}
	return out, nil
}
