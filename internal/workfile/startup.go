package workfile

import (
	"context"
	"regexp"
	"strings"

	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/internal/session"
)

// StartupRule decides whether a host opens the last workfile on launch. An
// empty Hosts or Tasks list matches anything; Tasks entries are regular
// expressions matched at the start of the lowercased task name. A nil
// Enabled defers to the environment default.
type StartupRule struct {
	Hosts   []string `yaml:"hosts"`
	Tasks   []string `yaml:"tasks"`
	Enabled *bool    `yaml:"enabled"`
}

// PresetSource provides the startup rules of a project.
type PresetSource interface {
	StartupRules(ctx context.Context, project string) ([]StartupRule, error)
}

// StaticPresets serves the same rules for every project.
type StaticPresets []StartupRule

func (p StaticPresets) StartupRules(context.Context, string) ([]StartupRule, error) {
	return p, nil
}

// Resolver answers startup questions for launched hosts.
type Resolver struct {
	presets PresetSource
	env     session.Environ
	logger  *logger.Logger
}

// NewResolver builds a Resolver. A nil presets source means no rules; a nil
// env reads the process environment.
func NewResolver(presets PresetSource, env session.Environ, log *logger.Logger) *Resolver {
	if env == nil {
		env = session.OSEnviron{}
	}
	return &Resolver{presets: presets, env: env, logger: log}
}

// EnvDefault reads AVALON_OPEN_LAST_WORKFILE. Unrecognized values and an
// unset variable yield false.
func (r *Resolver) EnvDefault() bool {
	value, ok := r.env.Lookup(session.OpenLastWorkfile)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// ShouldStartLast reports whether host should open the last workfile of task
// when it starts. The most specific matching rule wins: a rule naming both
// host and task beats one naming either, which beats a catch-all. Among
// equally specific rules the first wins.
func (r *Resolver) ShouldStartLast(ctx context.Context, project, host, task string) bool {
	fallback := r.EnvDefault()
	if r.presets == nil {
		return fallback
	}

	rules, err := r.presets.StartupRules(ctx, project)
	if err != nil {
		r.logger.WithFields(map[string]any{"project": project}).WarnErr(err, "couldn't load workfile presets")
		return fallback
	}
	if len(rules) == 0 {
		return fallback
	}

	hostLower := strings.ToLower(host)
	taskLower := strings.ToLower(task)

	const maxPoints = 2
	best := -1
	var matched *StartupRule

	for i := range rules {
		rule := &rules[i]

		hosts := lowered(rule.Hosts)
		if len(hosts) > 0 && !contains(hosts, hostLower) {
			continue
		}

		tasks := lowered(rule.Tasks)
		if len(tasks) > 0 && !r.matchesTask(tasks, taskLower) {
			continue
		}

		points := 0
		if len(hosts) > 0 {
			points++
		}
		if len(tasks) > 0 {
			points++
		}
		if points > best {
			best = points
			matched = rule
		}
		if best == maxPoints {
			break
		}
	}

	if matched == nil || matched.Enabled == nil {
		return fallback
	}
	return *matched.Enabled
}

func (r *Resolver) matchesTask(patterns []string, task string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			r.logger.WithFields(map[string]any{"pattern": pattern}).WarnErr(err, "skipping invalid task pattern")
			continue
		}
		if re.MatchString(task) {
			return true
		}
	}
	return false
}

func lowered(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
