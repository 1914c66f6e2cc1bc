// Package roster resolves the ordered list of candidate models for each
// kind of completion.  The first entry is tried first.
package roster

import "strings"

// Kind is the operation a model list is resolved for.
type Kind string

const (
	// Enhance refines the user's prompt before code generation.
	Enhance Kind = "enhance"
	// Generate produces the website document.
	Generate Kind = "generate"
)

// Built-in candidates used after any configured overrides.
var (
	DefaultGenerateModels = []string{
		"kwaipilot/kat-coder-pro",
		"qwen/qwen3-coder",
		"deepseek/deepseek-chat-v3.1",
	}
	DefaultEnhanceModels = []string{
		"kwaipilot/kat-coder-pro",
		"meta-llama/llama-3.3-70b-instruct",
	}
)

// Config carries the raw overrides, usually taken from config.AIConfig.
type Config struct {
	Enhance  []string // kind override for Enhance
	Generate []string // kind override for Generate
	Generic  []string // shared override for both kinds
}

// Roster holds one resolved list per kind.
type Roster struct {
	lists map[Kind][]string
}

// New resolves both kinds once.  Each list is the kind override, then the
// generic override, then the built-in defaults, with blanks dropped and
// duplicates removed while keeping first-seen order.
func New(cfg Config) *Roster {
	return &Roster{lists: map[Kind][]string{
		Enhance:  merge(cfg.Enhance, cfg.Generic, DefaultEnhanceModels),
		Generate: merge(cfg.Generate, cfg.Generic, DefaultGenerateModels),
	}}
}

// Resolve returns a copy of the list for kind.  Unknown kinds resolve like
// Generate.  The result is never empty.
func (r *Roster) Resolve(kind Kind) []string {
	list, ok := r.lists[kind]
	if !ok {
		list = r.lists[Generate]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func merge(sources ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, src := range sources {
		for _, m := range src {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
