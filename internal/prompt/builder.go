// Package prompt assembles the system instruction and user-turn message for
// each model run from a fixed persona block, an optional override, and an
// ordered list of operator-defined rules.
package prompt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// baseSystem is the built-in instruction block used when no override is
// configured. Caller-supplied text is appended to it.
const baseSystem = `You are a Discord server management assistant. You help server members and administrators by answering questions and performing server actions through the tools available to you.

Rules:
- Use the provided tools whenever an action on the server is requested; never claim to have performed an action without calling a tool.
- Prefer a single tool call that accomplishes the request over several partial ones.
- Respond with a short, descriptive summary of what you did and what the outcome was.
- If a request cannot be fulfilled with the available tools, say so plainly.`

// promptTemplate renders the user turn. The user text is embedded verbatim
// and treated as untrusted content downstream.
const promptTemplate = "User %s in server %q says:\n%s"

// Builder composes {system, prompt} pairs. The rule list is ordered, allows
// duplicates, and is rendered as a bullet section after the instruction
// block. Builders are safe for concurrent Build calls; rule mutation is a
// configuration operation performed between requests.
type Builder struct {
	mu       sync.RWMutex
	override string
	useOver  bool
	rules    []string
}

// NewBuilder creates a builder. When useOverride is true, override replaces
// the built-in instruction block entirely; otherwise override (if
// non-empty) is appended to it.
func NewBuilder(override string, useOverride bool) *Builder {
	return &Builder{override: override, useOver: useOverride}
}

// AddRule appends a rule to the end of the list. No deduplication.
func (b *Builder) AddRule(rule string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, rule)
}

// RemoveRule deletes every rule exactly matching text, reporting whether
// anything was removed.
func (b *Builder) RemoveRule(text string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.rules[:0]
	removed := false
	for _, rule := range b.rules {
		if rule == text {
			removed = true
			continue
		}
		kept = append(kept, rule)
	}
	b.rules = kept
	return removed
}

// ResetRules clears the rule list.
func (b *Builder) ResetRules() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = nil
}

// Rules returns a copy of the current rule list in insertion order.
func (b *Builder) Rules() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.rules))
	copy(out, b.rules)
	return out
}

// Build renders the system instruction and the user-turn prompt for the
// given text and request. Pure function of the builder state and inputs.
func (b *Builder) Build(userText string, req *models.Request) (system, prompt string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sb strings.Builder
	switch {
	case b.useOver:
		sb.WriteString(b.override)
	case b.override != "":
		sb.WriteString(baseSystem)
		sb.WriteString("\n\n")
		sb.WriteString(b.override)
	default:
		sb.WriteString(baseSystem)
	}

	if len(b.rules) > 0 {
		sb.WriteString("\n\nUser-defined rules:")
		for _, rule := range b.rules {
			sb.WriteString("\n- ")
			sb.WriteString(rule)
		}
	}

	return sb.String(), fmt.Sprintf(promptTemplate, req.UserID, req.GuildName, userText)
}
