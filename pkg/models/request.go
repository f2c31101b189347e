// Package models defines the shared data types and the error taxonomy used
// across the SDK: the per-event request context, tool results, and model run
// results. It is a leaf package with no dependencies beyond the standard
// library so every layer can import it.
package models

// Request is the immutable per-event context built by the dispatch layer
// from an inbound platform event. It identifies the principal (user), the
// tenant (guild), and the source channel, and carries the raw message text.
type Request struct {
	// ID correlates log entries and metrics for a single request.
	ID string

	// UserID is the platform identity of the principal.
	UserID string

	// Username is the display name of the principal, for prompts and logs.
	Username string

	// GuildID identifies the tenant the request originated from.
	GuildID string

	// GuildName is the tenant display name embedded into prompts.
	GuildName string

	// ChannelID is the source channel the reply should be delivered to.
	ChannelID string

	// Content is the raw user text, untrusted and passed through verbatim.
	Content string

	// Roles holds the principal's role IDs within the tenant, when known.
	Roles []string

	// IsAdmin reports whether the principal holds the administrator
	// permission in the tenant.
	IsAdmin bool
}

// HasRole reports whether the principal carries the given role ID.
func (r *Request) HasRole(roleID string) bool {
	for _, id := range r.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}
