// Package guild provides the built-in Discord platform-action tools: a
// curated set of channel, role, and message operations the model can invoke,
// each tagged with a safety tier and bound to the requesting tenant at
// resolution time.
package guild

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// Session is the slice of discordgo the built-in tools need. Narrow so
// tests can fake it.
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelDelete(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Descriptors returns the built-in tool set backed by the given session,
// ready to register with a tools.Registry.
func Descriptors(session Session) []tools.Descriptor {
	return []tools.Descriptor{
		{
			Name: "send_message",
			Tier: tools.TierLow,
			New: func(req *models.Request) tools.Invocable {
				return &sendMessage{session: session, req: req}
			},
		},
		{
			Name: "list_roles",
			Tier: tools.TierLow,
			New: func(req *models.Request) tools.Invocable {
				return &listRoles{session: session, req: req}
			},
		},
		{
			Name: "create_text_channel",
			Tier: tools.TierMid,
			New: func(req *models.Request) tools.Invocable {
				return &createTextChannel{session: session, req: req}
			},
		},
		{
			Name: "add_role",
			Tier: tools.TierHigh,
			New: func(req *models.Request) tools.Invocable {
				return &addRole{session: session, req: req}
			},
		},
		{
			Name: "delete_channel",
			Tier: tools.TierHigh,
			New: func(req *models.Request) tools.Invocable {
				return &deleteChannel{session: session, req: req}
			},
		},
	}
}

// Register adds every built-in descriptor to the registry.
func Register(registry *tools.Registry, session Session) error {
	for _, desc := range Descriptors(session) {
		if err := registry.Add(desc, false); err != nil {
			return err
		}
	}
	return nil
}

// failure wraps an API error into a tool result instead of raising it.
func failure(action string, err error) (*models.ToolResult, error) {
	return &models.ToolResult{Error: fmt.Sprintf("%s: %v", action, err)}, nil
}

// sendMessage posts a message to a channel of the requesting guild,
// defaulting to the channel the request came from.
type sendMessage struct {
	session Session
	req     *models.Request
}

func (t *sendMessage) Name() string { return "send_message" }

func (t *sendMessage) Description() string {
	return "Send a text message to a channel in this server. Defaults to the current channel."
}

func (t *sendMessage) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "The message text to send"},
			"channel_id": {"type": "string", "description": "Target channel ID; omit for the current channel"}
		},
		"required": ["content"]
	}`)
}

func (t *sendMessage) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Content   string `json:"content"`
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return failure("send_message", err)
	}
	if input.Content == "" {
		return &models.ToolResult{Error: "send_message: content is required"}, nil
	}

	channelID := input.ChannelID
	if channelID == "" {
		channelID = t.req.ChannelID
	}

	msg, err := t.session.ChannelMessageSend(channelID, input.Content)
	if err != nil {
		return failure("send_message", err)
	}
	return &models.ToolResult{
		Summary: "Sent message",
		Data:    map[string]any{"message_id": msg.ID, "channel_id": channelID},
	}, nil
}

// listRoles lists the roles of the requesting guild.
type listRoles struct {
	session Session
	req     *models.Request
}

func (t *listRoles) Name() string { return "list_roles" }

func (t *listRoles) Description() string {
	return "List the roles defined in this server with their IDs."
}

func (t *listRoles) Schema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *listRoles) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	roles, err := t.session.GuildRoles(t.req.GuildID)
	if err != nil {
		return failure("list_roles", err)
	}

	listed := make([]map[string]string, 0, len(roles))
	for _, role := range roles {
		listed = append(listed, map[string]string{"id": role.ID, "name": role.Name})
	}
	return &models.ToolResult{
		Summary: fmt.Sprintf("Found %d roles", len(listed)),
		Data:    listed,
	}, nil
}

// createTextChannel creates a text channel in the requesting guild.
type createTextChannel struct {
	session Session
	req     *models.Request
}

func (t *createTextChannel) Name() string { return "create_text_channel" }

func (t *createTextChannel) Description() string {
	return "Create a new text channel in this server."
}

func (t *createTextChannel) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "Name for the new channel"}
		},
		"required": ["name"]
	}`)
}

func (t *createTextChannel) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return failure("create_text_channel", err)
	}
	if input.Name == "" {
		return &models.ToolResult{Error: "create_text_channel: name is required"}, nil
	}

	ch, err := t.session.GuildChannelCreate(t.req.GuildID, input.Name, discordgo.ChannelTypeGuildText)
	if err != nil {
		return failure("create_text_channel", err)
	}
	return &models.ToolResult{
		Summary: fmt.Sprintf("Created channel #%s", ch.Name),
		Data:    map[string]any{"channel_id": ch.ID},
	}, nil
}

// addRole assigns an existing role to a member of the requesting guild.
type addRole struct {
	session Session
	req     *models.Request
}

func (t *addRole) Name() string { return "add_role" }

func (t *addRole) Description() string {
	return "Assign an existing role to a member of this server."
}

func (t *addRole) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"user_id": {"type": "string", "description": "Member to assign the role to"},
			"role_id": {"type": "string", "description": "Role to assign"}
		},
		"required": ["user_id", "role_id"]
	}`)
}

func (t *addRole) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		UserID string `json:"user_id"`
		RoleID string `json:"role_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return failure("add_role", err)
	}
	if input.UserID == "" || input.RoleID == "" {
		return &models.ToolResult{Error: "add_role: user_id and role_id are required"}, nil
	}

	if err := t.session.GuildMemberRoleAdd(t.req.GuildID, input.UserID, input.RoleID); err != nil {
		return failure("add_role", err)
	}
	return &models.ToolResult{Summary: "Assigned role to member"}, nil
}

// deleteChannel deletes a channel from the requesting guild.
type deleteChannel struct {
	session Session
	req     *models.Request
}

func (t *deleteChannel) Name() string { return "delete_channel" }

func (t *deleteChannel) Description() string {
	return "Delete a channel from this server. This cannot be undone."
}

func (t *deleteChannel) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"channel_id": {"type": "string", "description": "Channel to delete"}
		},
		"required": ["channel_id"]
	}`)
}

func (t *deleteChannel) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		ChannelID string `json:"channel_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return failure("delete_channel", err)
	}
	if input.ChannelID == "" {
		return &models.ToolResult{Error: "delete_channel: channel_id is required"}, nil
	}

	ch, err := t.session.ChannelDelete(input.ChannelID)
	if err != nil {
		return failure("delete_channel", err)
	}
	return &models.ToolResult{
		Summary: fmt.Sprintf("Deleted channel #%s", ch.Name),
	}, nil
}
