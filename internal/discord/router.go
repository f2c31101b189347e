// Package discord connects the request engine to a Discord gateway session.
// It converts inbound guild messages into engine requests, applies coarse
// channel and role gating, and delivers replies in order, segmented to the
// platform message limit.
package discord

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/chunk"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/engine"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/observability"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// session is the slice of discordgo the router needs. Narrow so tests can
// fake it.
type session interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	UserChannelPermissions(userID string, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// Config holds configuration for the Discord router.
type Config struct {
	// Token is the bot token from the Discord developer portal (required).
	Token string

	// Prefix is the message prefix that addresses the bot. Messages without
	// it are ignored. Mentioning the bot works regardless of prefix.
	Prefix string

	// RequiredRoleID, when set, restricts the bot to members holding the
	// role (administrators always pass).
	RequiredRoleID string

	// AllowedChannels, when non-empty, restricts the bot to the listed
	// channel IDs.
	AllowedChannels []string

	// HandleTimeout bounds a single request end to end.
	HandleTimeout time.Duration

	// Session, when set, is used instead of dialing a new gateway session
	// from Token. The caller keeps ownership for sharing with other
	// components.
	Session *discordgo.Session

	// Logger is an optional log sink.
	Logger observability.Sink

	// Metrics is an optional metrics collector.
	Metrics *observability.Metrics
}

// Validate checks if the configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return &models.Error{Code: models.CodePermissionDenied, Message: "discord token is required"}
	}
	if c.Prefix == "" {
		c.Prefix = "!ai"
	}
	if c.HandleTimeout == 0 {
		c.HandleTimeout = 2 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = observability.NopSink{}
	}
	return nil
}

// Router receives guild messages and drives the engine for each one.
type Router struct {
	config   Config
	engine   *engine.Engine
	splitter *chunk.Splitter
	session  session
	logger   observability.Sink

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup

	allowed map[string]struct{}
	botID   string
}

// NewRouter creates a router over the given engine.
func NewRouter(config Config, eng *engine.Engine) (*Router, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(config.AllowedChannels))
	for _, id := range config.AllowedChannels {
		allowed[id] = struct{}{}
	}

	r := &Router{
		config:   config,
		engine:   eng,
		splitter: chunk.NewSplitter(chunk.DiscordLimit),
		logger:   config.Logger,
		allowed:  allowed,
	}
	if config.Session != nil {
		r.session = config.Session
	}
	return r, nil
}

// Start opens the gateway connection and begins handling messages.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return &models.Error{Code: models.CodeModelExecution, Message: "router already started"}
	}

	if r.session == nil {
		dg, err := discordgo.New("Bot " + r.config.Token)
		if err != nil {
			return &models.Error{Code: models.CodeModelExecution, Message: "failed to create discord session", Err: err}
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
		r.session = dg
	}

	r.session.AddHandler(r.handleReady)
	r.session.AddHandler(r.handleMessageCreate)

	if err := r.session.Open(); err != nil {
		return &models.Error{Code: models.CodeModelExecution, Message: "failed to connect to discord", Err: err}
	}

	r.started = true

	r.logger.Info(ctx, "discord router started", "prefix", r.config.Prefix)
	return nil
}

// Stop closes the gateway connection and waits for in-flight requests.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out waiting for in-flight requests")
	}

	err := r.session.Close()
	r.logger.Info(ctx, "discord router stopped")
	return err
}

func (r *Router) handleReady(s *discordgo.Session, ready *discordgo.Ready) {
	r.mu.Lock()
	r.botID = ready.User.ID
	r.mu.Unlock()

	r.logger.Info(context.Background(), "discord connection ready",
		"user", ready.User.Username,
		"guilds", len(ready.Guilds))
}

func (r *Router) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}

	content, addressed := r.addressedContent(m)
	if !addressed {
		return
	}

	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), r.config.HandleTimeout)
		defer cancel()

		r.dispatch(ctx, m, content)
	}()
}

// addressedContent reports whether the message addresses the bot and returns
// the content with the prefix or mention stripped.
func (r *Router) addressedContent(m *discordgo.MessageCreate) (string, bool) {
	content := strings.TrimSpace(m.Content)

	if strings.HasPrefix(content, r.config.Prefix) {
		rest := strings.TrimPrefix(content, r.config.Prefix)
		if rest == "" || rest[0] == ' ' {
			return strings.TrimSpace(rest), true
		}
	}

	r.mu.Lock()
	botID := r.botID
	r.mu.Unlock()
	if botID != "" {
		for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
			if strings.HasPrefix(content, mention) {
				return strings.TrimSpace(strings.TrimPrefix(content, mention)), true
			}
		}
	}

	return "", false
}

func (r *Router) dispatch(ctx context.Context, m *discordgo.MessageCreate, content string) {
	start := time.Now()

	req := r.buildRequest(m)

	r.logger.Debug(ctx, "received request",
		"request_id", req.ID,
		"guild_id", req.GuildID,
		"channel_id", req.ChannelID,
		"content_length", len(content))

	if err := r.authorize(req); err != nil {
		r.reply(ctx, req.ChannelID, err)
		return
	}

	_ = r.session.ChannelTyping(req.ChannelID)

	text, err := r.engine.Handle(ctx, content, req, true)
	if err != nil {
		r.logger.Warn(ctx, "request failed",
			"request_id", req.ID,
			"error", err)
		r.reply(ctx, req.ChannelID, err)
		return
	}

	segments := r.splitter.Split(text)
	for _, segment := range segments {
		if _, err := r.session.ChannelMessageSend(req.ChannelID, segment); err != nil {
			r.logger.Error(ctx, "failed to deliver reply",
				"request_id", req.ID,
				"error", err)
			return
		}
	}
	if r.config.Metrics != nil {
		r.config.Metrics.RecordChunks(len(segments))
	}

	r.logger.Info(ctx, "request handled",
		"request_id", req.ID,
		"segments", len(segments),
		"duration", time.Since(start))
}

// buildRequest converts a gateway message into an engine request, enriching
// it with guild and permission context where available.
func (r *Router) buildRequest(m *discordgo.MessageCreate) *models.Request {
	req := &models.Request{
		ID:        uuid.NewString(),
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
	}
	if m.Member != nil {
		req.Roles = append(req.Roles, m.Member.Roles...)
	}

	if guild, err := r.session.Guild(m.GuildID); err == nil && guild != nil {
		req.GuildName = guild.Name
		req.IsAdmin = guild.OwnerID == m.Author.ID
	}
	if !req.IsAdmin {
		if perms, err := r.session.UserChannelPermissions(m.Author.ID, m.ChannelID); err == nil {
			req.IsAdmin = perms&discordgo.PermissionAdministrator != 0
		}
	}
	return req
}

// authorize applies the coarse channel and role gates before the request
// reaches the engine.
func (r *Router) authorize(req *models.Request) error {
	if len(r.allowed) > 0 {
		if _, ok := r.allowed[req.ChannelID]; !ok {
			return models.ErrPermissionDenied("this channel is not enabled for the assistant")
		}
	}
	if r.config.RequiredRoleID != "" && !req.IsAdmin && !req.HasRole(r.config.RequiredRoleID) {
		return models.ErrPermissionDenied("you do not have the role required to use the assistant")
	}
	return nil
}

// reply reports an error to the channel, exposing the typed user message and
// hiding internals behind a generic apology.
func (r *Router) reply(ctx context.Context, channelID string, err error) {
	msg := "Sorry, something went wrong while handling your request."
	if typed, ok := models.AsError(err); ok {
		msg = "Error: " + typed.UserMessage()
	}
	if _, sendErr := r.session.ChannelMessageSend(channelID, msg); sendErr != nil {
		r.logger.Error(ctx, "failed to deliver error reply", "error", sendErr)
	}
}
