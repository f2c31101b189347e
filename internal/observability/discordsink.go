package observability

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// embedSender is the slice of the Discord session the sink needs, kept
// narrow so tests can fake it.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Embed colors per severity.
const (
	colorWarn  = 0xE67E22
	colorError = 0xE74C3C
)

// DiscordSink posts warn and error log events as embeds to a designated
// channel. Debug and info events are dropped; send failures are swallowed
// so logging can never take down the request path.
type DiscordSink struct {
	session   embedSender
	channelID string
}

// NewDiscordSink creates a sink posting to the given channel.
func NewDiscordSink(session *discordgo.Session, channelID string) *DiscordSink {
	return &DiscordSink{session: session, channelID: channelID}
}

// Debug is a no-op; debug events stay off the platform.
func (d *DiscordSink) Debug(ctx context.Context, msg string, args ...any) {}

// Info is a no-op; info events stay off the platform.
func (d *DiscordSink) Info(ctx context.Context, msg string, args ...any) {}

// Warn posts a warning embed.
func (d *DiscordSink) Warn(ctx context.Context, msg string, args ...any) {
	d.send("Warning", colorWarn, msg, args)
}

// Error posts an error embed.
func (d *DiscordSink) Error(ctx context.Context, msg string, args ...any) {
	d.send("Error", colorError, msg, args)
}

func (d *DiscordSink) send(title string, color int, msg string, args []any) {
	if d.session == nil || d.channelID == "" {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: msg,
		Color:       color,
	}
	for i := 0; i+1 < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   key,
			Value:  fmt.Sprint(args[i+1]),
			Inline: true,
		})
	}

	_, _ = d.session.ChannelMessageSendEmbed(d.channelID, embed)
}
