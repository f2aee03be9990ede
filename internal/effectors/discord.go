package effectors

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// messageSender is the part of *discordgo.Session the notifier uses
type messageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications to a Discord channel
type DiscordNotifier struct {
	session   messageSender
	channelID string
}

// NewDiscordNotifier creates a Discord notifier. It shares the session with
// the Discord chat front end when both are enabled.
func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return &DiscordNotifier{session: session, channelID: channelID}
}

// Notify sends "**title**\nmessage" to the configured channel
func (n *DiscordNotifier) Notify(ctx context.Context, title, message string) error {
	if n.channelID == "" {
		return fmt.Errorf("missing channel_id")
	}
	content := fmt.Sprintf("**%s**\n%s", title, message)
	if _, err := n.session.ChannelMessageSend(n.channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}
