// Package notify relays admin notifications to an external channel.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/bwmarrin/discordgo"
)

const maxEmbedDescription = 4096

var typeColors = map[string]int{
	"team_registered":  0x3498db,
	"payment_captured": 0x2ecc71,
	"payment_failed":   0xe74c3c,
	"team_rejected":    0xe67e22,
	"refund_processed": 0x9b59b6,
}

// DiscordRelay posts notifications as embeds into one admin channel.
type DiscordRelay struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordRelay(token, channelID string) (*DiscordRelay, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordRelay{session: s, channelID: channelID}, nil
}

func (d *DiscordRelay) Relay(ctx context.Context, n models.Notification) error {
	if _, err := d.session.ChannelMessageSendEmbed(d.channelID, NotificationEmbed(n), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord relay: %w", err)
	}
	return nil
}

func NotificationEmbed(n models.Notification) *discordgo.MessageEmbed {
	desc := n.Message
	if len(desc) > maxEmbedDescription {
		desc = desc[:maxEmbedDescription-1] + "…"
	}
	color, ok := typeColors[n.Type]
	if !ok {
		color = 0x95a5a6
	}
	return &discordgo.MessageEmbed{
		Title:       n.Title,
		Description: desc,
		Color:       color,
		Timestamp:   n.CreatedAt.UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: n.Type},
	}
}
