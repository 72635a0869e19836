package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// RefreshVerificationPrompt clears the verification channel of the bot's
// previous prompts and posts a fresh message with the verify button, so the
// channel always shows exactly one working entry point.
func (n *Notifier) RefreshVerificationPrompt(ctx context.Context, channelID, botUserID string) error {
	if channelID == "" {
		return nil
	}

	msgs, err := n.s.ChannelMessages(channelID, 50, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list verification channel: %w", err)
	}
	for _, m := range msgs {
		if m.Author == nil || m.Author.ID != botUserID {
			continue
		}
		if err := n.s.ChannelMessageDelete(channelID, m.ID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("delete old prompt %s: %w", m.ID, err)
		}
	}

	embed := n.baseEmbed()
	embed.Title = "🏰 Gate of the Kingdom"
	embed.Description = "Press the button below to verify your identity and receive citizenship."
	_, err = n.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Begin Verification",
						Style:    discordgo.SuccessButton,
						CustomID: "verify_button",
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("post verification prompt: %w", err)
	}
	return nil
}
