package discord

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// Notifier delivers DMs and audit embeds through Discord channels.  Audit
// kinds map to channels: heartbeats to the heartbeat channel, everything
// else to the log channel.
type Notifier struct {
	s *discordgo.Session

	approvalChannelID  string
	logChannelID       string
	heartbeatChannelID string

	embedColor int
	footer     string
}

type NotifierConfig struct {
	ApprovalChannelID  string
	LogChannelID       string
	HeartbeatChannelID string
	EmbedColor         string
	EmbedFooter        string
}

const (
	colorDenied  = 0xFF0000
	colorRevoked = 0xFF9B21
)

func NewNotifier(s *discordgo.Session, cfg NotifierConfig) *Notifier {
	return &Notifier{
		s:                  s,
		approvalChannelID:  cfg.ApprovalChannelID,
		logChannelID:       cfg.LogChannelID,
		heartbeatChannelID: cfg.HeartbeatChannelID,
		embedColor:         parseHexColor(cfg.EmbedColor, 0x3EFF06),
		footer:             cfg.EmbedFooter,
	}
}

func parseHexColor(s string, def int) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	n, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return def
	}
	return int(n)
}

func (n *Notifier) SendDirect(ctx context.Context, userID, text string) error {
	ch, err := n.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	embed := n.baseEmbed()
	embed.Title = "📜 Royal Decree"
	embed.Description = text
	if _, err := n.s.ChannelMessageSendEmbed(ch.ID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("dm %s: %w", userID, err)
	}
	return nil
}

func (n *Notifier) SendAudit(ctx context.Context, ev service.AuditEvent) error {
	channelID := n.logChannelID
	if ev.Kind == service.AuditHeartbeat {
		channelID = n.heartbeatChannelID
	}
	if channelID == "" {
		return nil
	}
	embed := n.auditEmbed(ev)
	if _, err := n.s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("audit %s: %w", ev.Kind, err)
	}
	return nil
}

// AnnouncePending posts the staff approval request with approve and deny
// buttons wired to the interaction handler.
func (n *Notifier) AnnouncePending(ctx context.Context, rec types.UserRecord) error {
	if n.approvalChannelID == "" {
		return nil
	}
	embed := n.baseEmbed()
	embed.Title = "👑 Verification Request"
	embed.Description = fmt.Sprintf("<@%s> (%s) seeks entry to the kingdom.", rec.ID, rec.Username)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "User ID", Value: rec.ID, Inline: true},
		{Name: "Requested", Value: rec.SubmittedAt.UTC().Format(time.RFC1123), Inline: true},
	}
	_, err := n.s.ChannelMessageSendComplex(n.approvalChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Approve",
						Style:    discordgo.SuccessButton,
						CustomID: "approve_" + rec.ID,
					},
					discordgo.Button{
						Label:    "Deny",
						Style:    discordgo.DangerButton,
						CustomID: "deny_" + rec.ID,
					},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("announce pending %s: %w", rec.ID, err)
	}
	return nil
}

func (n *Notifier) baseEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:     n.embedColor,
		Footer:    &discordgo.MessageEmbedFooter{Text: n.footer},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (n *Notifier) auditEmbed(ev service.AuditEvent) *discordgo.MessageEmbed {
	embed := n.baseEmbed()
	if !ev.At.IsZero() {
		embed.Timestamp = ev.At.UTC().Format(time.RFC3339)
	}

	switch ev.Kind {
	case service.AuditApproved:
		embed.Title = "✅ Subject Verified"
		embed.Description = fmt.Sprintf("<@%s> has been granted citizenship by <@%s>.", ev.UserID, ev.ActorID)
	case service.AuditDenied:
		embed.Title = "❌ Petition Denied"
		embed.Color = colorDenied
		embed.Description = fmt.Sprintf("<@%s>'s request was denied by <@%s>.", ev.UserID, ev.ActorID)
	case service.AuditRevoked:
		embed.Title = "🚫 Citizenship Revoked"
		embed.Color = colorRevoked
		embed.Description = fmt.Sprintf("<@%s> has been deauthorized by <@%s>.", ev.UserID, ev.ActorID)
	case service.AuditDeparted:
		embed.Title = "🏰 Subject Departed"
		embed.Color = colorRevoked
		embed.Description = fmt.Sprintf("<@%s> has left the kingdom and was deauthorized.", ev.UserID)
	case service.AuditBulkReport:
		embed.Title = "📋 Bulk Operation Report"
		embed.Description = fmt.Sprintf("Executed by <@%s>.", ev.ActorID)
	case service.AuditSyncReport:
		embed.Title = "🔄 Role Synchronization"
		embed.Description = "Reconciled the royal registry against live roles."
	case service.AuditHeartbeat:
		embed.Title = "💓 Royal Heartbeat"
		embed.Description = "The kingdom's systems remain operational."
	default:
		embed.Title = string(ev.Kind)
	}

	if ev.Reason != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Reason", Value: ev.Reason, Inline: false,
		})
	}
	for _, k := range sortedKeys(ev.Details) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: k, Value: ev.Details[k], Inline: true,
		})
	}
	return embed
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
