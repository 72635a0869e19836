package discord

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
)

// Commands wires the guild's slash commands and button interactions to the
// verification workflow.
type Commands struct {
	s          *discordgo.Session
	store      *store.Store
	workflow   *service.Workflow
	reconciler *service.Reconciler
	logger     *log.Logger

	guildID     string
	adminRoleID string
	serverURL   string
}

func NewCommands(
	s *discordgo.Session,
	st *store.Store,
	wf *service.Workflow,
	rc *service.Reconciler,
	logger *log.Logger,
	guildID, adminRoleID, serverURL string,
) *Commands {
	return &Commands{
		s:           s,
		store:       st,
		workflow:    wf,
		reconciler:  rc,
		logger:      logger,
		guildID:     guildID,
		adminRoleID: adminRoleID,
		serverURL:   serverURL,
	}
}

// Register overwrites the guild's command set and installs the interaction
// handler.  Bulk overwrite removes any stale commands from earlier runs.
func (c *Commands) Register(appID string) error {
	userOpt := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: "Target user",
			Required:    required,
		}
	}
	reasonOpt := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason recorded in the audit log",
	}

	cmds := []*discordgo.ApplicationCommand{
		{Name: "verify", Description: "Start the verification process"},
		{Name: "status", Description: "Check your verification status"},
		{
			Name:        "auth",
			Description: "Approve a pending verification request",
			Options:     []*discordgo.ApplicationCommandOption{userOpt(true)},
		},
		{
			Name:        "deny",
			Description: "Deny a pending verification request",
			Options:     []*discordgo.ApplicationCommandOption{userOpt(true), reasonOpt},
		},
		{
			Name:        "deauth",
			Description: "Revoke a user's verified status",
			Options:     []*discordgo.ApplicationCommandOption{userOpt(true), reasonOpt},
		},
		{Name: "auth-all", Description: "Approve every pending request"},
		{Name: "deauth-all", Description: "Revoke every verified user"},
		{Name: "sync-now", Description: "Reconcile the registry against live roles"},
		{Name: "menu", Description: "Show the staff control menu"},
	}

	if _, err := c.s.ApplicationCommandBulkOverwrite(appID, c.guildID, cmds); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	c.s.AddHandler(c.handleInteraction)
	return nil
}

func (c *Commands) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		c.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		c.handleComponent(ctx, i)
	}
}

func (c *Commands) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	switch name {
	case "verify":
		c.replyVerifyPrompt(i)
	case "status":
		c.replyStatus(i)
	case "auth":
		c.staffOnly(i, func() { c.runApprove(ctx, i, c.optionUserID(i)) })
	case "deny":
		c.staffOnly(i, func() { c.runDeny(ctx, i, c.optionUserID(i), c.optionReason(i)) })
	case "deauth":
		c.staffOnly(i, func() { c.runRevoke(ctx, i, c.optionUserID(i), c.optionReason(i)) })
	case "auth-all":
		c.staffOnly(i, func() { c.confirmBulk(i, "auth_all", len(c.store.PendingIDs()), "approve every pending request") })
	case "deauth-all":
		c.staffOnly(i, func() { c.confirmBulk(i, "deauth_all", len(c.store.VerifiedIDs()), "revoke every verified user") })
	case "sync-now":
		c.staffOnly(i, func() { c.runSync(ctx, i) })
	case "menu":
		c.staffOnly(i, func() { c.replyMenu(i) })
	default:
		c.logger.Printf("unknown command %q from %s", name, c.invokerID(i))
	}
}

func (c *Commands) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	id := i.MessageComponentData().CustomID
	switch {
	case id == "verify_button":
		c.replyVerifyPrompt(i)
	case strings.HasPrefix(id, "approve_"):
		c.staffOnly(i, func() { c.runApprove(ctx, i, strings.TrimPrefix(id, "approve_")) })
	case strings.HasPrefix(id, "deny_"):
		c.staffOnly(i, func() { c.runDeny(ctx, i, strings.TrimPrefix(id, "deny_"), "") })
	case id == "confirm_auth_all":
		c.staffOnly(i, func() { c.runApproveAll(ctx, i) })
	case id == "confirm_deauth_all":
		c.staffOnly(i, func() { c.runRevokeAll(ctx, i) })
	case id == "cancel_auth_all", id == "cancel_deauth_all":
		c.replyEphemeral(i, "Operation cancelled. The registry is untouched.")
	case id == "menu_sync":
		c.staffOnly(i, func() { c.runSync(ctx, i) })
	case id == "menu_stats":
		c.staffOnly(i, func() { c.replyStats(i) })
	default:
		c.logger.Printf("unknown component %q from %s", id, c.invokerID(i))
	}
}

// ── permission helpers ──────────────────────────────────────────────

func (c *Commands) isAdmin(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, r := range i.Member.Roles {
		if r == c.adminRoleID {
			return true
		}
	}
	return false
}

func (c *Commands) staffOnly(i *discordgo.InteractionCreate, fn func()) {
	if !c.isAdmin(i) {
		c.replyEphemeral(i, "⛔ Only the royal court may wield this command.")
		return
	}
	fn()
}

func (c *Commands) invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (c *Commands) optionUserID(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "user" {
			return opt.UserValue(nil).ID
		}
	}
	return ""
}

func (c *Commands) optionReason(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "reason" {
			return opt.StringValue()
		}
	}
	return ""
}

// ── replies ─────────────────────────────────────────────────────────

func (c *Commands) replyEphemeral(i *discordgo.InteractionCreate, text string) {
	err := c.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		c.logger.Printf("interaction reply failed: %v", err)
	}
}

func (c *Commands) deferEphemeral(i *discordgo.InteractionCreate) bool {
	err := c.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		c.logger.Printf("interaction defer failed: %v", err)
		return false
	}
	return true
}

func (c *Commands) editReply(i *discordgo.InteractionCreate, text string) {
	_, err := c.s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &text})
	if err != nil {
		c.logger.Printf("interaction edit failed: %v", err)
	}
}

func (c *Commands) replyVerifyPrompt(i *discordgo.InteractionCreate) {
	err := c.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "🏰 Present yourself at the royal gate to begin verification.",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label: "Verify with Discord",
							Style: discordgo.LinkButton,
							URL:   c.serverURL + "/auth",
						},
					},
				},
			},
		},
	})
	if err != nil {
		c.logger.Printf("verify prompt reply failed: %v", err)
	}
}

func (c *Commands) replyStatus(i *discordgo.InteractionCreate) {
	id := c.invokerID(i)
	if c.store.IsVerified(id) {
		c.replyEphemeral(i, "✅ You are a verified citizen of the kingdom.")
		return
	}
	if _, ok := c.store.PendingRecord(id); ok {
		c.replyEphemeral(i, "⏳ Your petition awaits the royal court's judgment.")
		return
	}
	if rec, ok := c.store.RevokedRecord(id); ok {
		c.replyEphemeral(i, fmt.Sprintf("🚫 Your citizenship was revoked: %s. Use /verify to petition again.", rec.Reason))
		return
	}
	c.replyEphemeral(i, "❔ You are not verified. Use /verify to begin.")
}

func (c *Commands) replyStats(i *discordgo.InteractionCreate) {
	pending, verified, revoked := c.store.Counts()
	stats := c.store.Stats()
	c.replyEphemeral(i, fmt.Sprintf(
		"📊 **Registry**\nPending: %d\nVerified: %d\nRevoked: %d\nTotal verifications: %d\nTotal deauthorizations: %d",
		pending, verified, revoked, stats.TotalVerified, stats.TotalDeauths,
	))
}

func (c *Commands) replyMenu(i *discordgo.InteractionCreate) {
	err := c.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "👑 **Royal Control Menu**",
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{Label: "Sync roles", Style: discordgo.PrimaryButton, CustomID: "menu_sync"},
						discordgo.Button{Label: "Statistics", Style: discordgo.SecondaryButton, CustomID: "menu_stats"},
					},
				},
			},
		},
	})
	if err != nil {
		c.logger.Printf("menu reply failed: %v", err)
	}
}

func (c *Commands) confirmBulk(i *discordgo.InteractionCreate, op string, count int, verb string) {
	if count == 0 {
		c.replyEphemeral(i, "Nothing to do: no matching users in the registry.")
		return
	}
	err := c.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("⚠️ This will %s (%d users). Proceed?", verb, count),
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{Label: "Confirm", Style: discordgo.DangerButton, CustomID: "confirm_" + op},
						discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: "cancel_" + op},
					},
				},
			},
		},
	})
	if err != nil {
		c.logger.Printf("bulk confirm reply failed: %v", err)
	}
}

// ── staff operations ────────────────────────────────────────────────

func (c *Commands) runApprove(ctx context.Context, i *discordgo.InteractionCreate, userID string) {
	if userID == "" {
		c.replyEphemeral(i, "No user given.")
		return
	}
	if !c.deferEphemeral(i) {
		return
	}
	rec, err := c.workflow.Approve(ctx, userID, c.invokerID(i))
	if err != nil {
		c.editReply(i, fmt.Sprintf("❌ Approval failed: %v", err))
		return
	}
	c.editReply(i, fmt.Sprintf("✅ <@%s> (%s) is now a verified citizen.", rec.ID, rec.Username))
}

func (c *Commands) runDeny(ctx context.Context, i *discordgo.InteractionCreate, userID, reason string) {
	if userID == "" {
		c.replyEphemeral(i, "No user given.")
		return
	}
	if !c.deferEphemeral(i) {
		return
	}
	rec, err := c.workflow.Deny(ctx, userID, c.invokerID(i), reason)
	if err != nil {
		c.editReply(i, fmt.Sprintf("❌ Denial failed: %v", err))
		return
	}
	c.editReply(i, fmt.Sprintf("❌ <@%s>'s petition denied: %s", rec.ID, rec.Reason))
}

func (c *Commands) runRevoke(ctx context.Context, i *discordgo.InteractionCreate, userID, reason string) {
	if userID == "" {
		c.replyEphemeral(i, "No user given.")
		return
	}
	if !c.deferEphemeral(i) {
		return
	}
	rec, err := c.workflow.Revoke(ctx, userID, c.invokerID(i), reason)
	if err != nil {
		c.editReply(i, fmt.Sprintf("❌ Deauthorization failed: %v", err))
		return
	}
	c.editReply(i, fmt.Sprintf("🚫 <@%s> has been deauthorized: %s", rec.ID, rec.Reason))
}

func (c *Commands) runApproveAll(ctx context.Context, i *discordgo.InteractionCreate) {
	if !c.deferEphemeral(i) {
		return
	}
	res := c.workflow.ApproveAll(ctx, c.invokerID(i))
	c.editReply(i, fmt.Sprintf("✅ Approved %d of %d pending requests.", res.Succeeded, res.Attempted))
}

func (c *Commands) runRevokeAll(ctx context.Context, i *discordgo.InteractionCreate) {
	if !c.deferEphemeral(i) {
		return
	}
	res := c.workflow.RevokeAll(ctx, c.invokerID(i), "Mass deauthorization by staff")
	c.editReply(i, fmt.Sprintf("🚫 Revoked %d of %d verified users.", res.Succeeded, res.Attempted))
}

func (c *Commands) runSync(ctx context.Context, i *discordgo.InteractionCreate) {
	if !c.deferEphemeral(i) {
		return
	}
	report, err := c.reconciler.Run(ctx)
	if err != nil {
		c.editReply(i, fmt.Sprintf("❌ Synchronization failed: %v", err))
		return
	}
	c.editReply(i, fmt.Sprintf(
		"🔄 Sync complete. Added %d, repaired %d roles, tombstoned %d.",
		report.Added, report.RolesRepaired, report.Tombstoned,
	))
}
