package discord

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
)

const departReason = "user left the server"

// Events revokes verified users when they leave the guild and greets new
// arrivals with verification instructions.
type Events struct {
	store    *store.Store
	workflow *service.Workflow
	sink     service.NotificationSink
	logger   *log.Logger
	guildID  string
}

func NewEvents(st *store.Store, wf *service.Workflow, sink service.NotificationSink, logger *log.Logger, guildID string) *Events {
	return &Events{store: st, workflow: wf, sink: sink, logger: logger, guildID: guildID}
}

func (e *Events) Register(s *discordgo.Session) {
	s.AddHandler(e.onMemberAdd)
	s.AddHandler(e.onMemberRemove)
}

func (e *Events) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.GuildID != e.guildID || m.User == nil || m.User.Bot {
		return
	}
	ctx := context.Background()
	err := e.sink.SendDirect(ctx, m.User.ID,
		"Welcome to the kingdom! Use /verify in the server to gain access to the royal halls.")
	if err != nil {
		e.logger.Printf("welcome dm to %s failed: %v", m.User.ID, err)
	}
}

func (e *Events) onMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.GuildID != e.guildID || m.User == nil {
		return
	}
	e.HandleDeparture(context.Background(), m.User.ID)
}

// HandleDeparture deauthorizes a verified user who left the guild and posts
// a departure notice on top of the revocation audit.  The member is already
// gone, so the role removal inside Revoke fails harmlessly and the registry
// mutation is what matters.
func (e *Events) HandleDeparture(ctx context.Context, userID string) {
	if !e.store.IsVerified(userID) {
		return
	}
	if _, err := e.workflow.Revoke(ctx, userID, "system", departReason); err != nil {
		e.logger.Printf("deauthorize departed %s failed: %v", userID, err)
		return
	}
	ev := service.AuditEvent{
		Kind:   service.AuditDeparted,
		UserID: userID,
		Reason: departReason,
		At:     time.Now().UTC(),
	}
	if err := e.sink.SendAudit(ctx, ev); err != nil {
		e.logger.Printf("departure notice for %s failed: %v", userID, err)
	}
	e.logger.Printf("deauthorized %s: left the server", userID)
}
