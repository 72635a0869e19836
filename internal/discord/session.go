// Package discord adapts the verification core to Discord: it implements
// the membership gateway and notification sink over the REST API, and wires
// slash commands, buttons and member events into the workflow.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// NewSession builds a bot session with the intents this service needs.
// The caller owns Open/Close.
func NewSession(botToken string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages
	return s, nil
}

// FetchOAuthIdentity resolves the profile of the user who completed the
// OAuth consent flow, using their bearer access token.
func FetchOAuthIdentity(ctx context.Context, accessToken string) (types.Profile, error) {
	s, err := discordgo.New("Bearer " + accessToken)
	if err != nil {
		return types.Profile{}, fmt.Errorf("bearer session: %w", err)
	}

	u, err := s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return types.Profile{}, fmt.Errorf("fetch identity: %w", err)
	}

	p := types.Profile{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		GlobalName:    u.GlobalName,
		Avatar:        u.Avatar,
	}
	if u.Email != "" {
		email := u.Email
		p.Email = &email
	}
	if p.Discriminator == "" {
		p.Discriminator = "0"
	}
	if p.GlobalName == "" {
		p.GlobalName = u.Username
	}
	return p, nil
}

// isNotFound reports whether err is a REST 404. Callers treat a missing
// member or channel as absence, not failure.
func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

func memberFromAPI(m *discordgo.Member) types.Member {
	out := types.Member{RoleIDs: m.Roles}
	if m.User != nil {
		out.ID = m.User.ID
		out.Username = m.User.Username
		out.Discriminator = m.User.Discriminator
		out.GlobalName = m.User.GlobalName
		out.Avatar = m.User.Avatar
		out.Bot = m.User.Bot
	}
	return out
}
