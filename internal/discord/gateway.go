package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// Gateway implements service.MembershipGateway over the Discord REST API
// for a single guild.
type Gateway struct {
	s       *discordgo.Session
	guildID string
}

func NewGateway(s *discordgo.Session, guildID string) *Gateway {
	return &Gateway{s: s, guildID: guildID}
}

func (g *Gateway) FetchMember(ctx context.Context, userID string) (types.Member, bool, error) {
	m, err := g.s.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return types.Member{}, false, nil
		}
		return types.Member{}, false, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return memberFromAPI(m), true, nil
}

// FetchAllMembers pages through the full guild member list.  The result is
// one coherent snapshot including each member's role set.
func (g *Gateway) FetchAllMembers(ctx context.Context) ([]types.Member, error) {
	const pageSize = 1000

	var out []types.Member
	after := ""
	for {
		page, err := g.s.GuildMembers(g.guildID, after, pageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members after %q: %w", after, err)
		}
		for _, m := range page {
			out = append(out, memberFromAPI(m))
		}
		if len(page) < pageSize {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (g *Gateway) MemberHasRole(ctx context.Context, userID, roleID string) (bool, error) {
	m, found, err := g.FetchMember(ctx, userID)
	if err != nil || !found {
		return false, err
	}
	return m.HasRole(roleID), nil
}

func (g *Gateway) AddRole(ctx context.Context, userID, roleID string) error {
	if err := g.s.GuildMemberRoleAdd(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role to %s: %w", userID, err)
	}
	return nil
}

func (g *Gateway) RemoveRole(ctx context.Context, userID, roleID string) error {
	if err := g.s.GuildMemberRoleRemove(g.guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role from %s: %w", userID, err)
	}
	return nil
}

// JoinViaToken adds the user to the guild with their OAuth access token,
// then fetches the resulting member.  Discord returns 204 when the user was
// already a member, so the follow-up fetch covers both cases.
func (g *Gateway) JoinViaToken(ctx context.Context, userID, accessToken string) (types.Member, error) {
	err := g.s.GuildMemberAdd(g.guildID, userID, &discordgo.GuildMemberAddParams{
		AccessToken: accessToken,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return types.Member{}, fmt.Errorf("token join for %s: %w", userID, err)
	}

	m, found, err := g.FetchMember(ctx, userID)
	if err != nil {
		return types.Member{}, err
	}
	if !found {
		return types.Member{}, fmt.Errorf("token join for %s: member not visible after join", userID)
	}
	return m, nil
}
