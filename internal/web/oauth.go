package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// discordEndpoint is the OAuth2 authorization endpoint pair for Discord.
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// oauthScopes cover identity, email, and the guilds.join grant used to pull
// approved users into the guild.
var oauthScopes = []string{"identify", "email", "guilds.join"}

func newOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       oauthScopes,
		Endpoint:     discordEndpoint,
	}
}

// stateStore issues and redeems single-use OAuth state tokens.  A token is
// valid for one redemption within its TTL; anything else is a forged or
// replayed callback.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		states: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (ss *stateStore) Issue() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	now := ss.now()
	for s, exp := range ss.states {
		if now.After(exp) {
			delete(ss.states, s)
		}
	}

	s := uuid.NewString()
	ss.states[s] = now.Add(ss.ttl)
	return s
}

func (ss *stateStore) Redeem(s string) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	exp, ok := ss.states[s]
	if !ok {
		return false
	}
	delete(ss.states, s)
	return !ss.now().After(exp)
}
