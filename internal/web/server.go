// Package web serves the OAuth verification flow and the read-only HTTP
// surface: status pages, registry listings, and Prometheus metrics.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

const stateTTL = 10 * time.Minute

// IdentityFetcher resolves the OAuth user's profile from their access token.
type IdentityFetcher func(ctx context.Context, accessToken string) (types.Profile, error)

// PendingSink is notified when the flow records a new pending request.
type PendingSink interface {
	AnnouncePending(ctx context.Context, rec types.UserRecord) error
	SendDirect(ctx context.Context, userID, text string) error
}

type Config struct {
	Addr         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type Server struct {
	store    *store.Store
	identity IdentityFetcher
	sink     PendingSink
	logger   *log.Logger

	authURL  func(state string) string
	exchange func(ctx context.Context, code string) (accessToken string, err error)
	states   *stateStore

	httpSrv *http.Server
}

// Option adjusts a Server before its routes are built.
type Option func(*Server)

// WithExchange replaces the authorization-code exchange, so tests can run
// the callback flow without a live token endpoint.
func WithExchange(fn func(ctx context.Context, code string) (string, error)) Option {
	return func(s *Server) { s.exchange = fn }
}

func NewServer(cfg Config, st *store.Store, identity IdentityFetcher, sink PendingSink, logger *log.Logger, opts ...Option) *Server {
	oc := newOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI)

	srv := &Server{
		store:    st,
		identity: identity,
		sink:     sink,
		logger:   logger,
		states:   newStateStore(stateTTL),
		authURL:  func(state string) string { return oc.AuthCodeURL(state) },
		exchange: func(ctx context.Context, code string) (string, error) {
			tok, err := oc.Exchange(ctx, code)
			if err != nil {
				return "", err
			}
			return tok.AccessToken, nil
		},
	}
	for _, opt := range opts {
		opt(srv)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	srv.routes(r)

	srv.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageHome))
	})
	r.GET("/done", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageDone))
	})
	r.GET("/auth-fail", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageAuthFail))
	})

	r.GET("/auth", s.handleAuthStart)
	r.GET("/auth/callback", s.handleAuthCallback)

	r.GET("/pending", s.handleListPending)
	r.GET("/verified", s.handleListVerified)

	r.GET("/metrics", gin.WrapH(metricsHandler(s.store)))
}

func (s *Server) handleAuthStart(c *gin.Context) {
	state := s.states.Issue()
	c.Redirect(http.StatusTemporaryRedirect, s.authURL(state))
}

func (s *Server) handleAuthCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || !s.states.Redeem(state) {
		s.logger.Printf("oauth callback rejected: bad state or missing code")
		c.Redirect(http.StatusTemporaryRedirect, "/auth-fail")
		return
	}

	ctx := c.Request.Context()
	accessToken, err := s.exchange(ctx, code)
	if err != nil {
		s.logger.Printf("oauth exchange failed: %v", err)
		c.Redirect(http.StatusTemporaryRedirect, "/auth-fail")
		return
	}

	profile, err := s.identity(ctx, accessToken)
	if err != nil {
		s.logger.Printf("oauth identity lookup failed: %v", err)
		c.Redirect(http.StatusTemporaryRedirect, "/auth-fail")
		return
	}

	if s.store.IsVerified(profile.ID) {
		c.Redirect(http.StatusTemporaryRedirect, "/done")
		return
	}

	rec, err := s.store.UpsertPending(profile, accessToken)
	if err != nil {
		s.logger.Printf("record pending %s failed: %v", profile.ID, err)
		c.Redirect(http.StatusTemporaryRedirect, "/auth-fail")
		return
	}
	s.logger.Printf("pending request recorded for %s (%s)", rec.ID, rec.Username)

	if s.sink != nil {
		if err := s.sink.AnnouncePending(ctx, rec); err != nil {
			s.logger.Printf("announce pending %s failed: %v", rec.ID, err)
		}
		err := s.sink.SendDirect(ctx, rec.ID,
			"Your petition has reached the royal court. You will be notified once staff review it.")
		if err != nil {
			s.logger.Printf("pending dm to %s failed: %v", rec.ID, err)
		}
	}

	c.Redirect(http.StatusTemporaryRedirect, "/done")
}

type userSummary struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"globalName,omitempty"`
}

func (s *Server) handleListPending(c *gin.Context) {
	recs := s.store.PendingRecords()
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "users": summarize(recs)})
}

func (s *Server) handleListVerified(c *gin.Context) {
	recs := s.store.VerifiedRecords()
	c.JSON(http.StatusOK, gin.H{"count": len(recs), "users": summarize(recs)})
}

func summarize(recs []types.UserRecord) []userSummary {
	out := make([]userSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, userSummary{ID: r.ID, Username: r.Username, GlobalName: r.GlobalName})
	}
	return out
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Printf("http server listening on %s", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}
