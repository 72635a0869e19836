package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/config"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/db"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/discord"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/service"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store/memory"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/store/sqlite"
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/web"
)

func main() {
	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "mboauth-server ", log.LstdFlags|log.LUTC)

	if cfg.BotToken == "" || cfg.GuildID == "" {
		logger.Fatal("DISCORD_BOT_TOKEN and GUILD_ID are required")
	}

	// Registry (JSON document store)
	st := store.New(store.NewFilePersister(cfg.DBPath), logger)
	if err := st.Load(); err != nil {
		logger.Printf("registry load failed, starting empty: %v", err)
	}
	pending, verified, revoked := st.Counts()
	logger.Printf("registry loaded: %d pending, %d verified, %d revoked", pending, verified, revoked)

	// Lifecycle event log (sqlite, with in-memory fallback)
	var events store.EventStore
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 10*time.Second)
	sqlDB, err := db.Open(openCtx, db.Config{Path: cfg.EventsDBPath})
	cancelOpen()
	if err != nil {
		logger.Printf("event log unavailable, using in-memory log: %v", err)
		events = memory.NewEventStore()
	} else {
		defer sqlDB.Close()
		writer := db.NewWorker(sqlDB)
		defer writer.Close()
		events = sqlite.NewEventStore(sqlDB, writer)
	}

	// Discord session
	session, err := discord.NewSession(cfg.BotToken)
	if err != nil {
		logger.Fatalf("discord session: %v", err)
	}

	gateway := discord.NewGateway(session, cfg.GuildID)
	notifier := discord.NewNotifier(session, discord.NotifierConfig{
		ApprovalChannelID:  cfg.ApprovalChannelID,
		LogChannelID:       cfg.LogChannelID,
		HeartbeatChannelID: cfg.HeartbeatChannelID,
		EmbedColor:         cfg.EmbedColor,
		EmbedFooter:        cfg.EmbedFooter,
	})

	workflow := service.NewWorkflow(st, gateway, notifier, events, service.WorkflowConfig{
		VerifiedRoleID: cfg.VerifiedRoleID,
		GatewayTimeout: cfg.GatewayTimeout,
	}, logger)

	reconciler := service.NewReconciler(st, gateway, notifier, events, service.ReconcilerConfig{
		VerifiedRoleID: cfg.VerifiedRoleID,
		GatewayTimeout: cfg.GatewayTimeout,
	}, logger)

	commands := discord.NewCommands(session, st, workflow, reconciler, logger,
		cfg.GuildID, cfg.AdminRoleID, cfg.ServerURL)
	memberEvents := discord.NewEvents(st, workflow, notifier, logger, cfg.GuildID)
	memberEvents.Register(session)

	if err := session.Open(); err != nil {
		logger.Fatalf("discord gateway connect: %v", err)
	}
	defer session.Close()
	logger.Printf("connected to discord as %s", session.State.User.Username)

	if err := commands.Register(session.State.User.ID); err != nil {
		logger.Fatalf("register commands: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fresh verification prompt on every boot, so a stale button never
	// greets new members.
	if err := notifier.RefreshVerificationPrompt(ctx, cfg.VerificationChannelID, session.State.User.ID); err != nil {
		logger.Printf("verification prompt refresh failed: %v", err)
	}

	// Startup reconciliation, then the periodic loop if configured.
	if report, err := reconciler.Run(ctx); err != nil {
		logger.Printf("startup sync failed: %v", err)
	} else {
		logger.Printf("startup sync: added %d, repaired %d, tombstoned %d",
			report.Added, report.RolesRepaired, report.Tombstoned)
	}
	reconciler.StartPeriodic(ctx, cfg.SyncInterval)
	defer reconciler.Stop()

	heartbeat := service.NewHeartbeatReporter(st, notifier, cfg.HeartbeatInterval, logger,
		service.WithLatencyProbe(session.HeartbeatLatency))
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	// Web server (OAuth flow, registry listings, metrics)
	srv := web.NewServer(web.Config{
		Addr:         cfg.HTTPAddr,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
	}, st, discord.FetchOAuthIdentity, notifier, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Printf("http server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if err := st.Persist(); err != nil {
		logger.Printf("final persist failed: %v", err)
	}
}
