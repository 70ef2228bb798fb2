package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethanbaker/clubsync/internal/api"
	"github.com/ethanbaker/clubsync/internal/drift"
	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/platforms/chat"
	"github.com/ethanbaker/clubsync/internal/platforms/mailer"
	"github.com/ethanbaker/clubsync/internal/platforms/patronage"
	"github.com/ethanbaker/clubsync/internal/platforms/ticketing"
	"github.com/ethanbaker/clubsync/internal/queue"
	"github.com/ethanbaker/clubsync/internal/scheduler"
	"github.com/ethanbaker/clubsync/internal/stores"
	"github.com/ethanbaker/clubsync/internal/stores/attendance"
	"github.com/ethanbaker/clubsync/internal/stores/integration"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/ethanbaker/clubsync/pkg/ratelimit"
	"github.com/ethanbaker/clubsync/pkg/signature"
	"github.com/ethanbaker/clubsync/pkg/utils"
	"github.com/go-sql-driver/mysql"

	health_module "github.com/ethanbaker/clubsync/internal/api/modules/health"
	sync_module "github.com/ethanbaker/clubsync/internal/api/modules/sync"
	webhook_module "github.com/ethanbaker/clubsync/internal/api/modules/webhook"
)

// entityStores bundles the per-entity stores behind their interfaces
type entityStores struct {
	members      member.Store
	integrations integration.Store
	ops          syncop.Store
	attendances  attendance.Store
}

// Start the sync engine
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// Initialize stores
	st, err := openStores(cfg)
	if err != nil {
		log.Fatalf("[MAIN]: Failed to initialize stores: %v", err)
	}

	// Shared platform plumbing
	resolver := platforms.NewResolver(st.members, st.integrations)
	limiter := ratelimit.NewLimiter(cfg)

	// Build an adapter for each configured platform
	adapters, chatSession, err := buildAdapters(cfg, resolver, limiter, st)
	if err != nil {
		log.Fatalf("[MAIN]: Failed to initialize platform adapters: %v", err)
	}
	if len(adapters) == 0 {
		log.Println("[MAIN]: Warning, no platform credentials configured, running with no adapters")
	}
	registry := platforms.NewRegistry(adapters...)

	// Webhook processing pipeline
	q := queue.New(
		cfg.GetIntWithDefault("WEBHOOK_QUEUE_SIZE", 256),
		webhook_module.Processor(registry, st.ops),
	)
	q.Start(cfg.GetIntWithDefault("WEBHOOK_WORKERS", 4))

	// Recurring jobs
	runner := scheduler.NewRunner(registry, st.ops)
	detector := drift.NewDetector(st.integrations, registry)
	sched := scheduler.NewScheduler(cfg, runner, detector, st.ops)
	if err := sched.Start(); err != nil {
		log.Fatalf("[MAIN]: Failed to start scheduler: %v", err)
	}

	// Wire API modules
	webhook_module.Init(signature.NewRegistry(cfg), q, st.ops)
	sync_module.Init(runner, detector, st.ops)
	health_module.Init(q)

	// Graceful drain on shutdown signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		log.Println("[MAIN]: Shutting down")
		sched.Stop()
		q.Stop()
		if chatSession != nil {
			if err := chatSession.Close(); err != nil {
				log.Printf("[MAIN]: Failed to close chat session: %v", err)
			}
		}
		os.Exit(0)
	}()

	// Serve until killed
	api.Start(cfg)
}

// openStores connects every entity store, falling back to in-memory stores
// when MYSQL_DATABASE is unset
func openStores(cfg *utils.Config) (*entityStores, error) {
	dbConfig := mysql.Config{
		User:      cfg.Get("MYSQL_USER"),
		Passwd:    cfg.Get("MYSQL_ROOT_PASSWORD"),
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%s", cfg.Get("MYSQL_HOST"), cfg.Get("MYSQL_PORT")),
		DBName:    cfg.Get("MYSQL_DATABASE"),
		ParseTime: true,
	}

	if dbConfig.DBName == "" {
		// Fallback to in-memory stores
		log.Println("[MAIN]: Warning, MYSQL_DATABASE not set, using in-memory stores (data will not persist across restarts)")
		return &entityStores{
			members:      member.NewInMemoryStore(),
			integrations: integration.NewInMemoryStore(),
			ops:          syncop.NewInMemoryStore(),
			attendances:  attendance.NewInMemoryStore(),
		}, nil
	}

	db, err := stores.Open(dbConfig.FormatDSN())
	if err != nil {
		return nil, err
	}

	st := &entityStores{}
	if st.members, err = member.NewMySqlStore(db); err != nil {
		return nil, err
	}
	if st.integrations, err = integration.NewMySqlStore(db); err != nil {
		return nil, err
	}
	if st.ops, err = syncop.NewMySqlStore(db); err != nil {
		return nil, err
	}
	if st.attendances, err = attendance.NewMySqlStore(db); err != nil {
		return nil, err
	}

	return st, nil
}

// buildAdapters creates one adapter per platform with credentials in the
// config. Unconfigured platforms are skipped, so a deployment can sync any
// subset of its external systems.
func buildAdapters(cfg *utils.Config, resolver *platforms.Resolver, limiter *ratelimit.Limiter, st *entityStores) ([]platforms.Adapter, *chat.Session, error) {
	var adapters []platforms.Adapter

	if token := cfg.Get("TICKETING_API_TOKEN"); token != "" {
		client := ticketing.NewClient(cfg.GetWithDefault("TICKETING_API_URL", "https://www.eventbriteapi.com"), token)
		adapters = append(adapters, ticketing.NewAdapter(client, resolver, limiter, st.attendances))
	}

	if token := cfg.Get("PATRONAGE_ACCESS_TOKEN"); token != "" {
		client := patronage.NewClient(context.Background(), cfg.GetWithDefault("PATRONAGE_API_URL", "https://www.patreon.com"), token)
		adapters = append(adapters, patronage.NewAdapter(client, resolver, limiter, cfg.Get("PATRONAGE_CAMPAIGN_ID")))
	}

	if key := cfg.Get("MAILER_API_KEY"); key != "" {
		client := mailer.NewClient(cfg.GetWithDefault("MAILER_API_URL", "https://us1.api.mailchimp.com"), key)
		adapters = append(adapters, mailer.NewAdapter(client, resolver, limiter, cfg.Get("MAILER_LIST_ID")))
	}

	var session *chat.Session
	if token := cfg.Get("CHAT_BOT_TOKEN"); token != "" {
		var err error
		if session, err = chat.NewSession(token); err != nil {
			return nil, nil, err
		}
		if err = session.Connect(); err != nil {
			return nil, nil, err
		}

		adapters = append(adapters, chat.NewAdapter(session.API(), resolver, limiter, cfg.Get("CHAT_GUILD_ID")))
	}

	return adapters, session, nil
}
