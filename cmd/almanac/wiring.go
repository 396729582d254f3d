package main

import (
	"context"
	"fmt"
	"log"

	"github.com/fortuna/almanac/internal/cache"
	"github.com/fortuna/almanac/internal/checkpoint"
	"github.com/fortuna/almanac/internal/config"
	"github.com/fortuna/almanac/internal/harvest"
	"github.com/fortuna/almanac/internal/ingest/mackolik"
	"github.com/fortuna/almanac/internal/notify"
	"github.com/fortuna/almanac/internal/store"
)

// app owns the connections a command opens and closes them in reverse.
type app struct {
	cfg    *config.Config
	logger *log.Logger

	db      *store.Database
	cache   *cache.RedisCache
	closers []func()
}

func newApp(cfg *config.Config) *app {
	return &app{
		cfg:    cfg,
		logger: log.New(log.Writer(), "["+appName+"] ", log.LstdFlags),
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// database connects and migrates on first use. It returns nil without a DSN.
func (a *app) database(ctx context.Context) (*store.Database, error) {
	if a.db != nil || a.cfg.Database.DSN == "" {
		return a.db, nil
	}

	db, err := store.NewDatabase(a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.onClose(func() { db.Close() })

	if err := db.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Println("✓ Connected to PostgreSQL, migrations applied")

	a.db = db
	return db, nil
}

// redis connects on first use. It returns nil without a URL.
func (a *app) redis() (*cache.RedisCache, error) {
	if a.cache != nil || a.cfg.Redis.URL == "" {
		return a.cache, nil
	}

	rc, err := cache.NewRedisCache(a.cfg.Redis.URL, appName)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.onClose(func() { rc.Close() })
	a.logger.Println("✓ Connected to Redis")

	a.cache = rc
	return rc, nil
}

// output is the primary dataset file.
func (a *app) output() (*store.FileStore, error) {
	return store.NewFileStore(a.cfg.Output)
}

// finalStore is where committed datasets go: the output file, then every
// mirror file and, when enabled, the PostgreSQL table.
func (a *app) finalStore(ctx context.Context) (store.Store, error) {
	primary, err := a.output()
	if err != nil {
		return nil, err
	}

	var mirrors []store.Store
	for _, path := range a.cfg.Mirrors {
		m, err := store.NewFileStore(path)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, m)
	}

	if a.cfg.Database.Mirror {
		db, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		mirrors = append(mirrors, store.NewPostgresStore(db))
	}

	if len(mirrors) == 0 {
		return primary, nil
	}
	return store.NewMulti(primary, mirrors...), nil
}

// checkpoints builds the manager for the configured backend.
func (a *app) checkpoints(final store.Store) (*checkpoint.Manager, error) {
	var sink checkpoint.Sink

	switch a.cfg.Checkpoint.Backend {
	case "redis":
		rc, err := a.redis()
		if err != nil {
			return nil, err
		}
		sink = checkpoint.NewRedisSink(rc, a.cfg.Checkpoint.Name)
	default:
		fs, err := store.NewFileStore(checkpoint.PathFor(a.cfg.Output))
		if err != nil {
			return nil, err
		}
		sink = fs
	}

	return checkpoint.NewManager(sink, final, a.logger), nil
}

// runner opens the browser and wires a harvest runner over the stores.
func (a *app) runner(ctx context.Context) (*harvest.Runner, error) {
	final, err := a.finalStore(ctx)
	if err != nil {
		return nil, err
	}
	manager, err := a.checkpoints(final)
	if err != nil {
		return nil, err
	}

	client, err := mackolik.NewClient(a.cfg.BrowserOptions(), nil)
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	a.onClose(client.Close)

	return harvest.NewRunner(client, a.cfg.Harvest.Leagues, final, manager, a.cfg.HarvestOptions(), a.logger), nil
}

// notifier returns the Telegram reporter when configured, else nil.
func (a *app) notifier() harvest.Reporter {
	if a.cfg.Telegram.Token == "" {
		return nil
	}
	tg, err := notify.NewTelegramReporter(a.cfg.Telegram.Token, a.cfg.Telegram.ChatID, nil)
	if err != nil {
		a.logger.Printf("⚠️  Telegram disabled: %v", err)
		return nil
	}
	a.onClose(tg.Stop)
	return tg
}
