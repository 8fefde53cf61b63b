package bootstrap

import (
	"context"
	"fmt"

	"github.com/NordCoder/Uptime/internal/compaction"
	config "github.com/NordCoder/Uptime/internal/config/uptime"
	"github.com/NordCoder/Uptime/internal/obs"
	"github.com/NordCoder/Uptime/internal/repository/store"
	"go.uber.org/zap"
)

// Env is everything a binary needs after startup: validated config, logger,
// tracing and a migrated store.
type Env struct {
	Cfg   *config.Config
	Log   *zap.Logger
	OTel  *obs.OTel
	Store *store.Store
}

// Init loads configuration, opens the store, brings its schema up to date
// and folds a legacy check log into runs. Any failure is fatal for the
// caller; resources acquired so far are released before returning.
func Init(ctx context.Context, app string) (*Env, error) {
	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return InitWith(ctx, app, cfg)
}

func InitWith(ctx context.Context, app string, cfg *config.Config) (_ *Env, err error) {
	log, err := obs.NewLogger(cfg.AsLoggerConfig(app))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	log.Info("starting up", zap.String("app", app), zap.Int("websites", len(cfg.Websites)))

	oc := cfg.OTEL.AsOTELConfig()
	oc.Version, oc.Env = cfg.App.Version, cfg.App.Env
	tel, err := obs.SetupOTel(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("otel init: %w", err)
	}

	log.Info("opening db", zap.String("kind", string(store.KindOf(cfg.DBURL))))
	st, err := store.Open(ctx, cfg.DBURL, cfg.DB, log)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err != nil {
			st.Close()
			_ = tel.Shutdown(ctx)
		}
	}()

	log.Info("running schema migrations")
	if err = st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("schema migrations: %w", err)
	}

	job := &compaction.MigrationJob{
		Log:      log.Named("migrate"),
		Legacy:   st.Legacy,
		Runs:     st.Runs,
		Tx:       st.Tx,
		Interval: cfg.Interval(),
		Policy:   cfg.Policy(),
	}
	if err = job.Run(ctx); err != nil {
		return nil, err
	}

	log.Info("started up")
	return &Env{Cfg: cfg, Log: log, OTel: tel, Store: st}, nil
}

func (e *Env) Close(ctx context.Context) {
	e.Store.Close()
	if err := e.OTel.Shutdown(ctx); err != nil {
		e.Log.Warn("otel shutdown", zap.Error(err))
	}
	_ = e.Log.Sync()
}
