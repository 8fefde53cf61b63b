package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/NordCoder/Uptime/internal/domain/legacy"
	"github.com/NordCoder/Uptime/internal/domain/run"
	"github.com/NordCoder/Uptime/internal/repository/memory"
	pg "github.com/NordCoder/Uptime/internal/repository/postgres"
	"github.com/NordCoder/Uptime/internal/repository/sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSQLite   Kind = "sqlite"
	KindMemory   Kind = "memory"
)

// KindOf picks a backend from a database URL. Anything that is not a
// postgres or memory URL is treated as a SQLite file path.
func KindOf(url string) Kind {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return KindPostgres
	case strings.HasPrefix(url, "memory://"):
		return KindMemory
	default:
		return KindSQLite
	}
}

// Store bundles the storage ports for one backend.
type Store struct {
	Kind   Kind
	Runs   run.Repo
	Legacy legacy.Repo
	Tx     run.Transactor

	url    string
	log    *zap.Logger
	ping   func(context.Context) error
	closer func()
	sqlite *sqlite.DB
}

func Open(ctx context.Context, url string, pgCfg pg.Config, log *zap.Logger) (*Store, error) {
	s := &Store{Kind: KindOf(url), url: url, log: log}

	switch s.Kind {
	case KindPostgres:
		pgCfg.URL = url
		db, err := pg.New(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		s.Runs = pg.NewRunRepo(db)
		s.Legacy = pg.NewLegacyRepo(db)
		s.Tx = pg.NewTransactor(db, log)
		s.ping = db.Ping
		s.closer = db.Close
	case KindSQLite:
		db, err := sqlite.New(ctx, url, pgCfg.QueryTimeout)
		if err != nil {
			return nil, err
		}
		s.Runs = sqlite.NewRunRepo(db)
		s.Legacy = sqlite.NewLegacyRepo(db)
		s.Tx = sqlite.NewTransactor(db, log)
		s.ping = db.Ping
		s.closer = func() { _ = db.Close() }
		s.sqlite = db
	case KindMemory:
		m := memory.New()
		s.Runs = m
		s.Legacy = m.Legacy()
		s.Tx = m
		s.ping = func(context.Context) error { return nil }
		s.closer = func() {}
	}
	return s, nil
}

// Migrate brings the schema up to date. It is idempotent and must run once
// during bootstrap, before the probe loop or the server start.
func (s *Store) Migrate(ctx context.Context) error {
	var (
		db      *sql.DB
		dialect string
		dir     string
	)
	switch s.Kind {
	case KindMemory:
		return nil
	case KindPostgres:
		pdb, err := goose.OpenDBWithDriver("pgx", s.url)
		if err != nil {
			return fmt.Errorf("open db for migrations: %w", err)
		}
		defer pdb.Close()
		db, dialect, dir = pdb, "postgres", "migrations/postgres"
	case KindSQLite:
		db, dialect, dir = s.sqlite.SQL, "sqlite3", "migrations/sqlite"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.log.Sugar()})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.ping(ctx) }

func (s *Store) Close() { s.closer() }

type gooseLogger struct{ l *zap.SugaredLogger }

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
