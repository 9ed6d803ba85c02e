package kv

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mind-engage/quizpractice/internal/db"
)

// Options selects and configures a backend.
type Options struct {
	Driver     string // memory|fs|sqlite|postgres|mysql|redis|minio
	DSN        string
	BasePath   string
	QuotaBytes int64
	Redis      RedisOptions
	Object     ObjectOptions
}

// Backend is an opened store plus the resources it owns. SQL is non-nil for
// the database/sql drivers so other tables (the journal) can share it.
type Backend struct {
	Store Store
	SQL   *sql.DB
	close func() error
}

func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

func Open(ctx context.Context, o Options) (*Backend, error) {
	switch o.Driver {
	case "", "memory":
		return &Backend{Store: NewMemory(WithQuota(o.QuotaBytes))}, nil
	case "fs":
		s, err := NewFSStore(o.BasePath)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s}, nil
	case string(db.DriverSQLite), string(db.DriverPostgres):
		dbh, err := db.Open(ctx, db.Driver(o.Driver), o.DSN)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: NewSQLStore(dbh, o.QuotaBytes), SQL: dbh, close: dbh.Close}, nil
	case string(db.DriverMySQL):
		gdb, err := db.OpenGorm(ctx, o.DSN)
		if err != nil {
			return nil, err
		}
		s, err := NewGormStore(gdb)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s, close: sqlDB.Close}, nil
	case "redis":
		s, err := NewRedisStore(ctx, o.Redis)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s, close: s.Close}, nil
	case "minio":
		s, err := NewObjectStore(ctx, o.Object)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: s}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", o.Driver)
	}
}
