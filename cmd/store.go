package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/runlog"
)

func initRunStore(ctx context.Context) (runlog.Store, error) {
	var (
		st  runlog.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cepsync.db"
		}
		st, err = runlog.NewSQLite(dsn)
	case "postgres":
		st, err = runlog.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
