package main

import (
	"io/fs"
	"os"
	"strings"

	"github.com/nimasrn/cashback-ledger/internal/config"
	"github.com/nimasrn/cashback-ledger/migrations"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
)

// main applies the goose migrations to the write database.
//
//	cli --env=.env [--dir=./migrations]
//
// Without --dir the migrations embedded in the binary are used.
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if config.Get().DBDriver != config.DBDriverPostgres {
		logger.Error("migrations only run against postgres, sqlite is auto-migrated on start", "driver", config.Get().DBDriver)
		os.Exit(1)
	}

	var fsys fs.FS = migrations.FS
	dir := "."
	if custom := argValue("--dir="); custom != "" {
		fsys, dir = nil, custom
	}

	if err := pg.Migrate(config.Get().PostgresWrite(), fsys, dir); err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

func getEnvPath() string {
	if path := argValue("--env="); path != "" {
		return path
	}
	if _, err := os.Stat(".env"); err != nil {
		return ""
	}
	return ".env"
}

func argValue(prefix string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			path := strings.TrimPrefix(v, prefix)
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed path", "flag", prefix, "path", path, "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
