package pg

import (
	"io/fs"

	_ "github.com/lib/pq"
	"github.com/nimasrn/cashback-ledger/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies goose migrations from dir. When fsys is nil dir is read
// from the local filesystem, otherwise from fsys (usually an embed.FS).
func Migrate(cfg Config, fsys fs.FS, dir string) error {
	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = goose.Up(db, dir); err != nil {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("migrations applied", "version", version)
	}
	return nil
}
