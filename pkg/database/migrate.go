package database

import (
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/noah-isme/academic-records-api/migrations"
)

var gooseUp = goose.Up // mockable

// Migrate applies every pending embedded migration.
func Migrate(db *sqlx.DB) error {
	return migrate(db, migrations.FS)
}

func migrate(db *sqlx.DB, source fs.FS) error {
	goose.SetBaseFS(source)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUp(db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
