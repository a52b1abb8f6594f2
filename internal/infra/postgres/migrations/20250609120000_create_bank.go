package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0001_create_bank.sql
var createBankSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createBankSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS answers;
				DROP TABLE IF EXISTS questions;
				DROP TABLE IF EXISTS collections;
				DROP TABLE IF EXISTS users;
			`)
			return err
		},
	)
}
