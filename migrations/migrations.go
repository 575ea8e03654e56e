// Package migrations holds the SQL schema applied by "cms-api migrate".
package migrations

import (
	"context"
	"database/sql"
	_ "embed"

	"cms-api/pkg/utils"
)

//go:embed schema.sql
var Schema string

// Apply runs the schema in one transaction. Every statement is idempotent.
func Apply(ctx context.Context, db *sql.DB) error {
	return utils.WithTx(ctx, db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, Schema)
		return err
	})
}
