package archive

import (
	"context"
	"fmt"

	"feeledger/internal/storage"
)

// SQLiteTx runs restores inside a single repository transaction.
func SQLiteTx(repo *storage.SQLiteRepository) Transactor {
	return TxFunc(func(ctx context.Context, fn func(w Writer) error) error {
		return repo.WithTx(ctx, func(q *storage.Queries) error {
			return fn(sqliteWriter{q})
		})
	})
}

// storageTables maps the tables restored rows may reference to their SQL tables.
var storageTables = map[Table]string{
	TableGroups:           "member_groups",
	TableMembers:          "members",
	TableUsers:            "users",
	TableFeeStructures:    "structures",
	TableSalaryStructures: "structures",
	TableAttendance:       "attendance",
}

type sqliteWriter struct {
	*storage.Queries
}

func (w sqliteWriter) OwnedIDs(ctx context.Context, tenantID string, t Table) (map[string]bool, error) {
	name, ok := storageTables[t]
	if !ok {
		return nil, fmt.Errorf("table %s cannot be referenced", t)
	}
	return w.Queries.OwnedIDs(ctx, tenantID, name)
}
