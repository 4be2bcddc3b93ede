// Package sqlxrepos implements the storage repositories on PostgreSQL via sqlx and lib/pq.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

// dbExt is the querying surface shared by *sqlx.DB and *sqlx.Tx.
type dbExt interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// ext resolves the executor for a call: an explicit override (typically a
// transaction) wins over the repository's own handle.
func ext(db *sqlx.DB, exec []core.DBExecutor) dbExt {
	if len(exec) > 0 {
		switch e := exec[0].(type) {
		case dbExt:
			return e
		case *sql.Tx:
			return &sqlx.Tx{Tx: e, Mapper: db.Mapper}
		}
	}
	return db
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

// whereClause joins conditions with AND; empty when no condition is set.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func orderClause(ordering []core.DBOrdering, fallback string) string {
	if body := core.OrderingString(ordering); body != "" {
		return " ORDER BY " + body
	}
	if fallback != "" {
		return " ORDER BY " + fallback
	}
	return ""
}
