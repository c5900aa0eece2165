// Package sqlxrepos implements the repositories on Postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/user"
)

const uniqueViolation = "23505"

// constraintFields maps unique constraints to the request field they protect.
var constraintFields = map[string]struct{ field, msg string }{
	"user_username_key":       {"username", user.ErrUsernameExists.Error()},
	"user_email_key":          {"email", user.ErrEmailExists.Error()},
	"student_profile_usn_key": {"usn", academic.ErrUSNExists.Error()},
}

// inTx runs fn in a transaction, committed only if fn succeeds.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError(err, nil, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return dbError(tx.Commit(), nil, "committing transaction")
}

// dbError maps driver errors to core errors: no rows to notFound, unique violations to core.ConflictError
// and a lost connection to a shutdown error.
func dbError(err error, notFound error, msg string) error {
	if err == nil {
		return nil
	}
	if connectionLost(err) {
		return core.NewShutdownError(msg + ": database connection lost: " + err.Error())
	}
	if errors.Cause(err) == sql.ErrNoRows && notFound != nil {
		return notFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		if cf, ok := constraintFields[pqErr.Constraint]; ok {
			return core.NewConflictError(cf.field, cf.msg)
		}
	}
	return errors.Wrap(err, msg)
}

func connectionLost(err error) bool {
	switch cause := errors.Cause(err).(type) {
	case *net.OpError:
		return true
	default:
		return cause == driver.ErrBadConn || cause == sql.ErrConnDone
	}
}

func notExcluded(excludedIDs []string) pq.StringArray {
	if excludedIDs == nil {
		return pq.StringArray{}
	}
	return excludedIDs
}
