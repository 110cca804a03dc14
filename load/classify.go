package load

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Zacharyr41/vcfload/copyio"
)

// permanentError marks a BatchSink failure as non-retryable: spec.md
// §4.8(5)/§7 classify EncodingError and PermanentDbError (schema
// mismatch, constraint violation, bad auth) as fatal, distinct from a
// TransientDbError, which alone is worth a bounded retry.
type permanentError struct {
	cause error
}

func (e *permanentError) Error() string { return e.cause.Error() }
func (e *permanentError) Unwrap() error { return e.cause }

// permanentSQLStateClasses are the Postgres SQLSTATE error-code classes
// (the first two digits) that indicate a permanent failure no retry can
// fix: integrity constraint violations (23), invalid authorization (28),
// syntax/access-rule violations including undefined table/column and
// insufficient privilege (42), and invalid schema/catalog names (3D, 3F).
var permanentSQLStateClasses = map[string]bool{
	"23": true,
	"28": true,
	"42": true,
	"3D": true,
	"3F": true,
}

// classifyCommitErr wraps err in permanentError when it is an
// EncodingError (copyio.ErrEncoding) or a Postgres error whose SQLSTATE
// falls in one of permanentSQLStateClasses; all other errors (connection
// resets, serialization failures, query cancellation, and the like) are
// left as-is and treated as transient by commitHandle's retry loop.
func classifyCommitErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, copyio.ErrEncoding) {
		return &permanentError{cause: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && permanentSQLStateClasses[strings.ToUpper(pgErr.Code[:2])] {
		return &permanentError{cause: err}
	}
	return err
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
