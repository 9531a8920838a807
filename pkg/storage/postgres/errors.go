package postgres

import (
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// SQLSTATE codes the repositories branch on
const (
	UniqueViolation     pq.ErrorCode = "23505"
	CheckViolation      pq.ErrorCode = "23514"
	ForeignKeyViolation pq.ErrorCode = "23503"
)

// ErrorCode returns the SQLSTATE of a Postgres error, or "" for anything else
func ErrorCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// Constraint returns the violated constraint name, if any
func Constraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// IsUniqueViolation reports a duplicate key error
func IsUniqueViolation(err error) bool { return ErrorCode(err) == UniqueViolation }

// IsCheckViolation reports a CHECK constraint error
func IsCheckViolation(err error) bool { return ErrorCode(err) == CheckViolation }

// IsForeignKeyViolation reports a foreign key error
func IsForeignKeyViolation(err error) bool { return ErrorCode(err) == ForeignKeyViolation }
