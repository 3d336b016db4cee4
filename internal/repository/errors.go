// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// registration service and the HTTP handlers to distinguish between
// different failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist. Handlers
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be performed because the
// row is in the wrong state, such as redeeming a booking that was never
// verified. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when an agent with the same email is already
// registered, either detected up front or by the unique index on insert.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers inspected by the repositories.
const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
	errRowIsReferenced = 1451
)

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicateKey reports whether err is a unique-index violation.
func isDuplicateKey(err error) bool {
	return mysqlErrorNumber(err) == errDuplicateEntry
}

// IsForeignKeyViolation reports whether err is a foreign key failure, either
// a missing parent row on insert or a referenced row on delete.
func IsForeignKeyViolation(err error) bool {
	switch mysqlErrorNumber(err) {
	case errNoReferencedRow, errRowIsReferenced:
		return true
	}
	return false
}

// escapeLike escapes the LIKE metacharacters in user input so that a zip
// such as "10_0" is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
