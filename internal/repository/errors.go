// Package repository holds the MySQL access layer.  Errors shared across
// repositories are re-exported from apperr so that handlers can branch on
// them with errors.Is no matter which layer produced them.  For example,
// ErrForbidden indicates that the caller may not touch a row owned by
// someone else, while ErrConflict signals that a booking would overlap an
// active one.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/room-booking/internal/apperr"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into HTTP 403.
var ErrForbidden = apperr.ErrForbidden

// ErrConflict is returned when the requested dates overlap an active
// booking of the same room.  Handlers translate it into HTTP 409.
var ErrConflict = apperr.ErrConflict

// ErrNotFound is returned for unknown ids.
var ErrNotFound = apperr.ErrNotFound

// ErrReference is returned when a row points at a profile that does not
// exist, such as an unknown monthly tenant.
var ErrReference = apperr.ErrReference

// ErrValidation is returned when input reaches a repository malformed.
var ErrValidation = apperr.ErrValidation

// ErrEmailExists is returned by profile creation on a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate reports a MySQL 1062 duplicate-key error.
func isDuplicate(err error) bool { return mysqlErrno(err) == 1062 }

// isForeignKey reports a MySQL 1452 foreign-key violation.
func isForeignKey(err error) bool { return mysqlErrno(err) == 1452 }

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
