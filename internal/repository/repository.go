// Package repository holds the Postgres stores behind the billing workers.
package repository

import (
	"errors"

	"github.com/Masterminds/squirrel"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
