// Package attestordb holds all the migrations for the attestor database
package attestordb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the attestor database
var Migrations = migrate.NewMigrations()
