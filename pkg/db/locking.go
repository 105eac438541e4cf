package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row-level FOR UPDATE lock on dialects that support
// it. SQLite serialises writers on its own and rejects the clause, so
// it is skipped there; the single-writer model gives the same
// exclusion.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
