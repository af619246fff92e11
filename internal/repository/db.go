package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conn returns tx when the caller is inside a transaction, db otherwise.
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate adds a row lock. Dialects without row locks (sqlite) drop the
// clause and rely on their single writer.
func forUpdate(q *gorm.DB, lock bool) *gorm.DB {
	if !lock {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
