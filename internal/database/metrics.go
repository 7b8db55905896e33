package database

import (
	"context"
	"sync/atomic"

	"gorm.io/gorm"
)

// Per-request query counting. The performance middleware stashes a counter
// in the request context; callbacks registered here increment it after every
// statement. Handlers opt in by running queries through
// GetDB().WithContext(c.Request.Context()).

type queryCounterKey struct{}

// ContextWithQueryCounter returns ctx carrying a fresh statement counter,
// plus the counter itself for the caller to read afterwards.
func ContextWithQueryCounter(ctx context.Context) (context.Context, *atomic.Int64) {
	counter := &atomic.Int64{}
	return context.WithValue(ctx, queryCounterKey{}, counter), counter
}

func countStatement(db *gorm.DB) {
	if db.Statement == nil {
		return
	}
	if counter, ok := db.Statement.Context.Value(queryCounterKey{}).(*atomic.Int64); ok {
		counter.Add(1)
	}
}

// RegisterQueryCounter installs the counting callback after every statement
// type gorm executes.
func RegisterQueryCounter(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("shortlink:count_create", countStatement); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("shortlink:count_query", countStatement); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("shortlink:count_update", countStatement); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("shortlink:count_delete", countStatement); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("shortlink:count_row", countStatement); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register("shortlink:count_raw", countStatement); err != nil {
		return err
	}
	return nil
}
