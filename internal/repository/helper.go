package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the storage format of calendar dates.
	DateLayout = "2006-01-02"
	// TimestampLayout is the storage format of instants. It is fixed width so
	// lexical order in SQL matches chronological order.
	TimestampLayout = "2006-01-02 15:04:05.000000000"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ParseTime parses a date string in "2006-01-02", the timestamp storage layout, or RFC3339 format.
func ParseTime(str string) (time.Time, error) {
	for _, layout := range []string{DateLayout, TimestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse date: %q", str)
}

// FormatDate renders a date in the storage format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatTimestamp renders an instant in the storage format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// parseNullTime converts a nullable column into an optional time.
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// placeholders returns "?, ?, ..." for n arguments together with the args slice.
func placeholders(ids []string) (string, []any) {
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ","), args
}
