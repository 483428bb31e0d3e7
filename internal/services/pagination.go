package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Cursor-based pagination: pages resume strictly after the row identified by
// the cursor id rather than by offset count, so forward paging stays stable
// under concurrent inserts.

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// clampTake bounds a requested page size to [1, maxPageSize], defaulting when unset.
func clampTake(take int) int {
	if take <= 0 {
		return defaultPageSize
	}
	if take > maxPageSize {
		return maxPageSize
	}
	return take
}

// cursorAnchor is the sort key of the row a page resumes after.
type cursorAnchor struct {
	ID     string
	SortAt time.Time
	found  bool
}

// resolveCursor loads the sort key of the cursor row. A missing row is not an
// error: the pager degrades to keyset-on-id so paging never silently restarts.
func resolveCursor(db *gorm.DB, table, column, cursorID string) (cursorAnchor, error) {
	anchor := cursorAnchor{ID: cursorID}
	cursorID = strings.TrimSpace(cursorID)
	if cursorID == "" {
		return anchor, nil
	}

	row := db.Table(table).Select(column).Where("id = ?", cursorID).Row()
	var sortAt time.Time
	if err := row.Scan(&sortAt); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || strings.Contains(err.Error(), "no rows") {
			return anchor, nil
		}
		return anchor, fmt.Errorf("pagination: resolve cursor: %w", err)
	}

	anchor.SortAt = sortAt
	anchor.found = true
	return anchor, nil
}

// applyCursor constrains the query to rows strictly after the anchor in the
// chosen order. Ties on the sort column break on id so the order is total.
func applyCursor(query *gorm.DB, table, column string, anchor cursorAnchor, ascending bool) *gorm.DB {
	if strings.TrimSpace(anchor.ID) == "" {
		return query
	}

	qualified := table + "." + column
	qualifiedID := table + ".id"

	if !anchor.found {
		if ascending {
			return query.Where(qualifiedID+" > ?", anchor.ID)
		}
		return query.Where(qualifiedID+" < ?", anchor.ID)
	}

	if ascending {
		return query.Where(
			"("+qualified+" > ?) OR ("+qualified+" = ? AND "+qualifiedID+" > ?)",
			anchor.SortAt, anchor.SortAt, anchor.ID,
		)
	}
	return query.Where(
		"("+qualified+" < ?) OR ("+qualified+" = ? AND "+qualifiedID+" < ?)",
		anchor.SortAt, anchor.SortAt, anchor.ID,
	)
}

// orderClause renders the total ordering used by the pager.
func orderClause(table, column string, ascending bool) string {
	dir := "DESC"
	if ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("%s.%s %s, %s.id %s", table, column, dir, table, dir)
}

// nextCursor computes the resume token: the id of the last row when the page
// came back full, empty otherwise.
func nextCursor[T any](rows []T, take int, id func(T) string) string {
	if len(rows) < take || len(rows) == 0 {
		return ""
	}
	return id(rows[len(rows)-1])
}
