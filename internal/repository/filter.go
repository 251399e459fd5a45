package repository

import (
	"fmt"
	"strings"

	"picturehub/internal/domain"
)

// filter accumulates WHERE clauses with positional Postgres arguments.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) add(clause string, args ...any) {
	for _, arg := range args {
		f.args = append(f.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(f.args)), 1)
	}
	f.clauses = append(f.clauses, clause)
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func (f *filter) page(limit, offset int) (string, []any) {
	args := append(append([]any{}, f.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(f.args)+1, len(f.args)+2), args
}

func orderBy(field, order string, allowed map[string]string, fallback string) string {
	column, ok := allowed[field]
	if !ok {
		return " ORDER BY " + fallback
	}
	dir := "DESC"
	if order == domain.SortAscend {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id DESC", column, dir)
}

func like(s string) string {
	return "%" + s + "%"
}
