package collaborators

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RowStore is the relational boundary used by database nodes. Operations
// map one to one onto databaseConfig.operation values.
type RowStore interface {
	Insert(ctx context.Context, table string, data map[string]any) error
	Update(ctx context.Context, table string, data map[string]any, where map[string]any) error
	Delete(ctx context.Context, table string, where map[string]any) error
}

// SQLRowStore implements RowStore over database/sql.
type SQLRowStore struct {
	db *sql.DB
}

// NewSQLRowStore wraps an open database handle.
func NewSQLRowStore(db *sql.DB) *SQLRowStore {
	return &SQLRowStore{db: db}
}

func (s *SQLRowStore) Insert(ctx context.Context, table string, data map[string]any) error {
	if len(data) == 0 {
		return fmt.Errorf("insert into %s: no data", table)
	}

	columns := sortedKeys(data)
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))

	for i, column := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = data[column]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table),
		strings.Join(quoteAll(columns), ", "),
		strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}

	return nil
}

func (s *SQLRowStore) Update(ctx context.Context, table string, data map[string]any, where map[string]any) error {
	if len(data) == 0 || len(where) == 0 {
		return fmt.Errorf("update %s: data and where are required", table)
	}

	var (
		assignments []string
		predicates  []string
		args        []any
	)

	for _, column := range sortedKeys(data) {
		args = append(args, data[column])
		assignments = append(assignments, fmt.Sprintf("%s = $%d", quoteIdentifier(column), len(args)))
	}

	for _, column := range sortedKeys(where) {
		args = append(args, where[column])
		predicates = append(predicates, fmt.Sprintf("%s = $%d", quoteIdentifier(column), len(args)))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdentifier(table),
		strings.Join(assignments, ", "),
		strings.Join(predicates, " AND "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	return nil
}

func (s *SQLRowStore) Delete(ctx context.Context, table string, where map[string]any) error {
	if len(where) == 0 {
		return fmt.Errorf("delete from %s: where is required", table)
	}

	var (
		predicates []string
		args       []any
	)

	for _, column := range sortedKeys(where) {
		args = append(args, where[column])
		predicates = append(predicates, fmt.Sprintf("%s = $%d", quoteIdentifier(column), len(args)))
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s",
		quoteIdentifier(table),
		strings.Join(predicates, " AND "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, ``) + `"`
}

func quoteAll(identifiers []string) []string {
	quoted := make([]string, len(identifiers))
	for i, identifier := range identifiers {
		quoted[i] = quoteIdentifier(identifier)
	}

	return quoted
}

// MemoryRowStore keeps rows in memory for tests.
type MemoryRowStore struct {
	mu   sync.Mutex
	Rows map[string][]map[string]any
}

// NewMemoryRowStore creates an empty in-memory row store.
func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{Rows: make(map[string][]map[string]any)}
}

func (s *MemoryRowStore) Insert(_ context.Context, table string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Rows[table] = append(s.Rows[table], data)

	return nil
}

func (s *MemoryRowStore) Update(_ context.Context, table string, data map[string]any, where map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.Rows[table] {
		if matches(row, where) {
			for k, v := range data {
				row[k] = v
			}
		}
	}

	return nil
}

func (s *MemoryRowStore) Delete(_ context.Context, table string, where map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.Rows[table][:0]

	for _, row := range s.Rows[table] {
		if !matches(row, where) {
			kept = append(kept, row)
		}
	}

	s.Rows[table] = kept

	return nil
}

func matches(row, where map[string]any) bool {
	for k, v := range where {
		if row[k] != v {
			return false
		}
	}

	return true
}
