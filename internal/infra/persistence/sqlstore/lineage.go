package sqlstore

import (
	"context"
	"fmt"
)

// The traversals below compute the transitive closure over the derived
// process adjacency with a single recursive query. UNION (not UNION ALL)
// deduplicates visited nodes, which also terminates the recursion if
// malformed input ever produced a cycle.

const ancestorsQuery = `
WITH RECURSIVE lineage(process_uuid) AS (
    SELECT parent_process_uuid FROM process_process_edges WHERE child_process_uuid = ?
    UNION
    SELECT e.parent_process_uuid FROM process_process_edges e
    JOIN lineage l ON e.child_process_uuid = l.process_uuid
)
SELECT process_uuid FROM lineage WHERE process_uuid <> ? ORDER BY process_uuid`

const descendantsQuery = `
WITH RECURSIVE lineage(process_uuid) AS (
    SELECT child_process_uuid FROM process_process_edges WHERE parent_process_uuid = ?
    UNION
    SELECT e.child_process_uuid FROM process_process_edges e
    JOIN lineage l ON e.parent_process_uuid = l.process_uuid
)
SELECT process_uuid FROM lineage WHERE process_uuid <> ? ORDER BY process_uuid`

// Ancestors returns every process transitively upstream of the given one.
func (s *Store) Ancestors(ctx context.Context, processUUID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(ancestorsQuery), processUUID, processUUID)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %s: %w", processUUID, err)
	}
	return collectStrings(rows)
}

// Descendants returns every process transitively downstream of the given one.
func (s *Store) Descendants(ctx context.Context, processUUID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(descendantsQuery), processUUID, processUUID)
	if err != nil {
		return nil, fmt.Errorf("descendants of %s: %w", processUUID, err)
	}
	return collectStrings(rows)
}

// DirectParents returns the immediate parents of the process.
func (s *Store) DirectParents(ctx context.Context, processUUID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT parent_process_uuid FROM process_process_edges WHERE child_process_uuid = ? ORDER BY parent_process_uuid`),
		processUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("direct parents of %s: %w", processUUID, err)
	}
	return collectStrings(rows)
}

// DirectChildren returns the immediate children of the process.
func (s *Store) DirectChildren(ctx context.Context, processUUID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT child_process_uuid FROM process_process_edges WHERE parent_process_uuid = ? ORDER BY child_process_uuid`),
		processUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("direct children of %s: %w", processUUID, err)
	}
	return collectStrings(rows)
}
