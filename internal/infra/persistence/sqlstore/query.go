package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"lineagecore/pkg/domain"
)

// Execute runs an ad hoc read query and returns rows plus column names. The
// caller bounds execution through ctx; deadline expiry surfaces as
// domain.ErrQueryTimeout so the gateway can distinguish it from failure.
// Cancellation propagates to the driver, so an expired query does not keep
// consuming engine resources.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (domain.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return domain.QueryResult{}, mapTimeout(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("columns: %w", err)
	}
	result := domain.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		scan := make([]any, len(columns))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return domain.QueryResult{}, mapTimeout(ctx, err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, mapTimeout(ctx, err)
	}
	return result, nil
}

func mapTimeout(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrQueryTimeout
	}
	return fmt.Errorf("execute query: %w", err)
}
