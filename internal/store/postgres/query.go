package postgres

import (
	"fmt"

	"github.com/alanyoungcy/oddsarb/internal/domain"
)

// listQuery appends the time window, ordering and pagination of opts to a
// base SELECT. timeCol names the timestamp column used for both filtering
// and ordering.
func listQuery(base, timeCol string, opts domain.ListOpts, args []any) (string, []any) {
	query := base
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", timeCol)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
