package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// percentileCall matches "PERCENTILE(<col>, <p>)" optionally aliased, as the
// sole selected expression of a SELECT. SQLite has no native percentile
// aggregate; rather than risk depending on an unverified driver-level
// function-registration API, percentile queries are recognized here and
// computed in Go: the column is fetched under the same WHERE clause, sorted,
// and interpolated. This covers the single-aggregate case; combining PERCENTILE
// with other aggregates in the same SELECT is not supported.
var percentileCall = regexp.MustCompile(`(?is)^\s*SELECT\s+PERCENTILE\s*\(\s*([A-Za-z_][\w"]*)\s*,\s*([0-9.]+)\s*\)\s*(?:AS\s+([A-Za-z_]\w*))?\s+FROM\s+([A-Za-z_][\w"]*)\s*(.*?)\s*;?\s*$`)

func (s *sqliteStore) tryPercentileQuery(ctx context.Context, sqlText string) (*QueryResult, bool, error) {
	m := percentileCall.FindStringSubmatch(sqlText)
	if m == nil {
		return nil, false, nil
	}
	col, pStr, alias, table, rest := m[1], m[2], m[3], m[4], m[5]

	p, err := strconv.ParseFloat(pStr, 64)
	if err != nil || p < 0 || p > 1 {
		return nil, true, fmt.Errorf("invalid percentile fraction %q (expect 0..1)", pStr)
	}

	resultName := alias
	if resultName == "" {
		resultName = "percentile"
	}

	// rest may contain WHERE/ORDER BY/LIMIT; ORDER BY/LIMIT on the original
	// statement don't apply to the percentile aggregate itself, so only a
	// leading WHERE clause is preserved.
	where := ""
	if idx := strings.Index(strings.ToUpper(rest), "WHERE"); idx == 0 {
		where = " " + rest
		if oi := strings.Index(strings.ToUpper(where), "ORDER BY"); oi >= 0 {
			where = where[:oi]
		}
		if li := strings.Index(strings.ToUpper(where), "LIMIT"); li >= 0 {
			where = where[:li]
		}
	}

	fetchSQL := fmt.Sprintf("SELECT %s FROM %s%s", col, table, where)
	rows, err := s.db.QueryContext(ctx, fetchSQL)
	if err != nil {
		return nil, true, fmt.Errorf("percentile source query failed: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, true, err
		}
		cell := narrowCell(v)
		if cell.Kind == KindReal {
			values = append(values, cell.Real)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, true, err
	}

	if len(values) == 0 {
		return &QueryResult{
			Columns: []string{resultName},
			Rows:    [][]Cell{{{Kind: KindNull}}},
		}, true, nil
	}

	sort.Float64s(values)
	result := interpolatePercentile(values, p)

	return &QueryResult{
		Columns: []string{resultName},
		Rows:    [][]Cell{{{Kind: KindReal, Real: result}}},
	}, true, nil
}

// interpolatePercentile implements linear-interpolation percentile
// (equivalent to PostgreSQL's PERCENTILE_CONT) over pre-sorted values.
func interpolatePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
