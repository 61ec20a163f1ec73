package validator

import (
	"context"
	"strconv"

	"github.com/uavlogviewer/chatbot/pkg/store"
)

// discrepancyAbsoluteThreshold and discrepancyRelativeThreshold together
// gate a discrepancy: both must hold.
const (
	discrepancyAbsoluteThreshold = 10.0
	discrepancyRelativeThreshold = 0.05
)

// Validator re-executes SQL cited in assistant text against a session's
// Tabular Store and checks the text's claimed numbers against the actual
// results.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate scans text for SQL-shaped substrings, re-executes each against
// s, and compares adjacent claimed numbers to the actual first row.
func (v *Validator) Validate(ctx context.Context, s store.Store, text string) Report {
	matches := sqlPattern.FindAllStringSubmatchIndex(text, -1)
	report := Report{TotalQueries: len(matches)}

	for _, loc := range matches {
		sqlText := text[loc[2]:loc[3]]
		trailing := ""
		if loc[3] < len(text) {
			trailing = text[loc[3]:]
		}

		val := Validation{ExtractedSQL: sqlText}
		val.ClaimedNumbers = extractClaims(sqlText, trailing)

		result, err := s.Query(ctx, sqlText)
		if err != nil {
			val.QueryError = err.Error()
			report.Validations = append(report.Validations, val)
			continue
		}
		val.ActualResult = result
		val.Discrepancies = findDiscrepancies(val.ClaimedNumbers, result)

		if len(val.Discrepancies) == 0 {
			report.ValidQueries++
		} else {
			report.QueriesWithDiscrepancies++
		}
		report.Validations = append(report.Validations, val)
	}

	return report
}

// extractClaims finds numeric claims in the SQL statement itself and in all
// of the text trailing it; text before the statement is not searched. Every
// candidate number is recorded, so an answer that cites several numbers
// after one query can produce a false-positive discrepancy.
func extractClaims(sqlText, trailing string) []float64 {
	var claims []float64
	seen := map[float64]bool{}

	add := func(raw string) {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || seen[n] {
			return
		}
		seen[n] = true
		claims = append(claims, n)
	}

	for _, p := range claimPatterns {
		for _, m := range p.FindAllStringSubmatch(sqlText+" "+trailing, -1) {
			add(m[1])
		}
	}

	if m := numberAfterSQL.FindStringSubmatch(trailing); m != nil {
		add(m[1])
	}

	return claims
}

// findDiscrepancies flags a claimed number when no actual numeric cell in
// the first row is within tolerance: both |claimed-actual|>10 AND relative
// error>5% must hold for every candidate cell.
func findDiscrepancies(claims []float64, result *store.QueryResult) []Discrepancy {
	if len(claims) == 0 || result == nil || len(result.Rows) == 0 {
		return nil
	}

	var actuals []float64
	for _, cell := range result.Rows[0] {
		if cell.Kind == store.KindReal {
			actuals = append(actuals, cell.Real)
		}
	}
	if len(actuals) == 0 {
		return nil
	}

	var discrepancies []Discrepancy
	for _, claim := range claims {
		closest := actuals[0]
		closestDiff := absFloat(claim - closest)
		matched := false

		for _, actual := range actuals {
			diff := absFloat(claim - actual)
			if diff < closestDiff {
				closest = actual
				closestDiff = diff
			}
			if !isDiscrepant(claim, actual) {
				matched = true
			}
		}

		if !matched {
			discrepancies = append(discrepancies, Discrepancy{Claimed: claim, Closest: closest})
		}
	}
	return discrepancies
}

func isDiscrepant(claimed, actual float64) bool {
	absDiff := absFloat(claimed - actual)
	if absDiff <= discrepancyAbsoluteThreshold {
		return false
	}
	if actual == 0 {
		return true
	}
	relErr := absDiff / absFloat(actual)
	return relErr > discrepancyRelativeThreshold
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
