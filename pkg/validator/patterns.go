package validator

import "regexp"

// Regexes are compiled once at package init and reused across calls
// rather than recompiled per invocation.
var (
	// sqlPattern matches "SELECT ... FROM <identifier> [WHERE ...]
	// [ORDER BY ...] [LIMIT N]" as capture group 1. The trailing group
	// ends the match at a claim-introducing phrase, a statement separator,
	// or end of text, so the captured statement does not run into the prose
	// that follows (Go's regexp has no lookahead, so the terminator is
	// consumed and callers take the statement's span from group 1).
	sqlPattern = regexp.MustCompile(
		`(?is)(SELECT\s+.+?\s+FROM\s+[a-zA-Z_][a-zA-Z0-9_]*(?:\s+WHERE\s+.+?)?(?:\s+ORDER\s+BY\s+.+?)?(?:\s+LIMIT\s+\d+)?)` +
			`(?:\s+(?:returns?|shows?|was|maximum|minimum|average)\b|[;\n]|$)`,
	)

	// claimPatterns match a number adjacent to phrasing that typically
	// introduces a cited result.
	claimPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)returns?\s+(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)shows?\s+(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)\bwas\s+(-?\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)(?:maximum|minimum|average)\s+(?:was|is|of)\s+(-?\d+(?:\.\d+)?)`),
	}

	// numberAfterSQL matches the first bare number immediately following a
	// SQL statement in the surrounding text.
	numberAfterSQL = regexp.MustCompile(`^\s*\W{0,3}\s*(-?\d+(?:\.\d+)?)`)
)
