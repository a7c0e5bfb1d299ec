// internal/query/classify.go
package query

import "strings"

// Classification is the read-only safety verdict for a statement.
type Classification int

const (
	Safe Classification = iota
	Unsafe
)

// Keywords that may open a read-only statement. Anything else is treated
// as mutating; false positives are acceptable, false negatives are not.
var readVerbs = map[string]bool{
	"select":   true,
	"with":     true,
	"show":     true,
	"describe": true,
	"desc":     true,
	"explain":  true,
}

// Classify lexically classifies a SQL text as safe to run against a
// read-only session. It is not a parser: it trims comments, inspects the
// first keyword of every semicolon-separated statement, and rejects the
// whole text if any of them is not a known read verb.
func Classify(sql string) Classification {
	statements := SplitStatements(sql)
	if len(statements) == 0 {
		return Unsafe
	}
	for _, stmt := range statements {
		if !readVerbs[firstKeyword(stmt)] {
			return Unsafe
		}
	}
	return Safe
}

// firstKeyword returns the first lexical keyword, lowercased, after
// skipping whitespace and leading comments.
func firstKeyword(sql string) string {
	s := stripLeadingComments(sql)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			end++
			continue
		}
		break
	}
	return strings.ToLower(s[:end])
}

// stripLeadingComments removes leading whitespace, line comments (--) and
// block comments (/* */).
func stripLeadingComments(sql string) string {
	s := sql
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
			} else {
				return ""
			}
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
			} else {
				return ""
			}
		default:
			return s
		}
	}
}

// SplitStatements splits a SQL text on semicolons, respecting single and
// double quotes so separators inside literals do not split.
func SplitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		// Backslash escapes inside literals
		if (inSingleQuote || inDoubleQuote) && c == '\\' && i+1 < len(sql) {
			current.WriteByte(c)
			i++
			current.WriteByte(sql[i])
			continue
		}

		if c == '\'' && !inDoubleQuote {
			inSingleQuote = !inSingleQuote
		} else if c == '"' && !inSingleQuote {
			inDoubleQuote = !inDoubleQuote
		}

		if c == ';' && !inSingleQuote && !inDoubleQuote {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
			continue
		}

		current.WriteByte(c)
	}

	stmt := strings.TrimSpace(current.String())
	if stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
