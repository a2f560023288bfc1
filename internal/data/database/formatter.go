package database

import "strings"

// sqlKeywords are the words Format uppercases. The set covers what the
// statement generators actually emit, not the full SQL grammar.
var sqlKeywords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "and": {}, "or": {}, "not": {},
	"as": {}, "case": {}, "when": {}, "then": {}, "else": {}, "end": {},
	"create": {}, "table": {}, "index": {}, "on": {}, "insert": {},
	"into": {}, "values": {}, "delete": {}, "update": {}, "set": {},
	"join": {}, "left": {}, "right": {}, "inner": {}, "outer": {},
	"full": {}, "cross": {}, "group": {}, "order": {}, "by": {},
	"having": {}, "limit": {}, "offset": {}, "union": {}, "all": {},
	"distinct": {}, "exists": {}, "in": {}, "is": {}, "null": {},
	"like": {}, "ilike": {}, "between": {}, "coalesce": {}, "cast": {},
	"count": {}, "sum": {}, "min": {}, "max": {}, "avg": {}, "abs": {},
	"drop": {}, "asc": {}, "desc": {}, "with": {}, "using": {},
	"interval": {}, "true": {}, "false": {}, "row_number": {}, "over": {},
	"partition": {},
}

// Format normalizes one generated statement for log output: keywords
// are uppercased, string literals and quoted identifiers are left
// untouched. The statement itself is not changed semantically, only
// recased.
func Format(stmt string) string {
	var out strings.Builder
	out.Grow(len(stmt))

	var word strings.Builder
	inString := false
	inIdent := false

	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if _, ok := sqlKeywords[strings.ToLower(w)]; ok {
			out.WriteString(strings.ToUpper(w))
		} else {
			out.WriteString(w)
		}
		word.Reset()
	}

	for _, r := range stmt {
		switch {
		case inString:
			out.WriteRune(r)
			if r == '\'' {
				inString = false
			}
		case inIdent:
			out.WriteRune(r)
			if r == '"' {
				inIdent = false
			}
		case r == '\'':
			flush()
			inString = true
			out.WriteRune(r)
		case r == '"':
			flush()
			inIdent = true
			out.WriteRune(r)
		case r == '_' || r >= '0' && r <= '9' ||
			r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			word.WriteRune(r)
		default:
			flush()
			out.WriteRune(r)
		}
	}
	flush()
	return out.String()
}

// documentRuler separates the statements of one Document block.
const documentRuler = "----------------------------------------"

// Document renders a group of generated statements as one log block:
// each statement formatted, blank ones dropped, a ruler line between
// consecutive statements.
func Document(stmts ...string) string {
	parts := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		parts = append(parts, Format(strings.TrimSpace(stmt)))
	}
	return strings.Join(parts, "\n"+documentRuler+"\n")
}
