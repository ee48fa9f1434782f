package mapping

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxIdentLen matches the Postgres identifier limit, the strictest of the
// supported backends.
const maxIdentLen = 63

// reservedIdents are names that collide with SQL keywords, common tooling
// expectations, or the system columns every loaded table carries. They get
// a "_val" suffix rather than relying on quoting, so canonical names stay
// portable.
var reservedIdents = map[string]bool{
	"month": true, "year": true, "group": true, "order": true,
	"table": true, "index": true, "key": true, "value": true,
	"date": true, "time": true, "user": true, "name": true,
	"type": true, "level": true,
	"row_id": true, "period": true, "loaded_at": true,
}

// Identifier converts an arbitrary header string into a safe, lowercase
// database identifier.
//
// This is the ONLY function that turns an inferred column name into its
// normalized form. Schema definition and row writes both consume its
// output via the Resolver; nothing else may re-derive names.
func Identifier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "col_unnamed"
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '£' || r == '$' || r == '€' || r == '%':
			// Currency/percent marks carry no identifier information.
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "col_unnamed"
	}
	if reservedIdents[out] {
		out += "_val"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "col_" + out
	}
	return Truncate(out)
}

// Truncate enforces the identifier length limit while preserving UTF-8
// validity.
func Truncate(s string) string {
	if len(s) <= maxIdentLen {
		return s
	}
	b := []byte(s)
	cut := maxIdentLen
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxIdentLen]
	}
	return string(b[:cut])
}

// Unique disambiguates a normalized name against those already taken,
// appending _2, _3, ... within the length limit. The returned name is
// recorded in taken.
func Unique(name string, taken map[string]int) string {
	n, seen := taken[name]
	if !seen {
		taken[name] = 1
		return name
	}
	taken[name] = n + 1
	suffix := "_" + strconv.Itoa(n+1)
	if len(name)+len(suffix) > maxIdentLen {
		name = name[:maxIdentLen-len(suffix)]
	}
	return name + suffix
}
