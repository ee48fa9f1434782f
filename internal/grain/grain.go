// Package grain classifies what kind of organisational entity each row of
// an inferred table describes, by matching identifier columns against the
// code formats used across the health service.
//
// Classification is best-effort: it inspects the bounded samples collected
// during structure inference and never reads the source file again. An
// unclassifiable table yields Unknown with zero confidence; callers decide
// whether to load it anyway.
package grain

import "regexp"

// Entity is the row-level organisational grain of a table.
type Entity string

const (
	National   Entity = "national"
	Region     Entity = "region"
	ICB        Entity = "icb"
	CCG        Entity = "ccg"
	Trust      Entity = "trust"
	GPPractice Entity = "gp_practice"
	Unknown    Entity = "unknown"
)

// Result is the outcome of classifying one table.
type Result struct {
	Entity Entity
	// Confidence is the fraction of sampled values in Column that matched
	// the entity's pattern. Zero when Entity is Unknown.
	Confidence float64
	// Column is the normalized name of the column that decided the
	// classification. Empty for keyword and national fallbacks.
	Column string
}

// pattern maps a code format to an entity. Priority breaks ties when a
// value matches several formats: specific formats outrank generic ones,
// so a column of trust codes is never mistaken for regions.
type pattern struct {
	entity   Entity
	re       *regexp.Regexp
	priority int
}

// Code formats, most specific first. Trust codes and practice codes are
// unambiguous; the two-character region format collides with fragments of
// other codes and sits at low priority.
var entityPatterns = []pattern{
	{Trust, regexp.MustCompile(`^R[A-Z0-9]{1,4}$`), 100},
	{GPPractice, regexp.MustCompile(`^[A-Z][0-9]{5}$`), 100},
	{ICB, regexp.MustCompile(`^Q[A-Z0-9]{2}$`), 90},
	{CCG, regexp.MustCompile(`^[0-9]{2}[A-Z]$`), 80},
	{Region, regexp.MustCompile(`^Y[0-9]{2}$`), 50},
}

// primaryIdentifierHints mark columns that carry organisation identifiers.
// These columns get the benefit of the doubt: a lower match floor applies
// because messy exports mix footnote markers into code columns.
var primaryIdentifierHints = []string{
	"org_code", "organisation_code", "ods_code", "practice_code",
	"provider_code", "trust_code", "site_code", "code",
}

// entityNameKeywords resolve grain from column names alone when no code
// column matched, for tables that publish names without codes.
var entityNameKeywords = []struct {
	entity  Entity
	keyword string
}{
	{GPPractice, "practice"},
	{Trust, "trust"},
	{Trust, "provider"},
	{ICB, "icb"},
	{ICB, "integrated_care"},
	{CCG, "ccg"},
	{Region, "region"},
}

// nationalValues appear in label columns of england-level summary tables.
var nationalValues = map[string]bool{
	"england":        true,
	"national":       true,
	"all submitters": true,
	"total":          true,
	"england total":  true,
}

// measureKeywords mark columns holding measured quantities rather than
// identity; they are excluded from the broad scan so numeric-heavy tables
// cannot classify off a value column.
var measureKeywords = []string{
	"count", "number", "total", "rate", "percent", "value", "amount",
	"headcount", "fte", "wte", "spend", "cost",
}
