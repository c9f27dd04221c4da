package mapping

import (
	"sort"
	"strings"
)

// Category names used when reviewing a mapping. CategoryCore and
// CategoryUnmapped are pinned first in grouped display.
const (
	CategoryCore     = "core"
	CategoryUnmapped = "unmapped"
)

// CanonicalFields is the closed list of startup attributes a CSV column can
// map onto. "name" is the only field required for a mapping to be confirmed.
var CanonicalFields = []string{
	"name", "sector", "stage", "country", "description", "score", "pipelineStage",
	"website", "legalName", "foundedYear", "location", "employees",
	"founders", "teamSize",
	"marketSize", "growthRate", "targetCustomer",
	"productSummary", "differentiator", "techStack",
	"businessModel", "revenue", "burn", "funding",
	"salesPipeline", "channels", "keyAccounts",
	"competitors", "moat",
	"riskSummary", "thesis",
}

type categoryField struct {
	Category string
	Field    string
}

// fieldTranslations maps (suggestedCategory, suggestedField) pairs to
// canonical field identifiers. Suggestions outside this table never reach the
// canonical mapping; they stay editable and become custom-data candidates.
var fieldTranslations = map[categoryField]string{
	{CategoryCore, "name"}:          "name",
	{CategoryCore, "sector"}:        "sector",
	{CategoryCore, "stage"}:         "stage",
	{CategoryCore, "country"}:       "country",
	{CategoryCore, "description"}:   "description",
	{CategoryCore, "score"}:         "score",
	{CategoryCore, "pipelineStage"}: "pipelineStage",

	{"companyInfo", "website"}:     "website",
	{"companyInfo", "legalName"}:   "legalName",
	{"companyInfo", "foundedYear"}: "foundedYear",
	{"companyInfo", "location"}:    "location",
	{"companyInfo", "employees"}:   "employees",

	{"teamInfo", "founders"}: "founders",
	{"teamInfo", "teamSize"}: "teamSize",

	{"marketInfo", "marketSize"}:     "marketSize",
	{"marketInfo", "growthRate"}:     "growthRate",
	{"marketInfo", "targetCustomer"}: "targetCustomer",

	{"productInfo", "summary"}:        "productSummary",
	{"productInfo", "differentiator"}: "differentiator",
	{"productInfo", "techStack"}:      "techStack",

	{"businessInfo", "model"}:   "businessModel",
	{"businessInfo", "revenue"}: "revenue",
	{"businessInfo", "burn"}:    "burn",
	{"businessInfo", "funding"}: "funding",

	{"salesInfo", "pipeline"}:    "salesPipeline",
	{"salesInfo", "channels"}:    "channels",
	{"salesInfo", "keyAccounts"}: "keyAccounts",

	{"competitiveInfo", "competitors"}: "competitors",
	{"competitiveInfo", "moat"}:        "moat",

	{"riskInfo", "summary"}:       "riskSummary",
	{"opportunityInfo", "thesis"}: "thesis",
}

// TranslateSuggestion resolves a suggested (category, field) pair to its
// canonical field identifier, if the pair is in the translation table.
func TranslateSuggestion(category, field string) (string, bool) {
	canonical, ok := fieldTranslations[categoryField{Category: category, Field: field}]
	return canonical, ok
}

// KnownCategories lists every category the suggestion service may use,
// sorted, with core first.
func KnownCategories() []string {
	seen := map[string]struct{}{CategoryCore: {}}
	categories := []string{CategoryCore}
	for key := range fieldTranslations {
		if _, ok := seen[key.Category]; ok {
			continue
		}
		seen[key.Category] = struct{}{}
		categories = append(categories, key.Category)
	}
	sort.Strings(categories[1:])
	return categories
}

// IsCanonicalField reports whether the identifier is in the closed field list.
func IsCanonicalField(field string) bool {
	for _, known := range CanonicalFields {
		if known == field {
			return true
		}
	}
	return false
}

// normalizeHeader collapses a CSV header to a comparable token: lowercase
// with whitespace, underscores, and hyphens removed.
func normalizeHeader(header string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(header) {
		switch r {
		case ' ', '\t', '_', '-', '.':
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// HeuristicMapping is the pre-AI baseline: a header maps to a canonical
// field when its normalized form equals the normalized field name.
func HeuristicMapping(headers []string) ColumnMapping {
	byNormalized := make(map[string]string, len(CanonicalFields))
	for _, field := range CanonicalFields {
		byNormalized[normalizeHeader(field)] = field
	}

	mapping := make(ColumnMapping)
	for _, header := range headers {
		if field, ok := byNormalized[normalizeHeader(header)]; ok {
			if _, taken := mapping[field]; !taken {
				mapping[field] = header
			}
		}
	}
	return mapping
}
