// Package mapping reconciles raw CSV columns against the canonical startup
// schema: an AI suggestion pass seeds an editable per-header state, a human
// confirms or overrides it, and the confirmed mapping drives the import.
package mapping

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dealflow/api/internal/store"
)

// ColumnMapping maps canonical field identifiers to the CSV header selected
// as their source. Absence means the field is unmapped.
type ColumnMapping map[string]string

// EditableMapping is the transient per-header review state.
type EditableMapping struct {
	Header        string        `json:"header"`
	Category      string        `json:"category"`
	Field         string        `json:"field"`
	IsNewCategory bool          `json:"isNewCategory"`
	IsNewField    bool          `json:"isNewField"`
	Skip          bool          `json:"skip"`
	DataType      string        `json:"dataType"`
	Suggestion    *AISuggestion `json:"suggestion,omitempty"`
}

// Session holds one import's mapping state between suggestion and confirm.
type Session struct {
	Headers    []string          `json:"headers"`
	SampleRows [][]string        `json:"sampleRows"`
	Entries    []EditableMapping `json:"entries"`
	Mapping    ColumnMapping     `json:"mapping"`
}

var ErrNameNotMapped = errors.New(`the "name" field must be mapped before confirming`)

// NewSession seeds a session from the headers and sample rows: the heuristic
// baseline mapping plus one default editable entry per header.
func NewSession(headers []string, sampleRows [][]string) *Session {
	session := &Session{
		Headers:    headers,
		SampleRows: sampleRows,
		Mapping:    HeuristicMapping(headers),
		Entries:    make([]EditableMapping, 0, len(headers)),
	}
	for i, header := range headers {
		session.Entries = append(session.Entries, EditableMapping{
			Header:   header,
			Category: CategoryUnmapped,
			DataType: InferDataType(columnSamples(sampleRows, i)),
		})
	}
	return session
}

// ApplySuggestions folds an AI suggestion result into the session. Per
// header, an exact csvHeader match seeds the editable entry; suggestions
// whose (category, field) pair is in the translation table also overwrite
// the corresponding canonical field. A failed suggestion call never reaches
// this point, so previously seeded state stays untouched on error paths.
// A completed result overwrites editable state wholesale, not incrementally.
func (s *Session) ApplySuggestions(result SuggestionResult) {
	byHeader := make(map[string]AISuggestion, len(result.Mappings))
	for _, suggestion := range result.Mappings {
		byHeader[suggestion.CSVHeader] = suggestion
	}

	for i, header := range s.Headers {
		suggestion, ok := byHeader[header]
		if !ok {
			s.Entries[i] = EditableMapping{
				Header:   header,
				Category: CategoryUnmapped,
				DataType: s.Entries[i].DataType,
			}
			continue
		}

		kept := suggestion
		s.Entries[i] = EditableMapping{
			Header:        header,
			Category:      suggestion.SuggestedCategory,
			Field:         suggestion.SuggestedField,
			IsNewCategory: suggestion.CategoryType == "new",
			DataType:      s.Entries[i].DataType,
			Suggestion:    &kept,
		}

		if canonical, ok := TranslateSuggestion(suggestion.SuggestedCategory, suggestion.SuggestedField); ok {
			s.Mapping[canonical] = header
		}
	}
}

// Override replaces one header's category/field/skip assignment. When the new
// (category, field) pair is canonical the working mapping follows; when the
// header previously backed a canonical field it is released.
func (s *Session) Override(header, category, field string, skip bool) error {
	index := -1
	for i := range s.Entries {
		if s.Entries[i].Header == header {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("unknown header %q", header)
	}

	for canonical, source := range s.Mapping {
		if source == header {
			delete(s.Mapping, canonical)
		}
	}

	entry := &s.Entries[index]
	entry.Category = category
	entry.Field = field
	entry.Skip = skip
	entry.IsNewField = field != "" && !IsCanonicalField(field)

	if skip {
		return nil
	}
	if canonical, ok := TranslateSuggestion(category, field); ok {
		s.Mapping[canonical] = header
	}
	return nil
}

// AssignField is manual mode: the operator binds a canonical field directly
// to a source header, with no AI involvement. The field must be in the
// closed canonical list; an empty header unbinds the field.
func (s *Session) AssignField(field, header string) error {
	if !IsCanonicalField(field) {
		return fmt.Errorf("unknown canonical field %q", field)
	}
	if header == "" {
		delete(s.Mapping, field)
		return nil
	}
	found := false
	for _, known := range s.Headers {
		if known == header {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("unknown header %q", header)
	}
	s.Mapping[field] = header
	return nil
}

// Validate is the confirmation gate: the canonical mapping must have at
// least "name" assigned; everything else is optional.
func (s *Session) Validate() error {
	if s.Mapping["name"] == "" {
		return ErrNameNotMapped
	}
	return nil
}

// Confirm applies the validity gate and emits the canonical mapping plus the
// suggestions for headers not marked skipped.
func (s *Session) Confirm() (ColumnMapping, []AISuggestion, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	confirmed := make(ColumnMapping, len(s.Mapping))
	for field, header := range s.Mapping {
		confirmed[field] = header
	}

	retained := make([]AISuggestion, 0, len(s.Entries))
	for _, entry := range s.Entries {
		if entry.Skip || entry.Suggestion == nil {
			continue
		}
		retained = append(retained, *entry.Suggestion)
	}
	return confirmed, retained, nil
}

// SkippedHeaders returns the set of headers the operator excluded.
func (s *Session) SkippedHeaders() map[string]bool {
	skipped := make(map[string]bool)
	for _, entry := range s.Entries {
		if entry.Skip {
			skipped[entry.Header] = true
		}
	}
	return skipped
}

// CategoryGroup is one display bucket of editable entries.
type CategoryGroup struct {
	Category string            `json:"category"`
	Entries  []EditableMapping `json:"entries"`
}

// Groups buckets entries by category for review. Core and unmapped are
// pinned first; remaining categories keep encountered order. Ordering is
// presentational only.
func Groups(entries []EditableMapping) []CategoryGroup {
	index := map[string]int{}
	groups := []CategoryGroup{
		{Category: CategoryCore},
		{Category: CategoryUnmapped},
	}
	index[CategoryCore] = 0
	index[CategoryUnmapped] = 1

	for _, entry := range entries {
		category := entry.Category
		if category == "" {
			category = CategoryUnmapped
		}
		at, ok := index[category]
		if !ok {
			at = len(groups)
			index[category] = at
			groups = append(groups, CategoryGroup{Category: category})
		}
		groups[at].Entries = append(groups[at].Entries, entry)
	}
	return groups
}

var (
	numberPattern = regexp.MustCompile(`^-?\d+([.,]\d+)?%?$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

var dateLayouts = []string{"2006-01-02", "01/02/2006", "02.01.2006", "Jan 2, 2006", time.RFC3339}

// Most specific first; ties resolve toward the earlier kind.
var dataTypeKinds = []string{"number", "date", "url", "email", "text"}

// InferDataType guesses a display type from sample values.
func InferDataType(samples []string) string {
	votes := map[string]int{}
	total := 0
	for _, sample := range samples {
		sample = strings.TrimSpace(sample)
		if sample == "" {
			continue
		}
		total++
		switch {
		case numberPattern.MatchString(sample):
			votes["number"]++
		case isDate(sample):
			votes["date"]++
		case isURL(sample):
			votes["url"]++
		case emailPattern.MatchString(sample):
			votes["email"]++
		default:
			votes["text"]++
		}
	}
	if total == 0 {
		return "text"
	}
	best, bestCount := "text", 0
	for _, kind := range dataTypeKinds {
		if votes[kind] > bestCount {
			best, bestCount = kind, votes[kind]
		}
	}
	return best
}

func isDate(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

func isURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// BuildStartups applies a confirmed mapping to parsed rows. Canonical fields
// populate the typed record; non-skipped columns outside the mapping land in
// the per-record custom-data bag. Retained suggestions annotate the shared
// custom-schema descriptor. Record ids derive from the normalized name so a
// retried import produces identical ids and deduplicates on insert.
func BuildStartups(mapping ColumnMapping, headers []string, rows [][]string, skipped map[string]bool, retained []AISuggestion) ([]store.Startup, []store.CustomFieldDef) {
	headerIndex := make(map[string]int, len(headers))
	for i, header := range headers {
		headerIndex[header] = i
	}

	mappedHeaders := make(map[string]bool, len(mapping))
	for _, header := range mapping {
		mappedHeaders[header] = true
	}

	suggestionByHeader := make(map[string]AISuggestion, len(retained))
	for _, suggestion := range retained {
		suggestionByHeader[suggestion.CSVHeader] = suggestion
	}

	var schema []store.CustomFieldDef
	customHeaders := make([]string, 0, len(headers))
	for i, header := range headers {
		if mappedHeaders[header] || skipped[header] {
			continue
		}
		customHeaders = append(customHeaders, header)
		def := store.CustomFieldDef{
			Key:      customKey(header),
			Label:    header,
			DataType: InferDataType(columnSamples(rows, i)),
		}
		if suggestion, ok := suggestionByHeader[header]; ok {
			def.Category = suggestion.SuggestedCategory
		}
		schema = append(schema, def)
	}

	startups := make([]store.Startup, 0, len(rows))
	for _, row := range rows {
		cell := func(header string) string {
			index, ok := headerIndex[header]
			if !ok || index >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[index])
		}

		var item store.Startup
		for field, header := range mapping {
			applyField(&item, field, cell(header))
		}
		if item.Name == "" {
			continue
		}
		item.ID = "su_" + slug(item.Name)
		if item.PipelineStage == "" {
			item.PipelineStage = "sourced"
		}

		for _, header := range customHeaders {
			value := cell(header)
			if value == "" {
				continue
			}
			if item.CustomData == nil {
				item.CustomData = make(map[string]string)
			}
			item.CustomData[customKey(header)] = value
		}
		item.CustomSchema = schema

		startups = append(startups, item)
	}
	return startups, schema
}

func columnSamples(rows [][]string, index int) []string {
	samples := make([]string, 0, len(rows))
	for _, row := range rows {
		if index < len(row) {
			samples = append(samples, row[index])
		}
	}
	return samples
}

func customKey(header string) string {
	key := slug(header)
	if key == "" {
		key = "column"
	}
	return key
}

func slug(value string) string {
	var builder strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				builder.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(builder.String(), "-")
}

// applyField assigns one cell to a canonical field, parsing typed values.
func applyField(item *store.Startup, field, value string) {
	if value == "" {
		return
	}
	switch field {
	case "name":
		item.Name = value
	case "sector":
		item.Sector = value
	case "stage":
		item.Stage = value
	case "country":
		item.Country = value
	case "description":
		item.Description = value
	case "pipelineStage":
		item.PipelineStage = value
	case "score":
		if parsed, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64); err == nil {
			item.Score = parsed
		}
	case "website":
		ensureCompanyInfo(item).Website = value
	case "legalName":
		ensureCompanyInfo(item).LegalName = value
	case "location":
		ensureCompanyInfo(item).Location = value
	case "foundedYear":
		if parsed, err := strconv.Atoi(value); err == nil {
			ensureCompanyInfo(item).FoundedYear = parsed
		}
	case "employees":
		if parsed, err := strconv.Atoi(value); err == nil {
			ensureCompanyInfo(item).Employees = parsed
		}
	case "founders":
		ensureTeamInfo(item).Founders = splitList(value)
	case "teamSize":
		if parsed, err := strconv.Atoi(value); err == nil {
			ensureTeamInfo(item).TeamSize = parsed
		}
	case "marketSize":
		ensureMarketInfo(item).MarketSize = value
	case "growthRate":
		ensureMarketInfo(item).GrowthRate = value
	case "targetCustomer":
		ensureMarketInfo(item).TargetCustomer = value
	case "productSummary":
		ensureProductInfo(item).Summary = value
	case "differentiator":
		ensureProductInfo(item).Differentiator = value
	case "techStack":
		ensureProductInfo(item).TechStack = value
	case "businessModel":
		ensureBusinessInfo(item).Model = value
	case "revenue":
		ensureBusinessInfo(item).Revenue = value
	case "burn":
		ensureBusinessInfo(item).Burn = value
	case "funding":
		ensureBusinessInfo(item).Funding = value
	case "salesPipeline":
		ensureSalesInfo(item).Pipeline = value
	case "channels":
		ensureSalesInfo(item).Channels = value
	case "keyAccounts":
		ensureSalesInfo(item).KeyAccounts = value
	case "competitors":
		ensureCompetitiveInfo(item).Competitors = splitList(value)
	case "moat":
		ensureCompetitiveInfo(item).Moat = value
	case "riskSummary":
		ensureRiskInfo(item).Summary = value
	case "thesis":
		ensureOpportunityInfo(item).Thesis = value
	}
}

func splitList(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func ensureCompanyInfo(item *store.Startup) *store.CompanyInfo {
	if item.CompanyInfo == nil {
		item.CompanyInfo = &store.CompanyInfo{}
	}
	return item.CompanyInfo
}

func ensureTeamInfo(item *store.Startup) *store.TeamInfo {
	if item.TeamInfo == nil {
		item.TeamInfo = &store.TeamInfo{}
	}
	return item.TeamInfo
}

func ensureMarketInfo(item *store.Startup) *store.MarketInfo {
	if item.MarketInfo == nil {
		item.MarketInfo = &store.MarketInfo{}
	}
	return item.MarketInfo
}

func ensureProductInfo(item *store.Startup) *store.ProductInfo {
	if item.ProductInfo == nil {
		item.ProductInfo = &store.ProductInfo{}
	}
	return item.ProductInfo
}

func ensureBusinessInfo(item *store.Startup) *store.BusinessInfo {
	if item.BusinessInfo == nil {
		item.BusinessInfo = &store.BusinessInfo{}
	}
	return item.BusinessInfo
}

func ensureSalesInfo(item *store.Startup) *store.SalesInfo {
	if item.SalesInfo == nil {
		item.SalesInfo = &store.SalesInfo{}
	}
	return item.SalesInfo
}

func ensureCompetitiveInfo(item *store.Startup) *store.CompetitiveInfo {
	if item.CompetitiveInfo == nil {
		item.CompetitiveInfo = &store.CompetitiveInfo{}
	}
	return item.CompetitiveInfo
}

func ensureRiskInfo(item *store.Startup) *store.RiskInfo {
	if item.RiskInfo == nil {
		item.RiskInfo = &store.RiskInfo{}
	}
	return item.RiskInfo
}

func ensureOpportunityInfo(item *store.Startup) *store.OpportunityInfo {
	if item.OpportunityInfo == nil {
		item.OpportunityInfo = &store.OpportunityInfo{}
	}
	return item.OpportunityInfo
}
