package mapping

import (
	"errors"
	"testing"
)

func TestHeuristicMapping(t *testing.T) {
	mapping := HeuristicMapping([]string{"Name", "company_name", "Pipeline Stage", "Founded-Year", "Revenue"})
	if mapping["name"] != "Name" {
		t.Fatalf("expected Name header for name, got %q", mapping["name"])
	}
	if mapping["pipelineStage"] != "Pipeline Stage" {
		t.Fatalf("expected spaced header to normalize, got %q", mapping["pipelineStage"])
	}
	if mapping["foundedYear"] != "Founded-Year" {
		t.Fatalf("expected hyphenated header to normalize, got %q", mapping["foundedYear"])
	}
	if mapping["revenue"] != "Revenue" {
		t.Fatalf("expected Revenue mapped, got %q", mapping["revenue"])
	}
	// company_name normalizes to "companyname", which is not a canonical field.
	if len(mapping) != 4 {
		t.Fatalf("expected 4 mapped fields, got %d: %v", len(mapping), mapping)
	}
}

func TestApplySuggestionsTranslatesKnownPairs(t *testing.T) {
	session := NewSession([]string{"Company Website", "Quirk Factor"}, nil)

	session.ApplySuggestions(SuggestionResult{Mappings: []AISuggestion{
		{
			CSVHeader:         "Company Website",
			SuggestedCategory: "companyInfo",
			SuggestedField:    "website",
			CategoryType:      "existing",
			Confidence:        95,
		},
		{
			CSVHeader:         "Quirk Factor",
			SuggestedCategory: "culture",
			SuggestedField:    "quirkFactor",
			CategoryType:      "new",
			Confidence:        40,
		},
	}})

	if session.Mapping["website"] != "Company Website" {
		t.Fatalf("expected website mapped from suggestion, got %v", session.Mapping)
	}
	// Pairs outside the translation table stay out of the canonical mapping.
	for field, header := range session.Mapping {
		if header == "Quirk Factor" {
			t.Fatalf("unexpected canonical mapping %q for untranslatable suggestion", field)
		}
	}
	if !session.Entries[1].IsNewCategory {
		t.Fatal("expected new-category flag for the culture suggestion")
	}
	if session.Entries[0].Suggestion == nil || session.Entries[0].Suggestion.Confidence != 95 {
		t.Fatal("expected suggestion retained on the editable entry")
	}
}

func TestConfirmRequiresName(t *testing.T) {
	session := NewSession([]string{"Industry"}, nil)
	if _, _, err := session.Confirm(); !errors.Is(err, ErrNameNotMapped) {
		t.Fatalf("expected ErrNameNotMapped, got %v", err)
	}

	if err := session.AssignField("name", "Industry"); err != nil {
		t.Fatalf("AssignField() error = %v", err)
	}
	if _, _, err := session.Confirm(); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
}

func TestOverrideReleasesAndRebinds(t *testing.T) {
	session := NewSession([]string{"Name", "Industry"}, nil)
	if session.Mapping["name"] != "Name" {
		t.Fatalf("expected heuristic name mapping, got %v", session.Mapping)
	}

	if err := session.Override("Industry", CategoryCore, "sector", false); err != nil {
		t.Fatalf("Override() error = %v", err)
	}
	if session.Mapping["sector"] != "Industry" {
		t.Fatalf("expected sector bound to Industry, got %v", session.Mapping)
	}

	// Skipping a header releases its canonical binding.
	if err := session.Override("Industry", "", "", true); err != nil {
		t.Fatalf("Override(skip) error = %v", err)
	}
	if _, ok := session.Mapping["sector"]; ok {
		t.Fatal("expected sector released after skip")
	}
	if !session.SkippedHeaders()["Industry"] {
		t.Fatal("expected Industry in the skipped set")
	}

	if err := session.Override("Unknown Header", CategoryCore, "stage", false); err == nil {
		t.Fatal("expected error for unknown header")
	}
}

func TestConfirmDropsSkippedSuggestions(t *testing.T) {
	session := NewSession([]string{"Name", "Notes"}, nil)
	session.ApplySuggestions(SuggestionResult{Mappings: []AISuggestion{
		{CSVHeader: "Name", SuggestedCategory: CategoryCore, SuggestedField: "name"},
		{CSVHeader: "Notes", SuggestedCategory: "diligence", SuggestedField: "notes"},
	}})
	if err := session.Override("Notes", "diligence", "notes", true); err != nil {
		t.Fatalf("Override() error = %v", err)
	}

	_, retained, err := session.Confirm()
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	for _, suggestion := range retained {
		if suggestion.CSVHeader == "Notes" {
			t.Fatal("skipped header's suggestion should not be retained")
		}
	}
}

func TestGroupsPinsCoreAndUnmappedFirst(t *testing.T) {
	groups := Groups([]EditableMapping{
		{Header: "Quirk", Category: "culture"},
		{Header: "Name", Category: CategoryCore},
		{Header: "Mystery", Category: ""},
	})
	if groups[0].Category != CategoryCore || groups[1].Category != CategoryUnmapped {
		t.Fatalf("expected core then unmapped first, got %q, %q", groups[0].Category, groups[1].Category)
	}
	if len(groups[1].Entries) != 1 || groups[1].Entries[0].Header != "Mystery" {
		t.Fatalf("expected empty category bucketed as unmapped, got %+v", groups[1].Entries)
	}
	if groups[2].Category != "culture" {
		t.Fatalf("expected culture group third, got %q", groups[2].Category)
	}
}

func TestInferDataType(t *testing.T) {
	cases := []struct {
		name    string
		samples []string
		want    string
	}{
		{"numbers", []string{"12", "3.5", "40%"}, "number"},
		{"dates", []string{"2024-01-15", "01/20/2024"}, "date"},
		{"urls", []string{"https://acme.dev", "http://beta.io"}, "url"},
		{"emails", []string{"a@b.co", "c@d.io"}, "email"},
		{"mixed text wins", []string{"hello", "world", "42"}, "text"},
		{"empty", nil, "text"},
		{"blank samples", []string{"", "  "}, "text"},
		{"number date tie", []string{"42", "2024-01-15"}, "number"},
		{"url email tie", []string{"https://acme.dev", "a@b.co"}, "url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferDataType(tc.samples); got != tc.want {
				t.Fatalf("InferDataType(%v) = %q, want %q", tc.samples, got, tc.want)
			}
		})
	}
}

func TestInferDataTypeTieIsStable(t *testing.T) {
	samples := []string{"42", "2024-01-15", "hello"}
	want := InferDataType(samples)
	for i := 0; i < 50; i++ {
		if got := InferDataType(samples); got != want {
			t.Fatalf("run %d: InferDataType(%v) = %q, previously %q", i, samples, got, want)
		}
	}
	if want != "number" {
		t.Fatalf("three-way tie should resolve to number, got %q", want)
	}
}

func TestBuildStartups(t *testing.T) {
	headers := []string{"Company Name", "Industry", "Deal Score", "Founders", "Internal Notes", "Fax Number"}
	rows := [][]string{
		{"Acme Robotics", "Robotics", "8.4", "Ada Lovelace; Grace Hopper", "met at demo day", "555-0100"},
		{"", "Biotech", "5", "", "no name, skipped", ""},
		{"Beta Labs", "Biotech", "60%", "Alan Kay", "", "555-0101"},
	}
	mapping := ColumnMapping{
		"name":     "Company Name",
		"sector":   "Industry",
		"score":    "Deal Score",
		"founders": "Founders",
	}
	skipped := map[string]bool{"Fax Number": true}

	startups, schema := BuildStartups(mapping, headers, rows, skipped, []AISuggestion{
		{CSVHeader: "Internal Notes", SuggestedCategory: "diligence"},
	})

	if len(startups) != 2 {
		t.Fatalf("expected 2 startups (row without name dropped), got %d", len(startups))
	}

	first := startups[0]
	if first.ID != "su_acme-robotics" {
		t.Fatalf("expected deterministic id from name, got %q", first.ID)
	}
	if first.Score != 8.4 {
		t.Fatalf("expected score 8.4, got %v", first.Score)
	}
	if first.PipelineStage != "sourced" {
		t.Fatalf("expected default pipeline stage, got %q", first.PipelineStage)
	}
	if first.TeamInfo == nil || len(first.TeamInfo.Founders) != 2 {
		t.Fatalf("expected 2 founders split from list, got %+v", first.TeamInfo)
	}
	if first.CustomData["internal-notes"] != "met at demo day" {
		t.Fatalf("expected unmapped column in custom data, got %v", first.CustomData)
	}
	if _, ok := first.CustomData["fax-number"]; ok {
		t.Fatal("skipped column must not land in custom data")
	}

	// Percent suffix on a numeric value still parses.
	if startups[1].Score != 60 {
		t.Fatalf("expected score 60 from \"60%%\", got %v", startups[1].Score)
	}

	if len(schema) != 1 {
		t.Fatalf("expected 1 custom field, got %d: %+v", len(schema), schema)
	}
	if schema[0].Key != "internal-notes" || schema[0].Category != "diligence" {
		t.Fatalf("unexpected schema entry %+v", schema[0])
	}

	// A rerun produces the same ids, so bulk insert deduplicates.
	again, _ := BuildStartups(mapping, headers, rows, skipped, nil)
	if again[0].ID != first.ID {
		t.Fatalf("expected stable ids across runs, got %q vs %q", again[0].ID, first.ID)
	}
}

func TestTranslateSuggestion(t *testing.T) {
	if field, ok := TranslateSuggestion("companyInfo", "website"); !ok || field != "website" {
		t.Fatalf("expected website translation, got %q %v", field, ok)
	}
	if _, ok := TranslateSuggestion("culture", "quirkFactor"); ok {
		t.Fatal("expected unknown pair to not translate")
	}
}
