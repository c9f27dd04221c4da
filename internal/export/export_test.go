package export

import (
	"strings"
	"testing"
	"time"

	"dealflow/api/internal/store"
)

func TestRenderProfileHTML(t *testing.T) {
	rank := 3
	startup := &store.Startup{
		Name:          "Acme Robotics",
		Sector:        "Robotics",
		Stage:         "Seed",
		Country:       "DE",
		PipelineStage: "diligence",
		Score:         8.4,
		Rank:          &rank,
		Description:   "Autonomous warehouse robots",
		CompanyInfo: &store.CompanyInfo{
			Website:  "https://acme.example",
			Location: "Berlin",
		},
		TeamInfo: &store.TeamInfo{
			Founders: []string{"Ada", "Grace"},
			TeamSize: 12,
		},
	}
	issues := []store.ThresholdIssue{
		{Category: "Legal", Issue: "Pending IP dispute", RiskRating: "High", Status: "Open"},
	}

	data := buildTemplateData(startup, issues, true)
	html, err := RenderProfileHTML(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		"Acme Robotics",
		"Rank: 3",
		"Score: 8.4",
		"https://acme.example",
		"Ada, Grace",
		"Pending IP dispute",
		`class="risk-High"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}

func TestRenderProfileHTMLEscapesMarkup(t *testing.T) {
	data := TemplateData{
		Name:        "<script>alert(1)</script>",
		GeneratedAt: time.Now(),
	}
	html, err := RenderProfileHTML(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Error("template did not escape HTML in startup name")
	}
}

func TestBuildSectionsSkipsEmpty(t *testing.T) {
	startup := &store.Startup{
		Name:        "Empty Co",
		CompanyInfo: &store.CompanyInfo{},
		MarketInfo:  &store.MarketInfo{TargetCustomer: "SMBs"},
	}
	sections := buildSections(startup)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Title != "Market" {
		t.Errorf("expected Market section, got %s", sections[0].Title)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Acme Robotics":         "Acme-Robotics",
		"weird/../name!":        "weirdname",
		"":                      "startup",
		strings.Repeat("a", 60): strings.Repeat("a", 50),
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
