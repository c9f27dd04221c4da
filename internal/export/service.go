package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dealflow/api/internal/store"
)

// Service renders startup profiles into downloadable documents.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the startup as the requested format.
func (s *Service) Export(startup *store.Startup, issues []store.ThresholdIssue, req Request) (*Result, error) {
	data := buildTemplateData(startup, issues, req.IncludeIssues)
	html, err := RenderProfileHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render profile: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return renderPDF(html, startup.Name)
	case FormatDOCX:
		return renderDOCX(html, startup.Name)
	default:
		return nil, fmt.Errorf("unsupported export format %q", req.Format)
	}
}

func buildTemplateData(startup *store.Startup, issues []store.ThresholdIssue, includeIssues bool) TemplateData {
	data := TemplateData{
		Name:          startup.Name,
		Sector:        startup.Sector,
		Stage:         startup.Stage,
		Country:       startup.Country,
		PipelineStage: startup.PipelineStage,
		Score:         startup.Score,
		Description:   startup.Description,
		GeneratedAt:   time.Now(),
	}
	if startup.Rank != nil {
		data.Rank = strconv.Itoa(*startup.Rank)
	}

	data.Sections = buildSections(startup)

	if includeIssues {
		for _, issue := range issues {
			data.Issues = append(data.Issues, TemplateIssue{
				Category:   issue.Category,
				Issue:      issue.Issue,
				RiskRating: issue.RiskRating,
				Mitigation: issue.Mitigation,
				Status:     issue.Status,
			})
		}
	}
	return data
}

func buildSections(startup *store.Startup) []TemplateSection {
	var sections []TemplateSection

	add := func(title string, rows []TemplateRow) {
		filtered := rows[:0]
		for _, row := range rows {
			if strings.TrimSpace(row.Value) != "" {
				filtered = append(filtered, row)
			}
		}
		if len(filtered) > 0 {
			sections = append(sections, TemplateSection{Title: title, Rows: filtered})
		}
	}

	if info := startup.CompanyInfo; info != nil {
		founded := ""
		if info.FoundedYear > 0 {
			founded = strconv.Itoa(info.FoundedYear)
		}
		employees := ""
		if info.Employees > 0 {
			employees = strconv.Itoa(info.Employees)
		}
		add("Company", []TemplateRow{
			{Label: "Website", Value: info.Website},
			{Label: "Legal name", Value: info.LegalName},
			{Label: "Founded", Value: founded},
			{Label: "Location", Value: info.Location},
			{Label: "Employees", Value: employees},
		})
	}
	if info := startup.TeamInfo; info != nil {
		teamSize := ""
		if info.TeamSize > 0 {
			teamSize = strconv.Itoa(info.TeamSize)
		}
		add("Team", []TemplateRow{
			{Label: "Founders", Value: strings.Join(info.Founders, ", ")},
			{Label: "Team size", Value: teamSize},
			{Label: "Key people", Value: info.KeyPeople},
		})
	}
	if info := startup.MarketInfo; info != nil {
		add("Market", []TemplateRow{
			{Label: "Market size", Value: info.MarketSize},
			{Label: "Growth rate", Value: info.GrowthRate},
			{Label: "Target customer", Value: info.TargetCustomer},
		})
	}
	if info := startup.ProductInfo; info != nil {
		add("Product", []TemplateRow{
			{Label: "Summary", Value: info.Summary},
			{Label: "Differentiator", Value: info.Differentiator},
			{Label: "Tech stack", Value: info.TechStack},
		})
	}
	if info := startup.BusinessInfo; info != nil {
		add("Business", []TemplateRow{
			{Label: "Model", Value: info.Model},
			{Label: "Revenue", Value: info.Revenue},
			{Label: "Burn", Value: info.Burn},
			{Label: "Funding", Value: info.Funding},
		})
	}
	if info := startup.SalesInfo; info != nil {
		add("Sales", []TemplateRow{
			{Label: "Pipeline", Value: info.Pipeline},
			{Label: "Channels", Value: info.Channels},
			{Label: "Key accounts", Value: info.KeyAccounts},
		})
	}
	if info := startup.CompetitiveInfo; info != nil {
		add("Competition", []TemplateRow{
			{Label: "Competitors", Value: strings.Join(info.Competitors, ", ")},
			{Label: "Moat", Value: info.Moat},
		})
	}
	if info := startup.RiskInfo; info != nil {
		add("Risks", []TemplateRow{
			{Label: "Summary", Value: info.Summary},
			{Label: "Flags", Value: strings.Join(info.Flags, ", ")},
		})
	}
	if info := startup.OpportunityInfo; info != nil {
		add("Opportunity", []TemplateRow{
			{Label: "Thesis", Value: info.Thesis},
			{Label: "Next steps", Value: info.NextSteps},
		})
	}
	return sections
}
