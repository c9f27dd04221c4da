package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Structured info bags stored as JSONB on the startup row. Each is optional;
// unknown incoming keys are dropped by construction when decoding.

type CompanyInfo struct {
	Website     string `json:"website,omitempty"`
	LegalName   string `json:"legalName,omitempty"`
	FoundedYear int    `json:"foundedYear,omitempty"`
	Location    string `json:"location,omitempty"`
	Employees   int    `json:"employees,omitempty"`
}

type TeamInfo struct {
	Founders  []string `json:"founders,omitempty"`
	TeamSize  int      `json:"teamSize,omitempty"`
	KeyPeople string   `json:"keyPeople,omitempty"`
}

type MarketInfo struct {
	MarketSize     string `json:"marketSize,omitempty"`
	GrowthRate     string `json:"growthRate,omitempty"`
	TargetCustomer string `json:"targetCustomer,omitempty"`
}

type ProductInfo struct {
	Summary        string `json:"summary,omitempty"`
	Differentiator string `json:"differentiator,omitempty"`
	TechStack      string `json:"techStack,omitempty"`
}

type BusinessInfo struct {
	Model   string `json:"model,omitempty"`
	Revenue string `json:"revenue,omitempty"`
	Burn    string `json:"burn,omitempty"`
	Funding string `json:"funding,omitempty"`
}

type SalesInfo struct {
	Pipeline    string `json:"pipeline,omitempty"`
	Channels    string `json:"channels,omitempty"`
	KeyAccounts string `json:"keyAccounts,omitempty"`
}

type CompetitiveInfo struct {
	Competitors []string `json:"competitors,omitempty"`
	Moat        string   `json:"moat,omitempty"`
}

type RiskInfo struct {
	Summary string   `json:"summary,omitempty"`
	Flags   []string `json:"flags,omitempty"`
}

type OpportunityInfo struct {
	Thesis    string `json:"thesis,omitempty"`
	NextSteps string `json:"nextSteps,omitempty"`
}

// CustomFieldDef describes one entry of the custom-schema descriptor built
// during CSV import for columns outside the canonical field set.
type CustomFieldDef struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Category string `json:"category,omitempty"`
	DataType string `json:"dataType,omitempty"`
}

// UploadedDocument is one extracted document inside the legal-diligence bag.
type UploadedDocument struct {
	ID             string    `json:"id"`
	FileName       string    `json:"fileName"`
	MimeType       string    `json:"mimeType"`
	ExtractedText  string    `json:"extractedText"`
	UploadedAt     time.Time `json:"uploadedAt"`
	CharacterCount int       `json:"characterCount"`
	WordCount      int       `json:"wordCount"`
}

// LegalDiligence is the nested diligence bag. Category values under
// UploadedDocuments are kept raw because a legacy shape stored a single
// document object where current writes store a list; the diligence package
// normalizes on the way in and out.
type LegalDiligence struct {
	UploadedDocuments map[string]json.RawMessage `json:"uploadedDocuments,omitempty"`
	AnalysisResults   map[string]json.RawMessage `json:"analysisResults,omitempty"`
}

type Startup struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Sector          string             `json:"sector,omitempty"`
	Stage           string             `json:"stage,omitempty"`
	Country         string             `json:"country,omitempty"`
	Description     string             `json:"description,omitempty"`
	Score           float64            `json:"score"`
	Rank            *int               `json:"rank,omitempty"`
	PipelineStage   string             `json:"pipelineStage"`
	CompanyInfo     *CompanyInfo       `json:"companyInfo,omitempty"`
	TeamInfo        *TeamInfo          `json:"teamInfo,omitempty"`
	MarketInfo      *MarketInfo        `json:"marketInfo,omitempty"`
	ProductInfo     *ProductInfo       `json:"productInfo,omitempty"`
	BusinessInfo    *BusinessInfo      `json:"businessInfo,omitempty"`
	SalesInfo       *SalesInfo         `json:"salesInfo,omitempty"`
	CompetitiveInfo *CompetitiveInfo   `json:"competitiveInfo,omitempty"`
	RiskInfo        *RiskInfo          `json:"riskInfo,omitempty"`
	OpportunityInfo *OpportunityInfo   `json:"opportunityInfo,omitempty"`
	AIScores        map[string]float64 `json:"aiScores,omitempty"`
	LegalDiligence  *LegalDiligence    `json:"legalDiligence,omitempty"`
	CustomData      map[string]string  `json:"customData,omitempty"`
	CustomSchema    []CustomFieldDef   `json:"customSchema,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// StartupSummary is the reduced projection returned by the list endpoint.
// It deliberately excludes the JSONB bags.
type StartupSummary struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Sector        string    `json:"sector,omitempty"`
	Stage         string    `json:"stage,omitempty"`
	Country       string    `json:"country,omitempty"`
	Description   string    `json:"description,omitempty"`
	Score         float64   `json:"score"`
	Rank          *int      `json:"rank,omitempty"`
	PipelineStage string    `json:"pipelineStage"`
	Shortlisted   bool      `json:"shortlisted"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ListFilter carries normalized list parameters. Page and Limit are already
// validated and clamped by the caller.
type ListFilter struct {
	Page          int
	Limit         int
	Sector        string
	PipelineStage string
	Search        string
	MinScore      *float64
	MaxScore      *float64
	UserID        string
}

type ThresholdIssue struct {
	ID             string    `json:"id"`
	StartupID      string    `json:"startupId"`
	Category       string    `json:"category"`
	Issue          string    `json:"issue"`
	RiskRating     string    `json:"riskRating"`
	Mitigation     string    `json:"mitigation"`
	Status         string    `json:"status"`
	Source         string    `json:"source"`
	IdentifiedDate time.Time `json:"identifiedDate"`
	CreatedAt      time.Time `json:"createdAt"`
}
