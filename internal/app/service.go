package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"dealflow/api/internal/archive"
	"dealflow/api/internal/auth"
	"dealflow/api/internal/authpw"
	"dealflow/api/internal/blob"
	"dealflow/api/internal/config"
	"dealflow/api/internal/diligence"
	"dealflow/api/internal/export"
	"dealflow/api/internal/extract"
	"dealflow/api/internal/mapping"
	"dealflow/api/internal/rbac"
	"dealflow/api/internal/search"
	"dealflow/api/internal/session"
	"dealflow/api/internal/store"
	"dealflow/api/internal/util"
)

const (
	defaultPage  = 1
	defaultLimit = 50
	maxLimit     = 10000
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

var allowedRiskRatings = []string{"High", "Medium", "Low"}

var allowedIssueStatuses = []string{"Open", "In Progress", "Resolved", "Accepted Risk"}

type dataStore interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, user store.User) error
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	ListStartups(ctx context.Context, filter store.ListFilter) ([]store.StartupSummary, int, error)
	GetStartup(ctx context.Context, startupID string) (store.Startup, error)
	InsertStartup(ctx context.Context, item store.Startup) error
	BulkInsertStartups(ctx context.Context, items []store.Startup) (int, error)
	RecalculateRanks(ctx context.Context) error
	UpdateStartup(ctx context.Context, item store.Startup) error
	DeleteStartup(ctx context.Context, startupID string) error
	StartupExists(ctx context.Context, startupID string) (bool, error)
	MutateLegalDiligence(ctx context.Context, startupID string, mutate func(*store.LegalDiligence) error) (*store.LegalDiligence, error)
	GetLegalDiligence(ctx context.Context, startupID string) (*store.LegalDiligence, error)
	InsertThresholdIssue(ctx context.Context, issue store.ThresholdIssue) error
	ListThresholdIssues(ctx context.Context, startupID string) ([]store.ThresholdIssue, error)
	AddShortlist(ctx context.Context, userID, startupID string) error
	RemoveShortlist(ctx context.Context, userID, startupID string) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	SaveScrollPosition(ctx context.Context, sessionID, view string, y float64) error
	GetScrollPosition(ctx context.Context, sessionID, view string) (session.ScrollPosition, bool, error)
	SetViewMode(ctx context.Context, sessionID, mode string) error
	GetViewMode(ctx context.Context, sessionID string) (string, bool, error)
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexStartup(record search.StartupRecord)
	IndexStartups(records []search.StartupRecord)
	DeleteStartup(id string)
}

type exporter interface {
	Export(startup *store.Startup, issues []store.ThresholdIssue, req export.Request) (*export.Result, error)
}

type importArchive interface {
	CommitImport(snap archive.Snapshot, csvData []byte, author string) (archive.CommitInfo, error)
	History(limit int) ([]archive.CommitInfo, error)
}

type blobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	RemovePrefix(ctx context.Context, prefix string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	passwords *authpw.Service
	search    searchService
	exporter  exporter
	archive   importArchive
	blobs     blobStore
	suggester mapping.Suggester
}

func New(cfg config.Config, dataStore dataStore, sessions sessionStore, passwords *authpw.Service,
	searchSvc searchService, exporter exporter, archiveSvc importArchive, blobs blobStore,
	suggester mapping.Suggester) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		passwords: passwords,
		search:    searchSvc,
		exporter:  exporter,
		archive:   archiveSvc,
		blobs:     blobs,
		suggester: suggester,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// ── Auth & sessions ──

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		}
		return Session{}, domainError(http.StatusBadRequest, "SIGNUP_FAILED", err.Error(), nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	cached, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, cached.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	jti := util.NewID("jti")
	claims := auth.NewClaims(user.ID, user.Email, user.Role, jti, s.cfg.AccessTTL)

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := time.Now().Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ── Startups ──

// ListParams carries the raw query-string values; normalization happens in
// parseListFilter so invalid numerics silently fall back to defaults.
type ListParams struct {
	Page          string
	Limit         string
	Sector        string
	PipelineStage string
	Search        string
	MinScore      string
	MaxScore      string
}

func parseListFilter(params ListParams, userID string) store.ListFilter {
	page := defaultPage
	if parsed, err := strconv.Atoi(strings.TrimSpace(params.Page)); err == nil && parsed >= 1 {
		page = parsed
	}
	limit := defaultLimit
	if parsed, err := strconv.Atoi(strings.TrimSpace(params.Limit)); err == nil && parsed >= 1 {
		limit = parsed
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	filter := store.ListFilter{
		Page:          page,
		Limit:         limit,
		Sector:        strings.TrimSpace(params.Sector),
		PipelineStage: strings.TrimSpace(params.PipelineStage),
		Search:        strings.TrimSpace(params.Search),
		UserID:        userID,
	}
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(params.MinScore), 64); err == nil {
		filter.MinScore = &parsed
	}
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(params.MaxScore), 64); err == nil {
		filter.MaxScore = &parsed
	}
	return filter
}

func (s *Service) ListStartups(ctx context.Context, params ListParams, userID string) (map[string]any, error) {
	filter := parseListFilter(params, userID)

	items, total, err := s.store.ListStartups(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + filter.Limit - 1) / filter.Limit
	}
	return map[string]any{
		"startups": items,
		"pagination": map[string]any{
			"page":       filter.Page,
			"limit":      filter.Limit,
			"total":      total,
			"totalPages": totalPages,
		},
	}, nil
}

// StartupInput is the typed create/update payload. Decoding into it drops
// unknown incoming fields by construction.
type StartupInput struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Sector          string                 `json:"sector"`
	Stage           string                 `json:"stage"`
	Country         string                 `json:"country"`
	Description     string                 `json:"description"`
	Score           float64                `json:"score"`
	PipelineStage   string                 `json:"pipelineStage"`
	CompanyInfo     *store.CompanyInfo     `json:"companyInfo"`
	TeamInfo        *store.TeamInfo        `json:"teamInfo"`
	MarketInfo      *store.MarketInfo      `json:"marketInfo"`
	ProductInfo     *store.ProductInfo     `json:"productInfo"`
	BusinessInfo    *store.BusinessInfo    `json:"businessInfo"`
	SalesInfo       *store.SalesInfo       `json:"salesInfo"`
	CompetitiveInfo *store.CompetitiveInfo `json:"competitiveInfo"`
	RiskInfo        *store.RiskInfo        `json:"riskInfo"`
	OpportunityInfo *store.OpportunityInfo `json:"opportunityInfo"`
	AIScores        map[string]float64     `json:"aiScores"`
	CustomData      map[string]string      `json:"customData"`
	CustomSchema    []store.CustomFieldDef `json:"customSchema"`
}

func (in StartupInput) toRecord() store.Startup {
	item := store.Startup{
		ID:              strings.TrimSpace(in.ID),
		Name:            strings.TrimSpace(in.Name),
		Sector:          strings.TrimSpace(in.Sector),
		Stage:           strings.TrimSpace(in.Stage),
		Country:         strings.TrimSpace(in.Country),
		Description:     in.Description,
		Score:           in.Score,
		PipelineStage:   strings.TrimSpace(in.PipelineStage),
		CompanyInfo:     in.CompanyInfo,
		TeamInfo:        in.TeamInfo,
		MarketInfo:      in.MarketInfo,
		ProductInfo:     in.ProductInfo,
		BusinessInfo:    in.BusinessInfo,
		SalesInfo:       in.SalesInfo,
		CompetitiveInfo: in.CompetitiveInfo,
		RiskInfo:        in.RiskInfo,
		OpportunityInfo: in.OpportunityInfo,
		AIScores:        in.AIScores,
		CustomData:      in.CustomData,
		CustomSchema:    in.CustomSchema,
	}
	if item.ID == "" {
		item.ID = util.NewID("su")
	}
	if item.PipelineStage == "" {
		item.PipelineStage = "sourced"
	}
	return item
}

// CreateStartup inserts one record and synchronously recalculates ranks.
func (s *Service) CreateStartup(ctx context.Context, input StartupInput) (store.Startup, error) {
	if strings.TrimSpace(input.Name) == "" {
		return store.Startup{}, validationError("name is required", nil)
	}

	item := input.toRecord()
	if err := s.store.InsertStartup(ctx, item); err != nil {
		return store.Startup{}, err
	}
	if err := s.store.RecalculateRanks(ctx); err != nil {
		return store.Startup{}, err
	}

	created, err := s.store.GetStartup(ctx, item.ID)
	if err != nil {
		return store.Startup{}, err
	}
	s.search.IndexStartup(searchRecord(created))
	return created, nil
}

// BulkCreateStartups inserts many records, skipping duplicates by id. Ranks
// are deliberately left untouched; callers trigger recalculation explicitly.
func (s *Service) BulkCreateStartups(ctx context.Context, inputs []StartupInput) (int, error) {
	items := make([]store.Startup, 0, len(inputs))
	for i, input := range inputs {
		if strings.TrimSpace(input.Name) == "" {
			return 0, validationErrorf("record %d: name is required", i)
		}
		items = append(items, input.toRecord())
	}

	inserted, err := s.store.BulkInsertStartups(ctx, items)
	if err != nil {
		return 0, err
	}

	records := make([]search.StartupRecord, 0, len(items))
	for _, item := range items {
		records = append(records, searchRecord(item))
	}
	s.search.IndexStartups(records)
	return inserted, nil
}

func (s *Service) RecalculateRanks(ctx context.Context) error {
	return s.store.RecalculateRanks(ctx)
}

func (s *Service) GetStartup(ctx context.Context, startupID string) (store.Startup, error) {
	return s.store.GetStartup(ctx, startupID)
}

func (s *Service) UpdateStartup(ctx context.Context, startupID string, input StartupInput) (store.Startup, error) {
	if strings.TrimSpace(input.Name) == "" {
		return store.Startup{}, validationError("name is required", nil)
	}

	item := input.toRecord()
	item.ID = startupID
	if err := s.store.UpdateStartup(ctx, item); err != nil {
		return store.Startup{}, err
	}
	if err := s.store.RecalculateRanks(ctx); err != nil {
		return store.Startup{}, err
	}

	updated, err := s.store.GetStartup(ctx, startupID)
	if err != nil {
		return store.Startup{}, err
	}
	s.search.IndexStartup(searchRecord(updated))
	return updated, nil
}

func (s *Service) DeleteStartup(ctx context.Context, startupID string) error {
	if err := s.store.DeleteStartup(ctx, startupID); err != nil {
		return err
	}
	s.search.DeleteStartup(startupID)
	if err := s.store.RecalculateRanks(ctx); err != nil {
		return err
	}
	return nil
}

func (s *Service) SetShortlisted(ctx context.Context, userID, startupID string, shortlisted bool) error {
	exists, err := s.store.StartupExists(ctx, startupID)
	if err != nil {
		return err
	}
	if !exists {
		return sql.ErrNoRows
	}
	if shortlisted {
		return s.store.AddShortlist(ctx, userID, startupID)
	}
	return s.store.RemoveShortlist(ctx, userID, startupID)
}

func searchRecord(item store.Startup) search.StartupRecord {
	return search.StartupRecord{
		ID:            item.ID,
		Name:          item.Name,
		Sector:        item.Sector,
		PipelineStage: item.PipelineStage,
		Description:   item.Description,
		Score:         item.Score,
	}
}

// ── Threshold issues ──

type ThresholdIssueInput struct {
	StartupID      string `json:"startupId"`
	Category       string `json:"category"`
	Issue          string `json:"issue"`
	RiskRating     string `json:"riskRating"`
	Mitigation     string `json:"mitigation"`
	Status         string `json:"status"`
	Source         string `json:"source"`
	IdentifiedDate string `json:"identifiedDate"`
}

func (s *Service) CreateThresholdIssue(ctx context.Context, input ThresholdIssueInput) (store.ThresholdIssue, error) {
	missing := []string{}
	for field, value := range map[string]string{
		"startupId":  input.StartupID,
		"category":   input.Category,
		"issue":      input.Issue,
		"riskRating": input.RiskRating,
		"mitigation": input.Mitigation,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return store.ThresholdIssue{}, validationError("missing required fields: "+strings.Join(missing, ", "), nil)
	}

	if !containsString(allowedRiskRatings, input.RiskRating) {
		return store.ThresholdIssue{}, validationErrorf("riskRating must be one of: %s", strings.Join(allowedRiskRatings, ", "))
	}
	status := input.Status
	if status == "" {
		status = "Open"
	}
	if !containsString(allowedIssueStatuses, status) {
		return store.ThresholdIssue{}, validationErrorf("status must be one of: %s", strings.Join(allowedIssueStatuses, ", "))
	}

	exists, err := s.store.StartupExists(ctx, input.StartupID)
	if err != nil {
		return store.ThresholdIssue{}, err
	}
	if !exists {
		return store.ThresholdIssue{}, sql.ErrNoRows
	}

	identifiedDate := time.Now()
	if input.IdentifiedDate != "" {
		parsed, err := time.Parse("2006-01-02", input.IdentifiedDate)
		if err != nil {
			return store.ThresholdIssue{}, validationError("identifiedDate must be YYYY-MM-DD", nil)
		}
		identifiedDate = parsed
	}

	source := input.Source
	if source == "" {
		source = "Manual"
	}

	issue := store.ThresholdIssue{
		ID:             util.NewID("ti"),
		StartupID:      input.StartupID,
		Category:       input.Category,
		Issue:          input.Issue,
		RiskRating:     input.RiskRating,
		Mitigation:     input.Mitigation,
		Status:         status,
		Source:         source,
		IdentifiedDate: identifiedDate,
		CreatedAt:      time.Now(),
	}
	if err := s.store.InsertThresholdIssue(ctx, issue); err != nil {
		return store.ThresholdIssue{}, err
	}
	return issue, nil
}

func (s *Service) ListThresholdIssues(ctx context.Context, startupID string) ([]store.ThresholdIssue, error) {
	if strings.TrimSpace(startupID) == "" {
		return nil, validationError("startupId is required", nil)
	}
	return s.store.ListThresholdIssues(ctx, startupID)
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// ── Legal diligence documents ──

func (s *Service) UploadLegalDocument(ctx context.Context, startupID, category, fileName, mimeType string, data []byte) (map[string]any, error) {
	if strings.TrimSpace(startupID) == "" || strings.TrimSpace(category) == "" {
		return nil, validationError("startupId and category are required", nil)
	}
	if len(data) == 0 {
		return nil, validationError("file must not be empty", nil)
	}

	extracted, err := extract.FromBytes(data, mimeType)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) || errors.Is(err, extract.ErrEmptyDocument) {
			return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_DOCUMENT", err.Error(), nil)
		}
		return nil, domainError(http.StatusInternalServerError, "EXTRACTION_FAILED", err.Error(), nil)
	}

	doc := store.UploadedDocument{
		ID:             util.NewDocumentID(time.Now()),
		FileName:       fileName,
		MimeType:       mimeType,
		ExtractedText:  extracted.Text,
		UploadedAt:     time.Now(),
		CharacterCount: extracted.CharacterCount,
		WordCount:      extracted.WordCount,
	}

	var totalDocuments int
	_, err = s.store.MutateLegalDiligence(ctx, startupID, func(bag *store.LegalDiligence) error {
		count, err := diligence.Append(bag, category, doc)
		if err != nil {
			return err
		}
		totalDocuments = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Raw-file archive is best effort; the extracted text is already durable.
	if archiveErr := s.blobs.Put(ctx, blob.DocumentKey(startupID, doc.ID, fileName), data, mimeType); archiveErr != nil {
		log.Printf("blob: archive %s for startup %s: %v", fileName, startupID, archiveErr)
	}

	return map[string]any{
		"message": "Document uploaded",
		"document": map[string]any{
			"id":             doc.ID,
			"fileName":       doc.FileName,
			"characterCount": doc.CharacterCount,
			"wordCount":      doc.WordCount,
		},
		"category":       category,
		"totalDocuments": totalDocuments,
	}, nil
}

func (s *Service) ListLegalDocuments(ctx context.Context, startupID, category string) (map[string]any, error) {
	if strings.TrimSpace(startupID) == "" {
		return nil, validationError("startupId is required", nil)
	}

	bag, err := s.store.GetLegalDiligence(ctx, startupID)
	if err != nil {
		return nil, err
	}

	if category != "" {
		docs, err := diligence.ListCategory(bag, category)
		if err != nil {
			return nil, err
		}
		return map[string]any{"category": category, "documents": docs}, nil
	}

	all, err := diligence.ListAll(bag)
	if err != nil {
		return nil, err
	}
	return map[string]any{"documents": all}, nil
}

// DeleteLegalDocument removes one document (documentID set) or a whole
// category (documentID empty). Both paths invalidate the category's cached
// analysis entry. A missing document id is a no-op success.
func (s *Service) DeleteLegalDocument(ctx context.Context, startupID, category, documentID string) (map[string]any, error) {
	if strings.TrimSpace(startupID) == "" || strings.TrimSpace(category) == "" {
		return nil, validationError("startupId and category are required", nil)
	}

	var removedIDs []string
	_, err := s.store.MutateLegalDiligence(ctx, startupID, func(bag *store.LegalDiligence) error {
		if documentID != "" {
			removedIDs = []string{documentID}
			return diligence.DeleteDocument(bag, category, documentID)
		}
		docs, listErr := diligence.ListCategory(bag, category)
		if listErr != nil {
			return listErr
		}
		removedIDs = removedIDs[:0]
		for _, doc := range docs {
			removedIDs = append(removedIDs, doc.ID)
		}
		diligence.DeleteCategory(bag, category)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range removedIDs {
		if removeErr := s.blobs.RemovePrefix(ctx, blob.DocumentKey(startupID, id, "")); removeErr != nil {
			log.Printf("blob: remove document %s for startup %s: %v", id, startupID, removeErr)
		}
	}

	if documentID != "" {
		return map[string]any{"message": "Document deleted"}, nil
	}
	return map[string]any{"message": "Category deleted"}, nil
}

// ── CSV import ──

// SuggestMapping seeds a reconciliation session from the headers, folds the
// AI suggestions into it, and returns the editable state: per-header entries,
// the canonical mapping so far, and the grouped review view. A failed
// suggestion call returns an error without any seeded state; the caller can
// retry or fall back to ReconcileMapping's manual assignments.
func (s *Service) SuggestMapping(ctx context.Context, headers []string, sampleRows [][]string, guidance string) (map[string]any, error) {
	if len(headers) == 0 {
		return nil, validationError("headers are required", nil)
	}
	if s.suggester == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SUGGESTIONS_UNAVAILABLE",
			"Mapping suggestion service not configured", nil)
	}

	result, err := s.suggester.Suggest(ctx, headers, sampleRows, mapping.KnownCategories(), guidance)
	if err != nil {
		log.Printf("mapping: suggestion call failed: %v", err)
		return nil, domainError(http.StatusBadGateway, "SUGGESTION_FAILED",
			"Mapping suggestion service failed; retry or map columns manually", nil)
	}

	session := mapping.NewSession(headers, sampleRows)
	session.ApplySuggestions(result)

	return map[string]any{
		"entries":       session.Entries,
		"mapping":       session.Mapping,
		"groups":        mapping.Groups(session.Entries),
		"confidence":    result.Confidence,
		"analysisNotes": result.AnalysisNotes,
	}, nil
}

// MappingOverride is one operator edit to a header's assignment.
type MappingOverride struct {
	Header   string `json:"header"`
	Category string `json:"category"`
	Field    string `json:"field"`
	Skip     bool   `json:"skip"`
}

// ReconcileInput replays an import session server side: the suggestions the
// operator kept, their per-header overrides, and any direct manual
// field-to-header assignments, in that order.
type ReconcileInput struct {
	Headers     []string               `json:"headers"`
	SampleRows  [][]string             `json:"sampleRows"`
	Suggestions []mapping.AISuggestion `json:"suggestions"`
	Overrides   []MappingOverride      `json:"overrides"`
	Assignments map[string]string      `json:"assignments"`
}

// ReconcileMapping runs the confirmation pass: seed, fold suggestions, apply
// overrides and manual assignments, then gate on the "name" field. The
// returned mapping and retained suggestions feed CommitImport unchanged.
func (s *Service) ReconcileMapping(input ReconcileInput) (map[string]any, error) {
	if len(input.Headers) == 0 {
		return nil, validationError("headers are required", nil)
	}

	session := mapping.NewSession(input.Headers, input.SampleRows)
	if len(input.Suggestions) > 0 {
		session.ApplySuggestions(mapping.SuggestionResult{Mappings: input.Suggestions})
	}

	for _, override := range input.Overrides {
		if err := session.Override(override.Header, override.Category, override.Field, override.Skip); err != nil {
			return nil, validationError(err.Error(), nil)
		}
	}

	fields := make([]string, 0, len(input.Assignments))
	for field := range input.Assignments {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if err := session.AssignField(field, input.Assignments[field]); err != nil {
			return nil, validationError(err.Error(), nil)
		}
	}

	confirmed, retained, err := session.Confirm()
	if err != nil {
		return nil, validationError(err.Error(), nil)
	}

	skipped := make([]string, 0)
	for header := range session.SkippedHeaders() {
		skipped = append(skipped, header)
	}
	sort.Strings(skipped)

	return map[string]any{
		"mapping":        confirmed,
		"suggestions":    retained,
		"skippedHeaders": skipped,
	}, nil
}

// ImportCommitInput is the confirmed mapping plus the parsed CSV payload.
type ImportCommitInput struct {
	FileName    string                 `json:"fileName"`
	Headers     []string               `json:"headers"`
	Rows        [][]string             `json:"rows"`
	Mapping     mapping.ColumnMapping  `json:"mapping"`
	Skipped     []string               `json:"skippedHeaders"`
	Suggestions []mapping.AISuggestion `json:"suggestions"`
	RawCSV      string                 `json:"rawCsv"`
}

func (s *Service) CommitImport(ctx context.Context, input ImportCommitInput, actor string) (map[string]any, error) {
	if strings.TrimSpace(input.Mapping["name"]) == "" {
		return nil, validationError(`the "name" field must be mapped before importing`, nil)
	}
	if len(input.Headers) == 0 || len(input.Rows) == 0 {
		return nil, validationError("headers and rows are required", nil)
	}

	skipped := make(map[string]bool, len(input.Skipped))
	for _, header := range input.Skipped {
		skipped[header] = true
	}

	items, customSchema := mapping.BuildStartups(input.Mapping, input.Headers, input.Rows, skipped, input.Suggestions)
	if len(items) == 0 {
		return nil, validationError("no rows with a name value to import", nil)
	}

	inserted, err := s.store.BulkInsertStartups(ctx, items)
	if err != nil {
		return nil, err
	}

	records := make([]search.StartupRecord, 0, len(items))
	for _, item := range items {
		records = append(records, searchRecord(item))
	}
	s.search.IndexStartups(records)

	// Snapshot the raw CSV and mapping for audit. Archive trouble should not
	// undo a successful import.
	var commit archive.CommitInfo
	if s.archive != nil {
		fileName := input.FileName
		if fileName == "" {
			fileName = "import.csv"
		}
		snap := archive.Snapshot{
			ImportID: util.NewID("imp"),
			FileName: fileName,
			Mapping:  input.Mapping,
			Skipped:  input.Skipped,
			Rows:     len(input.Rows),
			Inserted: inserted,
		}
		committed, archiveErr := s.archive.CommitImport(snap, []byte(input.RawCSV), actor)
		if archiveErr != nil {
			log.Printf("archive: commit import %s: %v", fileName, archiveErr)
		} else {
			commit = committed
		}
	}

	response := map[string]any{
		"message":      "Import complete",
		"count":        inserted,
		"skipped":      len(items) - inserted,
		"customFields": len(customSchema),
	}
	if commit.Hash != "" {
		response["archiveCommit"] = commit.Hash
	}
	return response, nil
}

func (s *Service) ImportHistory(ctx context.Context, limit int) ([]archive.CommitInfo, error) {
	if s.archive == nil {
		return []archive.CommitInfo{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return s.archive.History(limit)
}

// ── Search ──

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// ── Export ──

func (s *Service) ExportStartup(ctx context.Context, startupID string, format export.Format, includeIssues bool) (*export.Result, error) {
	if format != export.FormatPDF && format != export.FormatDOCX {
		return nil, validationError(`format must be "pdf" or "docx"`, nil)
	}

	startup, err := s.store.GetStartup(ctx, startupID)
	if err != nil {
		return nil, err
	}

	var issues []store.ThresholdIssue
	if includeIssues {
		issues, err = s.store.ListThresholdIssues(ctx, startupID)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.exporter.Export(&startup, issues, export.Request{
		StartupID:     startupID,
		Format:        format,
		IncludeIssues: includeIssues,
	})
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
		}
		return nil, err
	}
	return result, nil
}

// ── Client state ──

func (s *Service) SaveScrollPosition(ctx context.Context, sessionID, view string, y float64) error {
	if strings.TrimSpace(view) == "" {
		return validationError("view is required", nil)
	}
	return s.sessions.SaveScrollPosition(ctx, sessionID, view, y)
}

func (s *Service) GetScrollPosition(ctx context.Context, sessionID, view string) (map[string]any, error) {
	if strings.TrimSpace(view) == "" {
		return nil, validationError("view is required", nil)
	}
	position, ok, err := s.sessions.GetScrollPosition(ctx, sessionID, view)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{"view": view, "position": nil}, nil
	}
	return map[string]any{
		"view": view,
		"position": map[string]any{
			"y":         position.Y,
			"timestamp": position.Timestamp,
		},
	}, nil
}

func (s *Service) SetViewMode(ctx context.Context, sessionID, mode string) error {
	if err := s.sessions.SetViewMode(ctx, sessionID, mode); err != nil {
		if errors.Is(err, session.ErrInvalidViewMode) {
			modes := make([]string, 0, len(session.ViewModes))
			for mode := range session.ViewModes {
				modes = append(modes, mode)
			}
			sort.Strings(modes)
			return validationError("view mode must be one of: "+strings.Join(modes, ", "), nil)
		}
		return err
	}
	return nil
}

func (s *Service) GetViewMode(ctx context.Context, sessionID string) (map[string]any, error) {
	mode, ok, err := s.sessions.GetViewMode(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]any{"viewMode": "grid", "stored": false}, nil
	}
	return map[string]any{"viewMode": mode, "stored": true}, nil
}
