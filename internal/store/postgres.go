package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/sync/errgroup"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Email, user.DisplayName, user.PasswordHash, user.Role)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, role FROM users WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, password_hash, role FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ── Startups ──

const summaryColumns = `id, name, sector, stage, country, description, score, rank, pipeline_stage, updated_at`

// ListStartups returns one page of summaries plus the total matching count.
// The count and page queries run concurrently; there is no ordering
// dependency between them.
func (s *PostgresStore) ListStartups(ctx context.Context, filter ListFilter) ([]StartupSummary, int, error) {
	where, args := buildStartupFilter(filter)

	offset := (filter.Page - 1) * filter.Limit

	var (
		items []StartupSummary
		total int
	)
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		query := `SELECT COUNT(*) FROM startups` + where
		if err := s.db.QueryRowContext(groupCtx, query, args...).Scan(&total); err != nil {
			return fmt.Errorf("count startups: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		columns := summaryColumns + `, FALSE AS shortlisted`
		pageArgs := args
		if filter.UserID != "" {
			columns = summaryColumns + fmt.Sprintf(`, EXISTS(
				SELECT 1 FROM shortlists sl WHERE sl.startup_id = startups.id AND sl.user_id = $%d
			) AS shortlisted`, len(args)+1)
			pageArgs = append(append([]any{}, args...), filter.UserID)
		}
		query := fmt.Sprintf(`SELECT %s FROM startups%s ORDER BY score DESC, name ASC LIMIT %d OFFSET %d`,
			columns, where, filter.Limit, offset)
		rows, err := s.db.QueryContext(groupCtx, query, pageArgs...)
		if err != nil {
			return fmt.Errorf("list startups: %w", err)
		}
		defer rows.Close()

		items = make([]StartupSummary, 0)
		for rows.Next() {
			var item StartupSummary
			if err := rows.Scan(&item.ID, &item.Name, &item.Sector, &item.Stage, &item.Country,
				&item.Description, &item.Score, &item.Rank, &item.PipelineStage, &item.UpdatedAt,
				&item.Shortlisted); err != nil {
				return fmt.Errorf("scan startup: %w", err)
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate startups: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func buildStartupFilter(filter ListFilter) (string, []any) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 5)

	next := func() int { return len(args) + 1 }

	if filter.Sector != "" {
		clauses = append(clauses, fmt.Sprintf("sector = $%d", next()))
		args = append(args, filter.Sector)
	}
	if filter.PipelineStage != "" {
		clauses = append(clauses, fmt.Sprintf("pipeline_stage = $%d", next()))
		args = append(args, filter.PipelineStage)
	}
	if filter.Search != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", next(), next()+1))
		pattern := "%" + escapeLike(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.MinScore != nil {
		clauses = append(clauses, fmt.Sprintf("score >= $%d", next()))
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		clauses = append(clauses, fmt.Sprintf("score <= $%d", next()))
		args = append(args, *filter.MaxScore)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

const startupColumns = `id, name, sector, stage, country, description, score, rank, pipeline_stage,
	company_info, team_info, market_info, product_info, business_info, sales_info,
	competitive_info, risk_info, opportunity_info, ai_scores, legal_diligence,
	custom_data, custom_schema, created_at, updated_at`

func (s *PostgresStore) GetStartup(ctx context.Context, startupID string) (Startup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+startupColumns+` FROM startups WHERE id=$1`, startupID)
	return scanStartup(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStartup(row rowScanner) (Startup, error) {
	var (
		item Startup
		bags [13]sql.NullString
	)
	err := row.Scan(&item.ID, &item.Name, &item.Sector, &item.Stage, &item.Country,
		&item.Description, &item.Score, &item.Rank, &item.PipelineStage,
		&bags[0], &bags[1], &bags[2], &bags[3], &bags[4], &bags[5], &bags[6],
		&bags[7], &bags[8], &bags[9], &bags[10], &bags[11], &bags[12],
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Startup{}, err
	}

	targets := []any{
		&item.CompanyInfo, &item.TeamInfo, &item.MarketInfo, &item.ProductInfo,
		&item.BusinessInfo, &item.SalesInfo, &item.CompetitiveInfo, &item.RiskInfo,
		&item.OpportunityInfo, &item.AIScores, &item.LegalDiligence,
		&item.CustomData, &item.CustomSchema,
	}
	for i, target := range targets {
		if !bags[i].Valid || bags[i].String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(bags[i].String), target); err != nil {
			return Startup{}, fmt.Errorf("decode startup bag %d: %w", i, err)
		}
	}
	return item, nil
}

func bagArg(value any) (any, error) {
	if value == nil || reflect.ValueOf(value).IsNil() {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode bag: %w", err)
	}
	return string(data), nil
}

func startupArgs(item Startup) ([]any, error) {
	bags := []any{
		item.CompanyInfo, item.TeamInfo, item.MarketInfo, item.ProductInfo,
		item.BusinessInfo, item.SalesInfo, item.CompetitiveInfo, item.RiskInfo,
		item.OpportunityInfo,
	}
	args := []any{item.ID, item.Name, item.Sector, item.Stage, item.Country,
		item.Description, item.Score, item.Rank, item.PipelineStage}
	for _, bag := range bags {
		arg, err := bagArg(bag)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	for _, open := range []any{item.AIScores, item.LegalDiligence, item.CustomData, item.CustomSchema} {
		arg, err := bagArg(open)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

const insertStartupSQL = `
	INSERT INTO startups (id, name, sector, stage, country, description, score, rank, pipeline_stage,
		company_info, team_info, market_info, product_info, business_info, sales_info,
		competitive_info, risk_info, opportunity_info, ai_scores, legal_diligence,
		custom_data, custom_schema)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	ON CONFLICT (id) DO NOTHING
`

func (s *PostgresStore) InsertStartup(ctx context.Context, item Startup) error {
	args, err := startupArgs(item)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertStartupSQL, args...); err != nil {
		return fmt.Errorf("insert startup: %w", err)
	}
	return nil
}

// BulkInsertStartups inserts records one statement at a time inside a single
// transaction, skipping ids that already exist, and returns the number of
// rows actually inserted. Ranks are not touched here.
func (s *PostgresStore) BulkInsertStartups(ctx context.Context, items []Startup) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, item := range items {
		args, err := startupArgs(item)
		if err != nil {
			return 0, err
		}
		result, err := tx.ExecContext(ctx, insertStartupSQL, args...)
		if err != nil {
			return 0, fmt.Errorf("bulk insert startup %s: %w", item.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("bulk insert rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit bulk insert: %w", err)
	}
	return inserted, nil
}

// RecalculateRanks reassigns rank as a contiguous 1..N permutation ordered by
// (score desc, name asc) in one atomic statement. No reader can observe a
// partially assigned ranking.
func (s *PostgresStore) RecalculateRanks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE startups AS s
		SET rank = ranked.new_rank
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY score DESC, name ASC) AS new_rank
			FROM startups
		) AS ranked
		WHERE s.id = ranked.id
	`)
	if err != nil {
		return fmt.Errorf("recalculate ranks: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateStartup(ctx context.Context, item Startup) error {
	args, err := startupArgs(item)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE startups SET name=$2, sector=$3, stage=$4, country=$5, description=$6,
			score=$7, rank=$8, pipeline_stage=$9,
			company_info=$10, team_info=$11, market_info=$12, product_info=$13,
			business_info=$14, sales_info=$15, competitive_info=$16, risk_info=$17,
			opportunity_info=$18, ai_scores=$19, legal_diligence=$20,
			custom_data=$21, custom_schema=$22, updated_at=NOW()
		WHERE id=$1
	`, args...)
	if err != nil {
		return fmt.Errorf("update startup: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update startup rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteStartup(ctx context.Context, startupID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM startups WHERE id=$1`, startupID)
	if err != nil {
		return fmt.Errorf("delete startup: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete startup rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) StartupExists(ctx context.Context, startupID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM startups WHERE id=$1)`, startupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check startup: %w", err)
	}
	return exists, nil
}

// ── Legal diligence ──

// MutateLegalDiligence loads the diligence bag under a row lock, applies
// mutate, and writes the result back in the same transaction.
func (s *PostgresStore) MutateLegalDiligence(ctx context.Context, startupID string, mutate func(*LegalDiligence) error) (*LegalDiligence, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin diligence update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT legal_diligence FROM startups WHERE id=$1 FOR UPDATE`, startupID).Scan(&raw)
	if err != nil {
		return nil, err
	}

	diligence := &LegalDiligence{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), diligence); err != nil {
			return nil, fmt.Errorf("decode legal diligence: %w", err)
		}
	}

	if err := mutate(diligence); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(diligence)
	if err != nil {
		return nil, fmt.Errorf("encode legal diligence: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE startups SET legal_diligence=$2, updated_at=NOW() WHERE id=$1`, startupID, string(encoded)); err != nil {
		return nil, fmt.Errorf("save legal diligence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit diligence update: %w", err)
	}
	return diligence, nil
}

func (s *PostgresStore) GetLegalDiligence(ctx context.Context, startupID string) (*LegalDiligence, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT legal_diligence FROM startups WHERE id=$1`, startupID).Scan(&raw)
	if err != nil {
		return nil, err
	}
	diligence := &LegalDiligence{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), diligence); err != nil {
			return nil, fmt.Errorf("decode legal diligence: %w", err)
		}
	}
	return diligence, nil
}

// ── Threshold issues ──

func (s *PostgresStore) InsertThresholdIssue(ctx context.Context, issue ThresholdIssue) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threshold_issues (id, startup_id, category, issue, risk_rating, mitigation, status, source, identified_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, issue.ID, issue.StartupID, issue.Category, issue.Issue, issue.RiskRating,
		issue.Mitigation, issue.Status, issue.Source, issue.IdentifiedDate)
	if err != nil {
		return fmt.Errorf("insert threshold issue: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListThresholdIssues(ctx context.Context, startupID string) ([]ThresholdIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, startup_id, category, issue, risk_rating, mitigation, status, source, identified_date, created_at
		FROM threshold_issues
		WHERE startup_id=$1
		ORDER BY created_at DESC
	`, startupID)
	if err != nil {
		return nil, fmt.Errorf("list threshold issues: %w", err)
	}
	defer rows.Close()

	items := make([]ThresholdIssue, 0)
	for rows.Next() {
		var item ThresholdIssue
		if err := rows.Scan(&item.ID, &item.StartupID, &item.Category, &item.Issue,
			&item.RiskRating, &item.Mitigation, &item.Status, &item.Source,
			&item.IdentifiedDate, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan threshold issue: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threshold issues: %w", err)
	}
	return items, nil
}

// ── Shortlists ──

func (s *PostgresStore) AddShortlist(ctx context.Context, userID, startupID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shortlists (user_id, startup_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, startup_id) DO NOTHING
	`, userID, startupID)
	if err != nil {
		return fmt.Errorf("add shortlist: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveShortlist(ctx context.Context, userID, startupID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM shortlists WHERE user_id=$1 AND startup_id=$2`, userID, startupID)
	if err != nil {
		return fmt.Errorf("remove shortlist: %w", err)
	}
	return nil
}
