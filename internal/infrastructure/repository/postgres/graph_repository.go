package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/id"
	qb "github.com/riskibarqy/sports-feed-sync/internal/platform/querybuilder"
)

type GraphRepository struct {
	db  *sqlx.DB
	ids id.Generator
}

func NewGraphRepository(db *sqlx.DB) *GraphRepository {
	return &GraphRepository{db: db, ids: id.NewRandomGenerator()}
}

// level maps a hierarchy kind onto its table and parent link column.
type level struct {
	table        string
	parentColumn string
}

var levels = map[graph.Kind]level{
	graph.KindSeason: {table: "seasons", parentColumn: "tournament_external_id"},
	graph.KindStage:  {table: "stages", parentColumn: "season_external_id"},
	graph.KindRound:  {table: "rounds", parentColumn: "stage_external_id"},
	graph.KindGame:   {table: "games", parentColumn: "round_external_id"},
}

func levelOf(kind graph.Kind) (level, error) {
	lv, ok := levels[kind]
	if !ok {
		return level{}, fmt.Errorf("kind %q is not part of the status hierarchy", kind)
	}
	return lv, nil
}

func findByExternalID[T any](ctx context.Context, db *sqlx.DB, table, externalID string) (T, bool, error) {
	var row T
	query, args, err := qb.Select("*").From(table).
		Where(qb.Eq("external_id", externalID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return row, false, fmt.Errorf("build select %s query: %w", table, err)
	}

	err = db.GetContext(ctx, &row, query, args...)
	if isRetryableStatementError(err) {
		err = db.GetContext(ctx, &row, query, args...)
	}
	if err != nil {
		if isNotFound(err) {
			return row, false, nil
		}
		return row, false, fmt.Errorf("select %s by external id: %w", table, err)
	}
	return row, true, nil
}

func (r *GraphRepository) FindTournament(ctx context.Context, externalID string) (graph.Tournament, bool, error) {
	row, ok, err := findByExternalID[tournamentTableModel](ctx, r.db, "tournaments", externalID)
	if err != nil || !ok {
		return graph.Tournament{}, ok, err
	}
	return graph.Tournament{
		ID:         row.PublicID,
		ExternalID: row.ExternalID,
		Code:       row.Code,
		Name:       row.Name,
		Sports:     []string(row.Sports),
	}, true, nil
}

func (r *GraphRepository) FindSeason(ctx context.Context, externalID string) (graph.Season, bool, error) {
	row, ok, err := findByExternalID[seasonTableModel](ctx, r.db, "seasons", externalID)
	if err != nil || !ok {
		return graph.Season{}, ok, err
	}
	return graph.Season{
		ID:                   row.PublicID,
		ExternalID:           row.ExternalID,
		TournamentExternalID: row.TournamentExternalID,
		Year:                 row.Year,
		Status:               graph.Status(row.Status),
		StartDate:            utcPtr(row.StartDate),
		EndDate:              utcPtr(row.EndDate),
		ContestantIDs:        []string(row.ContestantIDs),
	}, true, nil
}

func (r *GraphRepository) FindStage(ctx context.Context, externalID string) (graph.Stage, bool, error) {
	row, ok, err := findByExternalID[stageTableModel](ctx, r.db, "stages", externalID)
	if err != nil || !ok {
		return graph.Stage{}, ok, err
	}
	return graph.Stage{
		ID:               row.PublicID,
		ExternalID:       row.ExternalID,
		SeasonExternalID: row.SeasonExternalID,
		Name:             row.Name,
		Status:           graph.Status(row.Status),
		StartDate:        utcPtr(row.StartDate),
		EndDate:          utcPtr(row.EndDate),
	}, true, nil
}

func (r *GraphRepository) FindRound(ctx context.Context, externalID string) (graph.Round, bool, error) {
	row, ok, err := findByExternalID[roundTableModel](ctx, r.db, "rounds", externalID)
	if err != nil || !ok {
		return graph.Round{}, ok, err
	}
	return graph.Round{
		ID:              row.PublicID,
		ExternalID:      row.ExternalID,
		StageExternalID: row.StageExternalID,
		Number:          row.Number,
		Name:            row.Name,
		Status:          graph.Status(row.Status),
		StartDate:       utcPtr(row.StartDate),
		EndDate:         utcPtr(row.EndDate),
		Properties:      map[string]string(row.Properties),
	}, true, nil
}

func (r *GraphRepository) FindGame(ctx context.Context, externalID string) (graph.Game, bool, error) {
	row, ok, err := findByExternalID[gameTableModel](ctx, r.db, "games", externalID)
	if err != nil || !ok {
		return graph.Game{}, ok, err
	}
	item := graph.Game{
		ID:              row.PublicID,
		ExternalID:      row.ExternalID,
		RoundExternalID: row.RoundExternalID,
		Status:          graph.Status(row.Status),
		Contestants:     []string(row.ContestantIDs),
		StartDate:       utcPtr(row.StartDate),
		Properties:      map[string]string(row.Properties),
	}
	if row.HomeScore.Valid && row.AwayScore.Valid {
		item.Score = &graph.Score{
			Home: int(nullInt64ToInt64(row.HomeScore)),
			Away: int(nullInt64ToInt64(row.AwayScore)),
		}
	}
	return item, true, nil
}

func (r *GraphRepository) FindContestant(ctx context.Context, externalID string) (graph.Contestant, bool, error) {
	row, ok, err := findByExternalID[contestantTableModel](ctx, r.db, "contestants", externalID)
	if err != nil || !ok {
		return graph.Contestant{}, ok, err
	}
	return graph.Contestant{
		ID:             row.PublicID,
		ExternalID:     row.ExternalID,
		Name:           row.Name,
		Type:           graph.ContestantType(row.Type),
		TeamExternalID: row.TeamExternalID.String,
	}, true, nil
}

func (r *GraphRepository) UpsertTournament(ctx context.Context, item graph.Tournament) error {
	return r.upsert(ctx, "tournaments", tournamentTableModel{
		PublicID:   r.publicID(item.ID),
		ExternalID: item.ExternalID,
		Code:       item.Code,
		Name:       item.Name,
		Sports:     pq.StringArray(item.Sports),
	}, `
		ON CONFLICT (external_id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			sports = EXCLUDED.sports,
			updated_at = NOW()
	`)
}

func (r *GraphRepository) UpsertSeason(ctx context.Context, item graph.Season) error {
	return r.upsert(ctx, "seasons", seasonTableModel{
		PublicID:             r.publicID(item.ID),
		ExternalID:           item.ExternalID,
		TournamentExternalID: item.TournamentExternalID,
		Year:                 item.Year,
		Status:               string(item.Status),
		StartDate:            item.StartDate,
		EndDate:              item.EndDate,
		ContestantIDs:        pq.StringArray(item.ContestantIDs),
	}, `
		ON CONFLICT (external_id) DO UPDATE SET
			tournament_external_id = EXCLUDED.tournament_external_id,
			year = EXCLUDED.year,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			contestant_external_ids = EXCLUDED.contestant_external_ids,
			updated_at = NOW()
	`)
}

func (r *GraphRepository) UpsertStage(ctx context.Context, item graph.Stage) error {
	return r.upsert(ctx, "stages", stageTableModel{
		PublicID:         r.publicID(item.ID),
		ExternalID:       item.ExternalID,
		SeasonExternalID: item.SeasonExternalID,
		Name:             item.Name,
		Status:           string(item.Status),
		StartDate:        item.StartDate,
		EndDate:          item.EndDate,
	}, `
		ON CONFLICT (external_id) DO UPDATE SET
			season_external_id = EXCLUDED.season_external_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			updated_at = NOW()
	`)
}

func (r *GraphRepository) UpsertRound(ctx context.Context, item graph.Round) error {
	return r.upsert(ctx, "rounds", roundTableModel{
		PublicID:        r.publicID(item.ID),
		ExternalID:      item.ExternalID,
		StageExternalID: item.StageExternalID,
		Number:          item.Number,
		Name:            item.Name,
		Status:          string(item.Status),
		StartDate:       item.StartDate,
		EndDate:         item.EndDate,
		Properties:      propertiesJSON(item.Properties),
	}, `
		ON CONFLICT (external_id) DO UPDATE SET
			stage_external_id = EXCLUDED.stage_external_id,
			number = EXCLUDED.number,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			properties = EXCLUDED.properties,
			updated_at = NOW()
	`)
}

func (r *GraphRepository) UpsertGame(ctx context.Context, item graph.Game) error {
	model := gameTableModel{
		PublicID:        r.publicID(item.ID),
		ExternalID:      item.ExternalID,
		RoundExternalID: item.RoundExternalID,
		Status:          string(item.Status),
		ContestantIDs:   pq.StringArray(item.Contestants),
		StartDate:       item.StartDate,
		Properties:      propertiesJSON(item.Properties),
	}
	if item.Score != nil {
		model.HomeScore = sql.NullInt64{Int64: int64(item.Score.Home), Valid: true}
		model.AwayScore = sql.NullInt64{Int64: int64(item.Score.Away), Valid: true}
	}

	return r.upsert(ctx, "games", model, `
		ON CONFLICT (external_id) DO UPDATE SET
			round_external_id = EXCLUDED.round_external_id,
			status = EXCLUDED.status,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			contestant_external_ids = EXCLUDED.contestant_external_ids,
			start_date = EXCLUDED.start_date,
			properties = EXCLUDED.properties,
			updated_at = NOW()
	`)
}

func (r *GraphRepository) UpsertContestant(ctx context.Context, item graph.Contestant) error {
	model := contestantTableModel{
		PublicID:   r.publicID(item.ID),
		ExternalID: item.ExternalID,
		Name:       item.Name,
		Type:       string(item.Type),
	}
	if item.TeamExternalID != "" {
		model.TeamExternalID = sql.NullString{String: item.TeamExternalID, Valid: true}
	}

	return r.upsert(ctx, "contestants", model, `
		ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			contestant_type = EXCLUDED.contestant_type,
			team_external_id = EXCLUDED.team_external_id,
			updated_at = NOW()
	`)
}

// ReplaceStandings swaps the whole table of a parent inside one transaction.
func (r *GraphRepository) ReplaceStandings(ctx context.Context, parentKind graph.Kind, parentExternalID string, rows []graph.StandingRow) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace standings tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deleteQuery := `DELETE FROM standings WHERE parent_kind = $1 AND parent_external_id = $2`
	if _, err = tx.ExecContext(ctx, deleteQuery, string(parentKind), parentExternalID); err != nil {
		return fmt.Errorf("delete standings of %s %s: %w", parentKind, parentExternalID, err)
	}

	for _, row := range rows {
		query, args, buildErr := qb.InsertModel("standings", standingTableModel{
			ParentKind:           string(parentKind),
			ParentExternalID:     parentExternalID,
			ContestantExternalID: row.ContestantExternalID,
			Rank:                 row.Rank,
			Played:               row.Played,
			Won:                  row.Won,
			Drawn:                row.Drawn,
			Lost:                 row.Lost,
			ScoreFor:             row.ScoreFor,
			ScoreAgainst:         row.ScoreAgainst,
			Points:               row.Points,
		}, "")
		if buildErr != nil {
			err = fmt.Errorf("build insert standing query: %w", buildErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert standing %s: %w", row.ContestantExternalID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace standings tx: %w", err)
	}
	return nil
}

// Standings returns the table attached to a parent, ordered by rank.
func (r *GraphRepository) Standings(ctx context.Context, parentKind graph.Kind, parentExternalID string) ([]graph.StandingRow, error) {
	query, args, err := qb.Select("*").From("standings").
		Where(
			qb.Eq("parent_kind", string(parentKind)),
			qb.Eq("parent_external_id", parentExternalID),
		).
		OrderBy("rank", "contestant_external_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select standings query: %w", err)
	}

	var rows []standingTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select standings: %w", err)
	}

	out := make([]graph.StandingRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, graph.StandingRow{
			ContestantExternalID: row.ContestantExternalID,
			Rank:                 row.Rank,
			Played:               row.Played,
			Won:                  row.Won,
			Drawn:                row.Drawn,
			Lost:                 row.Lost,
			ScoreFor:             row.ScoreFor,
			ScoreAgainst:         row.ScoreAgainst,
			Points:               row.Points,
		})
	}
	return out, nil
}

func (r *GraphRepository) ListNodes(ctx context.Context, kind graph.Kind, statuses ...graph.Status) ([]graph.Node, error) {
	lv, err := levelOf(kind)
	if err != nil {
		return nil, err
	}

	builder := qb.Select(nodeColumns(lv)...).From(lv.table)
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		builder = builder.Where(qb.Any("status", pq.Array(values)))
	}
	query, args, err := builder.OrderBy("external_id").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list %s nodes query: %w", kind, err)
	}

	return r.selectNodes(ctx, kind, query, args)
}

func (r *GraphRepository) ChildrenOf(ctx context.Context, parent graph.Node) ([]graph.Node, error) {
	childKind := parent.Kind.ChildKind()
	if childKind == "" {
		return nil, nil
	}
	lv, err := levelOf(childKind)
	if err != nil {
		return nil, err
	}

	query, args, err := qb.Select(nodeColumns(lv)...).From(lv.table).
		Where(qb.Eq(lv.parentColumn, parent.ExternalID)).
		OrderBy("external_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build children of %s query: %w", parent.Kind, err)
	}

	return r.selectNodes(ctx, childKind, query, args)
}

func (r *GraphRepository) SetStatus(ctx context.Context, kind graph.Kind, externalID string, status graph.Status) error {
	lv, err := levelOf(kind)
	if err != nil {
		return err
	}

	query, args, err := qb.Update(lv.table).
		Set("status", string(status)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("external_id", externalID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update %s status query: %w", kind, err)
	}

	return r.execOne(ctx, kind, externalID, query, args)
}

func (r *GraphRepository) SetStartDate(ctx context.Context, kind graph.Kind, externalID string, startDate time.Time) error {
	lv, err := levelOf(kind)
	if err != nil {
		return err
	}

	query, args, err := qb.Update(lv.table).
		Set("start_date", startDate.UTC()).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("external_id", externalID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update %s start date query: %w", kind, err)
	}

	return r.execOne(ctx, kind, externalID, query, args)
}

func (r *GraphRepository) ListDueNodes(ctx context.Context, kind graph.Kind, status graph.Status, reference time.Time) ([]graph.Node, error) {
	lv, err := levelOf(kind)
	if err != nil {
		return nil, err
	}

	query, args, err := qb.Select(nodeColumns(lv)...).From(lv.table).
		Where(qb.Eq("status", string(status)), qb.Lte("start_date", reference.UTC())).
		OrderBy("external_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list due %s nodes query: %w", kind, err)
	}

	return r.selectNodes(ctx, kind, query, args)
}

func (r *GraphRepository) CompareAndSetStatus(ctx context.Context, kind graph.Kind, externalID string, from, to graph.Status) (bool, error) {
	lv, err := levelOf(kind)
	if err != nil {
		return false, err
	}

	query, args, err := qb.Update(lv.table).
		Set("status", string(to)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("external_id", externalID), qb.Eq("status", string(from))).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build compare-and-set %s status query: %w", kind, err)
	}

	affected, err := r.exec(ctx, kind, externalID, query, args)
	return affected > 0, err
}

func (r *GraphRepository) SetStartDateIfStatus(ctx context.Context, kind graph.Kind, externalID string, status graph.Status, startDate time.Time) (bool, error) {
	lv, err := levelOf(kind)
	if err != nil {
		return false, err
	}

	query, args, err := qb.Update(lv.table).
		Set("start_date", startDate.UTC()).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("external_id", externalID), qb.Eq("status", string(status))).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build conditional %s start date query: %w", kind, err)
	}

	affected, err := r.exec(ctx, kind, externalID, query, args)
	return affected > 0, err
}

func (r *GraphRepository) SetGameScore(ctx context.Context, externalID string, score graph.Score) error {
	query, args, err := qb.Update("games").
		Set("home_score", score.Home).
		Set("away_score", score.Away).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("external_id", externalID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update game score query: %w", err)
	}

	return r.execOne(ctx, graph.KindGame, externalID, query, args)
}

// MergeGameProperties overlays properties onto the stored JSON object with
// the jsonb concatenation operator, so keys the patch does not name survive.
func (r *GraphRepository) MergeGameProperties(ctx context.Context, externalID string, properties map[string]string) error {
	query, args, err := qb.Update("games").
		SetExpr("properties", "properties || ?::jsonb", propertiesJSON(properties)).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("external_id", externalID)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build merge game properties query: %w", err)
	}

	return r.execOne(ctx, graph.KindGame, externalID, query, args)
}

func (r *GraphRepository) upsert(ctx context.Context, table string, model any, suffix string) error {
	query, args, err := qb.InsertModel(table, model, suffix)
	if err != nil {
		return fmt.Errorf("build upsert %s query: %w", table, err)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	if isRetryableStatementError(err) {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (r *GraphRepository) selectNodes(ctx context.Context, kind graph.Kind, query string, args []any) ([]graph.Node, error) {
	var rows []nodeRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select %s nodes: %w", kind, err)
	}

	out := make([]graph.Node, 0, len(rows))
	for _, row := range rows {
		out = append(out, graph.Node{
			Kind:             kind,
			ExternalID:       row.ExternalID,
			ParentExternalID: row.ParentExternalID,
			Status:           graph.Status(row.Status),
			StartDate:        utcPtr(row.StartDate),
		})
	}
	return out, nil
}

func (r *GraphRepository) execOne(ctx context.Context, kind graph.Kind, externalID, query string, args []any) error {
	affected, err := r.exec(ctx, kind, externalID, query, args)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %q not found", kind, externalID)
	}
	return nil
}

func (r *GraphRepository) exec(ctx context.Context, kind graph.Kind, externalID, query string, args []any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if isRetryableStatementError(err) {
		result, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return 0, fmt.Errorf("update %s %s: %w", kind, externalID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected for %s %s: %w", kind, externalID, err)
	}
	return affected, nil
}

func (r *GraphRepository) publicID(incoming string) string {
	if incoming != "" {
		return incoming
	}
	return id.MustNewID(r.ids)
}

func nodeColumns(lv level) []string {
	return []string{
		"external_id",
		lv.parentColumn + " AS parent_external_id",
		"status",
		"start_date",
	}
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := value.UTC()
	return &out
}
