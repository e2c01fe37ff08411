package postgres

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lib/pq"
)

type tournamentTableModel struct {
	ID         int64          `db:"id,omitinsert"`
	PublicID   string         `db:"public_id"`
	ExternalID string         `db:"external_id"`
	Code       string         `db:"code"`
	Name       string         `db:"name"`
	Sports     pq.StringArray `db:"sports"`
	CreatedAt  time.Time      `db:"created_at,omitinsert"`
	UpdatedAt  time.Time      `db:"updated_at,omitinsert"`
}

type seasonTableModel struct {
	ID                   int64          `db:"id,omitinsert"`
	PublicID             string         `db:"public_id"`
	ExternalID           string         `db:"external_id"`
	TournamentExternalID string         `db:"tournament_external_id"`
	Year                 string         `db:"year"`
	Status               string         `db:"status"`
	StartDate            *time.Time     `db:"start_date"`
	EndDate              *time.Time     `db:"end_date"`
	ContestantIDs        pq.StringArray `db:"contestant_external_ids"`
	CreatedAt            time.Time      `db:"created_at,omitinsert"`
	UpdatedAt            time.Time      `db:"updated_at,omitinsert"`
}

type stageTableModel struct {
	ID               int64      `db:"id,omitinsert"`
	PublicID         string     `db:"public_id"`
	ExternalID       string     `db:"external_id"`
	SeasonExternalID string     `db:"season_external_id"`
	Name             string     `db:"name"`
	Status           string     `db:"status"`
	StartDate        *time.Time `db:"start_date"`
	EndDate          *time.Time `db:"end_date"`
	CreatedAt        time.Time  `db:"created_at,omitinsert"`
	UpdatedAt        time.Time  `db:"updated_at,omitinsert"`
}

type roundTableModel struct {
	ID              int64          `db:"id,omitinsert"`
	PublicID        string         `db:"public_id"`
	ExternalID      string         `db:"external_id"`
	StageExternalID string         `db:"stage_external_id"`
	Number          int            `db:"number"`
	Name            string         `db:"name"`
	Status          string         `db:"status"`
	StartDate       *time.Time     `db:"start_date"`
	EndDate         *time.Time     `db:"end_date"`
	Properties      propertiesJSON `db:"properties"`
	CreatedAt       time.Time      `db:"created_at,omitinsert"`
	UpdatedAt       time.Time      `db:"updated_at,omitinsert"`
}

type gameTableModel struct {
	ID              int64          `db:"id,omitinsert"`
	PublicID        string         `db:"public_id"`
	ExternalID      string         `db:"external_id"`
	RoundExternalID string         `db:"round_external_id"`
	Status          string         `db:"status"`
	HomeScore       sql.NullInt64  `db:"home_score"`
	AwayScore       sql.NullInt64  `db:"away_score"`
	ContestantIDs   pq.StringArray `db:"contestant_external_ids"`
	StartDate       *time.Time     `db:"start_date"`
	Properties      propertiesJSON `db:"properties"`
	CreatedAt       time.Time      `db:"created_at,omitinsert"`
	UpdatedAt       time.Time      `db:"updated_at,omitinsert"`
}

type contestantTableModel struct {
	ID             int64          `db:"id,omitinsert"`
	PublicID       string         `db:"public_id"`
	ExternalID     string         `db:"external_id"`
	Name           string         `db:"name"`
	Type           string         `db:"contestant_type"`
	TeamExternalID sql.NullString `db:"team_external_id"`
	CreatedAt      time.Time      `db:"created_at,omitinsert"`
	UpdatedAt      time.Time      `db:"updated_at,omitinsert"`
}

type standingTableModel struct {
	ParentKind           string    `db:"parent_kind"`
	ParentExternalID     string    `db:"parent_external_id"`
	ContestantExternalID string    `db:"contestant_external_id"`
	Rank                 int       `db:"rank"`
	Played               int       `db:"played"`
	Won                  int       `db:"won"`
	Drawn                int       `db:"drawn"`
	Lost                 int       `db:"lost"`
	ScoreFor             int       `db:"score_for"`
	ScoreAgainst         int       `db:"score_against"`
	Points               int       `db:"points"`
	UpdatedAt            time.Time `db:"updated_at,omitinsert"`
}

// nodeRow is the projection shared by every hierarchy level.
type nodeRow struct {
	ExternalID       string     `db:"external_id"`
	ParentExternalID string     `db:"parent_external_id"`
	Status           string     `db:"status"`
	StartDate        *time.Time `db:"start_date"`
}

// propertiesJSON stores a string property bag in a jsonb column. Values go
// out as text since lib/pq would hex-encode a byte slice as bytea.
type propertiesJSON map[string]string

func (p propertiesJSON) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	raw, err := sonic.Marshal(map[string]string(p))
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	return string(raw), nil
}

func (p *propertiesJSON) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan properties: unsupported type %T", src)
	}

	out := make(map[string]string)
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal properties: %w", err)
	}
	if len(out) == 0 {
		*p = nil
		return nil
	}
	*p = out
	return nil
}
