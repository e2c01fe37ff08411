package graph

import (
	"strings"
	"time"
)

// Kind names one level of the graph hierarchy.
type Kind string

const (
	KindTournament Kind = "tournament"
	KindSeason     Kind = "season"
	KindStage      Kind = "stage"
	KindRound      Kind = "round"
	KindGame       Kind = "game"
	KindContestant Kind = "contestant"
)

// ChildKind returns the kind directly owned by k, or "" for leaves.
func (k Kind) ChildKind() Kind {
	switch k {
	case KindTournament:
		return KindSeason
	case KindSeason:
		return KindStage
	case KindStage:
		return KindRound
	case KindRound:
		return KindGame
	default:
		return ""
	}
}

type ContestantType string

const (
	ContestantTeam       ContestantType = "team"
	ContestantIndividual ContestantType = "individual"
)

// Tournament is the root of a competition tree. Never deleted.
type Tournament struct {
	ID         string
	ExternalID string `validate:"required"`
	Code       string
	Name       string
	Sports     []string
}

type Season struct {
	ID                   string
	ExternalID           string `validate:"required"`
	TournamentExternalID string `validate:"required"`
	Year                 string
	Status               Status
	StartDate            *time.Time
	EndDate              *time.Time
	ContestantIDs        []string
}

type Stage struct {
	ID               string
	ExternalID       string `validate:"required"`
	SeasonExternalID string `validate:"required"`
	Name             string
	Status           Status
	StartDate        *time.Time
	EndDate          *time.Time
}

type Round struct {
	ID              string
	ExternalID      string `validate:"required"`
	StageExternalID string `validate:"required"`
	Number          int
	Name            string
	Status          Status
	StartDate       *time.Time
	EndDate         *time.Time
	Properties      map[string]string
}

// Score is the final or running score of a two-sided game.
type Score struct {
	Home int
	Away int
}

// Game is the leaf of the hierarchy. Contestants holds either zero or two
// contestant external ids, home first.
type Game struct {
	ID              string
	ExternalID      string `validate:"required"`
	RoundExternalID string `validate:"required"`
	Status          Status
	Score           *Score
	Contestants     []string `validate:"omitempty,len=2,dive,required"`
	StartDate       *time.Time
	Properties      map[string]string
}

// Contestant is a team or an individual. Players point at their current team
// through TeamExternalID; a transfer rewrites that link in place.
type Contestant struct {
	ID             string
	ExternalID     string `validate:"required"`
	Name           string
	Type           ContestantType `validate:"omitempty,oneof=team individual"`
	TeamExternalID string
}

// StandingRow is one line of a league table.
type StandingRow struct {
	ContestantExternalID string `validate:"required"`
	Rank                 int
	Played               int
	Won                  int
	Drawn                int
	Lost                 int
	ScoreFor             int
	ScoreAgainst         int
	Points               int
}

// Node is the level-agnostic view used by the status and date cascades.
type Node struct {
	Kind             Kind
	ExternalID       string
	ParentExternalID string
	Status           Status
	StartDate        *time.Time
}

// Documented keys of the free-form property bags.
const (
	PropertyVenue      = "venue"
	PropertyAttendance = "attendance"
	PropertyReferee    = "referee"
	PropertyPeriod     = "period"
	PropertyMinute     = "minute"
	PropertyWinner     = "winner"
	PropertySourceFile = "source_file"
)

// MergeProperties returns base overlaid with patch. Empty values in patch are
// ignored so a partial feed never erases a known fact.
func MergeProperties(base, patch map[string]string) map[string]string {
	if len(patch) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// EarliestStart returns the minimum non-nil start date among nodes.
func EarliestStart(nodes []Node) *time.Time {
	var earliest *time.Time
	for _, node := range nodes {
		if node.StartDate == nil || node.StartDate.IsZero() {
			continue
		}
		if earliest == nil || node.StartDate.Before(*earliest) {
			value := *node.StartDate
			earliest = &value
		}
	}
	return earliest
}
