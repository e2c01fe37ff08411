package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

type stubReader struct {
	seasons map[string]bool
	stages  map[string]bool
	rounds  map[string]bool
	games   map[string]bool
}

func (s stubReader) FindTournament(context.Context, string) (graph.Tournament, bool, error) {
	return graph.Tournament{}, false, nil
}

func (s stubReader) FindSeason(_ context.Context, id string) (graph.Season, bool, error) {
	return graph.Season{ExternalID: id}, s.seasons[id], nil
}

func (s stubReader) FindStage(_ context.Context, id string) (graph.Stage, bool, error) {
	return graph.Stage{ExternalID: id}, s.stages[id], nil
}

func (s stubReader) FindRound(_ context.Context, id string) (graph.Round, bool, error) {
	return graph.Round{ExternalID: id}, s.rounds[id], nil
}

func (s stubReader) FindGame(_ context.Context, id string) (graph.Game, bool, error) {
	return graph.Game{ExternalID: id}, s.games[id], nil
}

func (s stubReader) FindContestant(context.Context, string) (graph.Contestant, bool, error) {
	return graph.Contestant{}, false, nil
}

const squadsXML = `<squads competition="ENG1" code="EPL" name="Premier League" season="2024" start_date="2024-08-16">
  <team id="ARS" name="Arsenal">
    <player id="P1" name="Saka"/>
    <player id="P2" name="Odegaard"/>
  </team>
  <team id="LIV" name="Liverpool">
    <player id="P3" name="Salah"/>
  </team>
  <team id="" name="ignored"/>
</squads>`

const resultsXML = `<results competition="ENG1" season="2024">
  <stage name="Regular Season">
    <round number="1" name="Matchday 1">
      <match id="G1" date="2024-08-17" time="15:00" status="FT" venue="Emirates" attendance="60000">
        <home id="ARS" score="2"/>
        <away id="LIV" score="1"/>
      </match>
      <match id="G2" date="2024-08-24" time="17:30" status="NS">
        <home id="LIV"/>
        <away id="ARS"/>
      </match>
    </round>
    <round number="2" name="Awards night" date="2024-09-01" time="20:00" status="SCH"/>
  </stage>
</results>`

func TestExtractSquads(t *testing.T) {
	t.Parallel()

	list, err := NewRegistry().Extract(context.Background(), FormatSquads, Input{
		Filename: "ENG1-2024-squads.xml",
		Data:     []byte(squadsXML),
		Sport:    "Football",
	})
	if err != nil {
		t.Fatalf("extract squads: %v", err)
	}

	var (
		season     *graph.UpsertSeason
		tournament *graph.UpsertTournament
		links      int
		players    int
	)
	for _, m := range list {
		switch v := m.(type) {
		case graph.UpsertTournament:
			tournament = &v
		case graph.UpsertSeason:
			season = &v
		case graph.UpsertContestant:
			if v.Contestant.Type == graph.ContestantIndividual {
				players++
			}
		case graph.LinkPlayerTeam:
			links++
		}
	}

	if tournament == nil || tournament.Tournament.Code != "EPL" || tournament.Tournament.Sports[0] != "football" {
		t.Fatalf("unexpected tournament: %+v", tournament)
	}
	if season == nil || season.Season.ExternalID != "ENG1-2024" || len(season.Season.ContestantIDs) != 2 {
		t.Fatalf("unexpected season: %+v", season)
	}
	if season.Season.StartDate == nil || !season.Season.StartDate.Equal(time.Date(2024, 8, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected season start: %v", season.Season.StartDate)
	}
	if players != 3 || links != 3 {
		t.Fatalf("expected 3 players and 3 links, got %d / %d", players, links)
	}
	if _, ok := list[0].(graph.UpsertTournament); !ok {
		t.Fatalf("tournament must be created before its season")
	}
}

func TestExtractResults(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	list, err := ExtractResults(context.Background(), Input{
		Filename:        "ENG1-2024-results.xml",
		Data:            []byte(resultsXML),
		Sport:           "football",
		Lookup:          stubReader{seasons: map[string]bool{"ENG1-2024": true}},
		Now:             now,
		UTCOffset:       time.Hour,
		FutureOnlyDates: true,
	})
	if err != nil {
		t.Fatalf("extract results: %v", err)
	}

	var (
		stageID   string
		rounds    []graph.Round
		games     = map[string]graph.Game{}
		statuses  = map[string]graph.Status{}
		scores    = map[string]graph.Score{}
		dates     = map[string]graph.SetGameStartDate{}
		propsByID = map[string]map[string]string{}
	)
	for _, m := range list {
		switch v := m.(type) {
		case graph.UpsertStage:
			stageID = v.Stage.ExternalID
		case graph.UpsertRound:
			rounds = append(rounds, v.Round)
		case graph.UpsertGame:
			games[v.Game.ExternalID] = v.Game
		case graph.SetGameStatus:
			statuses[v.GameExternalID] = v.Status
		case graph.SetGameScore:
			scores[v.GameExternalID] = v.Score
		case graph.SetGameStartDate:
			dates[v.GameExternalID] = v
		case graph.MergeGameProperties:
			propsByID[v.GameExternalID] = v.Properties
		}
	}

	if stageID != "ENG1-2024-regular-season" {
		t.Fatalf("unexpected derived stage id %q", stageID)
	}
	if len(rounds) != 2 || rounds[0].ExternalID != "ENG1-2024-regular-season-r1" || rounds[0].Number != 1 {
		t.Fatalf("unexpected rounds: %+v", rounds)
	}
	if rounds[1].StartDate == nil || rounds[1].Status != graph.StatusScheduled {
		t.Fatalf("game-less round must carry its own start and status: %+v", rounds[1])
	}
	if rounds[0].StartDate != nil {
		t.Fatalf("rounds with games take their start from the time propagation sweep")
	}

	g1 := games["G1"]
	if len(g1.Contestants) != 2 || g1.Contestants[0] != "ARS" {
		t.Fatalf("unexpected contestants: %+v", g1.Contestants)
	}
	wantStart := time.Date(2024, 8, 17, 14, 0, 0, 0, time.UTC)
	if g1.StartDate == nil || !g1.StartDate.Equal(wantStart) {
		t.Fatalf("expected offset-adjusted start %s, got %v", wantStart, g1.StartDate)
	}
	if !dates["G1"].FutureOnly {
		t.Fatalf("expected future-only start date mutation")
	}
	if statuses["G1"] != graph.StatusTerminated || statuses["G2"] != graph.StatusScheduled {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
	if scores["G1"] != (graph.Score{Home: 2, Away: 1}) {
		t.Fatalf("unexpected score: %+v", scores["G1"])
	}
	if _, ok := scores["G2"]; ok {
		t.Fatalf("unplayed game must not get a score")
	}
	if propsByID["G1"][graph.PropertyWinner] != "home" || propsByID["G1"][graph.PropertyVenue] != "Emirates" {
		t.Fatalf("unexpected properties: %+v", propsByID["G1"])
	}
	if propsByID["G1"][graph.PropertySourceFile] != "ENG1-2024-results.xml" {
		t.Fatalf("expected source file property")
	}
}

func TestExtractResults_UnknownSeasonIsUnresolved(t *testing.T) {
	t.Parallel()

	_, err := ExtractResults(context.Background(), Input{
		Filename: "ENG1-2024-results.xml",
		Data:     []byte(resultsXML),
		Lookup:   stubReader{},
	})
	if !errors.Is(err, graph.ErrUnresolvedReference) {
		t.Fatalf("expected unresolved reference, got %v", err)
	}
}

func TestExtractResults_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"broken xml":     `<results competition="ENG1" season="2024"><stage>`,
		"no season":      `<results competition="ENG1"></results>`,
		"bad date":       `<results competition="ENG1" season="2024"><stage name="S"><round number="1"><match id="G1" date="17/08/2024"/></round></stage></results>`,
		"bad score":      `<results competition="ENG1" season="2024"><stage name="S"><round number="1"><match id="G1"><home id="A" score="x"/><away id="B" score="1"/></match></round></stage></results>`,
		"negative score": `<results competition="ENG1" season="2024"><stage name="S"><round number="1"><match id="G2"><home id="A" score="-1"/><away id="B" score="0"/></match></round></stage></results>`,
		"missing id":     `<results competition="ENG1" season="2024"><stage name="S"><round number="1"><match/></round></stage></results>`,
		"wrong root":     `<squads competition="ENG1" season="2024"/>`,
		"round number":   `<results competition="ENG1" season="2024"><stage name="S"><round number="one"/></stage></results>`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractResults(context.Background(), Input{
				Filename: "ENG1-2024-results.xml",
				Data:     []byte(doc),
				Lookup:   stubReader{seasons: map[string]bool{"ENG1-2024": true}},
			})
			if !errors.Is(err, ErrMalformedFeed) {
				t.Fatalf("expected malformed feed, got %v", err)
			}
		})
	}
}

func TestExtractStandings(t *testing.T) {
	t.Parallel()

	doc := `<standings competition="ENG1" season="2024">
  <table>
    <row team="ARS" rank="1" played="3" won="3" points="9"/>
    <row team="LIV" rank="2" played="3" won="2" drawn="1" points="7"/>
  </table>
  <table stage="Regular Season" round="1">
    <row team="ARS" rank="1" points="3"/>
  </table>
  <table stage="Play-offs">
    <row team="ARS" rank="1"/>
  </table>
</standings>`

	list, err := ExtractStandings(context.Background(), Input{
		Filename: "ENG1-2024-standings.xml",
		Data:     []byte(doc),
		Lookup: stubReader{
			seasons: map[string]bool{"ENG1-2024": true},
			stages:  map[string]bool{"ENG1-2024-regular-season": true},
			rounds:  map[string]bool{"ENG1-2024-regular-season-r1": true},
		},
	})
	if err != nil {
		t.Fatalf("extract standings: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected the unknown play-off table to be skipped, got %d mutations", len(list))
	}

	season := list[0].(graph.AttachStandings)
	if season.ParentKind != graph.KindSeason || len(season.Rows) != 2 || season.Rows[1].Points != 7 {
		t.Fatalf("unexpected season table: %+v", season)
	}
	round := list[1].(graph.AttachStandings)
	if round.ParentKind != graph.KindRound || round.ParentExternalID != "ENG1-2024-regular-season-r1" {
		t.Fatalf("unexpected round table: %+v", round)
	}
}

func TestExtractStandings_MissingSeasonIsSoftSkip(t *testing.T) {
	t.Parallel()

	_, err := ExtractStandings(context.Background(), Input{
		Filename: "ENG1-2024-standings.xml",
		Data:     []byte(`<standings competition="ENG1" season="2024"><table><row team="ARS"/></table></standings>`),
		Lookup:   stubReader{},
	})
	if !errors.Is(err, graph.ErrUnresolvedReference) {
		t.Fatalf("expected unresolved reference, got %v", err)
	}
}

func TestExtractLive(t *testing.T) {
	t.Parallel()

	payload := `{"sport":"football","games":[
		{"id":"G1","status":"2H","period":"2H","minute":67,"home_score":1,"away_score":0},
		{"id":"UNKNOWN","status":"1H"}
	]}`
	list, err := ExtractLive(context.Background(), Input{
		Filename: "live-20240817-1500.json",
		Data:     []byte(payload),
		Lookup:   stubReader{games: map[string]bool{"G1": true}},
	})
	if err != nil {
		t.Fatalf("extract live: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected status, score and properties for G1 only, got %d", len(list))
	}
	if status := list[0].(graph.SetGameStatus); status.Status != graph.StatusOnGoing {
		t.Fatalf("unexpected live status %s", status.Status)
	}
	if props := list[2].(graph.MergeGameProperties); props.Properties[graph.PropertyMinute] != "67" {
		t.Fatalf("unexpected minute %q", props.Properties[graph.PropertyMinute])
	}

	_, err = ExtractLive(context.Background(), Input{
		Filename: "live-x.json",
		Data:     []byte(`{"games":[{"id":"NOPE"}]}`),
		Lookup:   stubReader{},
	})
	if !errors.Is(err, ErrNoResolvableGame) {
		t.Fatalf("expected no resolvable game, got %v", err)
	}
}

func TestRegistryRejectsUnknownFormatAndEmptyData(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if _, err := r.Extract(context.Background(), Format("odds"), Input{Data: []byte("x")}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected unknown format, got %v", err)
	}
	if _, err := r.Extract(context.Background(), FormatResults, Input{Filename: "empty.xml"}); !errors.Is(err, ErrMalformedFeed) {
		t.Fatalf("expected malformed feed for empty data, got %v", err)
	}
	if got := r.Formats(); len(got) != 4 || got[0] != FormatLive {
		t.Fatalf("unexpected formats %v", got)
	}
}
