package extractor

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

type resultsDocument struct {
	XMLName     xml.Name       `xml:"results"`
	Competition string         `xml:"competition,attr"`
	Season      string         `xml:"season,attr"`
	Stages      []resultsStage `xml:"stage"`
}

type resultsStage struct {
	ID     string         `xml:"id,attr"`
	Name   string         `xml:"name,attr"`
	Rounds []resultsRound `xml:"round"`
}

type resultsRound struct {
	ID      string         `xml:"id,attr"`
	Number  string         `xml:"number,attr"`
	Name    string         `xml:"name,attr"`
	Date    string         `xml:"date,attr"`
	Time    string         `xml:"time,attr"`
	Status  string         `xml:"status,attr"`
	Matches []resultsMatch `xml:"match"`
}

type resultsMatch struct {
	ID         string       `xml:"id,attr"`
	Date       string       `xml:"date,attr"`
	Time       string       `xml:"time,attr"`
	Status     string       `xml:"status,attr"`
	Period     string       `xml:"period,attr"`
	Minute     string       `xml:"minute,attr"`
	Venue      string       `xml:"venue,attr"`
	Attendance string       `xml:"attendance,attr"`
	Referee    string       `xml:"referee,attr"`
	Home       *resultsSide `xml:"home"`
	Away       *resultsSide `xml:"away"`
}

type resultsSide struct {
	ID    string `xml:"id,attr"`
	Score string `xml:"score,attr"`
}

// StageExternalID derives a stage id when the feed does not carry one.
func StageExternalID(seasonExternalID, explicitID, name string) string {
	if id := strings.TrimSpace(explicitID); id != "" {
		return id
	}
	if s := slug(name); s != "" {
		return seasonExternalID + "-" + s
	}
	return seasonExternalID + "-main"
}

// RoundExternalID derives a round id from its number or name when the feed
// does not carry one.
func RoundExternalID(stageExternalID, explicitID, number, name string) string {
	if id := strings.TrimSpace(explicitID); id != "" {
		return id
	}
	if n := strings.TrimSpace(number); n != "" {
		return stageExternalID + "-r" + n
	}
	if s := slug(name); s != "" {
		return stageExternalID + "-" + s
	}
	return stageExternalID + "-r0"
}

// ExtractResults reads a results/fixtures feed. It requires the season to be
// known already and creates stages, rounds and games beneath it. Game status
// comes from the literal period/status code; parents are left to the
// lifecycle sweep.
func ExtractResults(ctx context.Context, in Input) (graph.MutationList, error) {
	var doc resultsDocument
	if err := decodeXML(in.Data, &doc); err != nil {
		return nil, malformed(in.Filename, "decode results: %v", err)
	}
	competition := strings.TrimSpace(doc.Competition)
	seasonLabel := strings.TrimSpace(doc.Season)
	if competition == "" || seasonLabel == "" {
		return nil, malformed(in.Filename, "results without competition or season")
	}
	seasonID := SeasonExternalID(competition, seasonLabel)

	if in.Lookup != nil {
		_, exists, err := in.Lookup.FindSeason(ctx, seasonID)
		if err != nil {
			return nil, fmt.Errorf("find season %s: %w", seasonID, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: season %s", graph.ErrUnresolvedReference, seasonID)
		}
	}

	b := graph.NewBuilder()
	for _, stage := range doc.Stages {
		stageID := StageExternalID(seasonID, stage.ID, stage.Name)
		b.Stage(graph.Stage{
			ExternalID:       stageID,
			SeasonExternalID: seasonID,
			Name:             strings.TrimSpace(stage.Name),
		})

		for _, round := range stage.Rounds {
			if err := appendRound(b, in, stageID, round); err != nil {
				return nil, err
			}
		}
	}

	return b.Build(), nil
}

func appendRound(b *graph.Builder, in Input, stageID string, round resultsRound) error {
	roundID := RoundExternalID(stageID, round.ID, round.Number, round.Name)
	number := 0
	if raw := strings.TrimSpace(round.Number); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return malformed(in.Filename, "round %s number %q", roundID, raw)
		}
		number = parsed
	}
	roundStart, err := ParseProviderTime(round.Date, round.Time, in.UTCOffset)
	if err != nil {
		return malformed(in.Filename, "round %s date: %v", roundID, err)
	}

	// A round without matches is a single non-game event and carries its
	// own start date and status.
	item := graph.Round{
		ExternalID:      roundID,
		StageExternalID: stageID,
		Number:          number,
		Name:            strings.TrimSpace(round.Name),
	}
	if len(round.Matches) == 0 {
		item.StartDate = timePtr(roundStart)
		item.Status = GameStatus(in.Sport, round.Status)
	}
	b.Round(item)

	for _, match := range round.Matches {
		if err := appendMatch(b, in, roundID, match); err != nil {
			return err
		}
	}
	return nil
}

func appendMatch(b *graph.Builder, in Input, roundID string, match resultsMatch) error {
	gameID := strings.TrimSpace(match.ID)
	if gameID == "" {
		return malformed(in.Filename, "match without id in round %s", roundID)
	}
	start, err := ParseProviderTime(match.Date, match.Time, in.UTCOffset)
	if err != nil {
		return malformed(in.Filename, "match %s date: %v", gameID, err)
	}

	status := GameStatus(in.Sport, firstNonEmpty(match.Status, match.Period))

	game := graph.Game{
		ExternalID:      gameID,
		RoundExternalID: roundID,
		Status:          status,
		StartDate:       timePtr(start),
	}
	if match.Home != nil && match.Away != nil {
		home := strings.TrimSpace(match.Home.ID)
		away := strings.TrimSpace(match.Away.ID)
		if home != "" && away != "" {
			game.Contestants = []string{home, away}
		}
	}
	b.Add(graph.UpsertGame{Game: game})

	if status.Known() {
		b.Add(graph.SetGameStatus{GameExternalID: gameID, Status: status})
	}
	if !start.IsZero() {
		b.Add(graph.SetGameStartDate{GameExternalID: gameID, StartDate: start, FutureOnly: in.FutureOnlyDates})
	}

	score, hasScore, err := parseScore(match)
	if err != nil {
		return malformed(in.Filename, "match %s score: %v", gameID, err)
	}
	if hasScore {
		b.Add(graph.SetGameScore{GameExternalID: gameID, Score: score})
	}

	properties := map[string]string{
		graph.PropertyVenue:      match.Venue,
		graph.PropertyAttendance: match.Attendance,
		graph.PropertyReferee:    match.Referee,
		graph.PropertyPeriod:     match.Period,
		graph.PropertyMinute:     match.Minute,
		graph.PropertySourceFile: in.Filename,
	}
	if hasScore && status == graph.StatusTerminated {
		properties[graph.PropertyWinner] = winner(score)
	}
	b.Add(graph.MergeGameProperties{GameExternalID: gameID, Properties: properties})
	return nil
}

func parseScore(match resultsMatch) (graph.Score, bool, error) {
	if match.Home == nil || match.Away == nil {
		return graph.Score{}, false, nil
	}
	homeRaw := strings.TrimSpace(match.Home.Score)
	awayRaw := strings.TrimSpace(match.Away.Score)
	if homeRaw == "" || awayRaw == "" {
		return graph.Score{}, false, nil
	}
	home, err := strconv.Atoi(homeRaw)
	if err != nil {
		return graph.Score{}, false, err
	}
	away, err := strconv.Atoi(awayRaw)
	if err != nil {
		return graph.Score{}, false, err
	}
	if home < 0 || away < 0 {
		return graph.Score{}, false, fmt.Errorf("negative score %d-%d", home, away)
	}
	return graph.Score{Home: home, Away: away}, true, nil
}

func winner(score graph.Score) string {
	switch {
	case score.Home > score.Away:
		return "home"
	case score.Away > score.Home:
		return "away"
	default:
		return "draw"
	}
}
