package extractor

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

type standingsDocument struct {
	XMLName     xml.Name         `xml:"standings"`
	Competition string           `xml:"competition,attr"`
	Season      string           `xml:"season,attr"`
	Tables      []standingsTable `xml:"table"`
}

type standingsTable struct {
	StageID     string         `xml:"stage_id,attr"`
	Stage       string         `xml:"stage,attr"`
	RoundID     string         `xml:"round_id,attr"`
	RoundNumber string         `xml:"round,attr"`
	Rows        []standingsRow `xml:"row"`
}

type standingsRow struct {
	Team    string `xml:"team,attr"`
	Rank    string `xml:"rank,attr"`
	Played  string `xml:"played,attr"`
	Won     string `xml:"won,attr"`
	Drawn   string `xml:"drawn,attr"`
	Lost    string `xml:"lost,attr"`
	For     string `xml:"for,attr"`
	Against string `xml:"against,attr"`
	Points  string `xml:"points,attr"`
}

// ExtractStandings attaches league tables to their season, stage or round.
// A missing season makes the whole document an unresolved reference; a
// table whose stage or round is unknown is skipped.
func ExtractStandings(ctx context.Context, in Input) (graph.MutationList, error) {
	var doc standingsDocument
	if err := decodeXML(in.Data, &doc); err != nil {
		return nil, malformed(in.Filename, "decode standings: %v", err)
	}
	competition := strings.TrimSpace(doc.Competition)
	seasonLabel := strings.TrimSpace(doc.Season)
	if competition == "" || seasonLabel == "" {
		return nil, malformed(in.Filename, "standings without competition or season")
	}
	if in.Lookup == nil {
		return nil, fmt.Errorf("standings extractor requires a graph lookup")
	}
	seasonID := SeasonExternalID(competition, seasonLabel)

	_, exists, err := in.Lookup.FindSeason(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("find season %s: %w", seasonID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: season %s", graph.ErrUnresolvedReference, seasonID)
	}

	b := graph.NewBuilder()
	for _, table := range doc.Tables {
		kind, parentID, ok, err := resolveStandingsParent(ctx, in.Lookup, seasonID, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		rows := make([]graph.StandingRow, 0, len(table.Rows))
		for _, raw := range table.Rows {
			row, err := parseStandingRow(raw)
			if err != nil {
				return nil, malformed(in.Filename, "standings row %q: %v", raw.Team, err)
			}
			rows = append(rows, row)
		}
		b.Add(graph.AttachStandings{ParentKind: kind, ParentExternalID: parentID, Rows: rows})
	}
	return b.Build(), nil
}

func resolveStandingsParent(ctx context.Context, lookup graph.Reader, seasonID string, table standingsTable) (graph.Kind, string, bool, error) {
	if strings.TrimSpace(table.StageID) == "" && strings.TrimSpace(table.Stage) == "" {
		return graph.KindSeason, seasonID, true, nil
	}

	stageID := StageExternalID(seasonID, table.StageID, table.Stage)
	_, exists, err := lookup.FindStage(ctx, stageID)
	if err != nil {
		return "", "", false, fmt.Errorf("find stage %s: %w", stageID, err)
	}
	if !exists {
		return "", "", false, nil
	}
	if strings.TrimSpace(table.RoundID) == "" && strings.TrimSpace(table.RoundNumber) == "" {
		return graph.KindStage, stageID, true, nil
	}

	roundID := RoundExternalID(stageID, table.RoundID, table.RoundNumber, "")
	_, exists, err = lookup.FindRound(ctx, roundID)
	if err != nil {
		return "", "", false, fmt.Errorf("find round %s: %w", roundID, err)
	}
	if !exists {
		return "", "", false, nil
	}
	return graph.KindRound, roundID, true, nil
}

func parseStandingRow(raw standingsRow) (graph.StandingRow, error) {
	row := graph.StandingRow{ContestantExternalID: strings.TrimSpace(raw.Team)}
	if row.ContestantExternalID == "" {
		return row, fmt.Errorf("missing team")
	}
	fields := []struct {
		value string
		dst   *int
	}{
		{raw.Rank, &row.Rank},
		{raw.Played, &row.Played},
		{raw.Won, &row.Won},
		{raw.Drawn, &row.Drawn},
		{raw.Lost, &row.Lost},
		{raw.For, &row.ScoreFor},
		{raw.Against, &row.ScoreAgainst},
		{raw.Points, &row.Points},
	}
	for _, field := range fields {
		value := strings.TrimSpace(field.value)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return row, err
		}
		*field.dst = parsed
	}
	return row, nil
}
