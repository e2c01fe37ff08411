package extractor

import (
	"bytes"
	"context"
	"encoding/xml"
	"strings"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

type squadsDocument struct {
	XMLName     xml.Name    `xml:"squads"`
	Competition string      `xml:"competition,attr"`
	Code        string      `xml:"code,attr"`
	Name        string      `xml:"name,attr"`
	Season      string      `xml:"season,attr"`
	StartDate   string      `xml:"start_date,attr"`
	EndDate     string      `xml:"end_date,attr"`
	Teams       []squadTeam `xml:"team"`
}

type squadTeam struct {
	ID      string        `xml:"id,attr"`
	Name    string        `xml:"name,attr"`
	Players []squadPlayer `xml:"player"`
}

type squadPlayer struct {
	ID   string `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// SeasonExternalID is the id every extractor uses for a competition season.
func SeasonExternalID(competition, season string) string {
	return strings.TrimSpace(competition) + "-" + strings.TrimSpace(season)
}

// ExtractSquads reads a roster feed. It creates the tournament, the season
// with its contestant list, the teams and the players, and links every
// player to the team it is listed under.
func ExtractSquads(_ context.Context, in Input) (graph.MutationList, error) {
	var doc squadsDocument
	if err := decodeXML(in.Data, &doc); err != nil {
		return nil, malformed(in.Filename, "decode squads: %v", err)
	}
	competition := strings.TrimSpace(doc.Competition)
	seasonLabel := strings.TrimSpace(doc.Season)
	if competition == "" || seasonLabel == "" {
		return nil, malformed(in.Filename, "squads without competition or season")
	}

	startDate, err := ParseProviderTime(doc.StartDate, "", in.UTCOffset)
	if err != nil {
		return nil, malformed(in.Filename, "season start: %v", err)
	}
	endDate, err := ParseProviderTime(doc.EndDate, "", in.UTCOffset)
	if err != nil {
		return nil, malformed(in.Filename, "season end: %v", err)
	}

	b := graph.NewBuilder()
	tournament := graph.Tournament{
		ExternalID: competition,
		Code:       firstNonEmpty(doc.Code, competition),
		Name:       strings.TrimSpace(doc.Name),
	}
	if in.Sport != "" {
		tournament.Sports = []string{in.Sport}
	}
	b.Tournament(tournament)

	teamIDs := make([]string, 0, len(doc.Teams))
	for _, team := range doc.Teams {
		teamID := strings.TrimSpace(team.ID)
		if teamID == "" {
			continue
		}
		teamIDs = append(teamIDs, teamID)
	}

	b.Season(graph.Season{
		ExternalID:           SeasonExternalID(competition, seasonLabel),
		TournamentExternalID: competition,
		Year:                 seasonLabel,
		StartDate:            timePtr(startDate),
		EndDate:              timePtr(endDate),
		ContestantIDs:        teamIDs,
	})

	for _, team := range doc.Teams {
		teamID := strings.TrimSpace(team.ID)
		if teamID == "" {
			continue
		}
		b.Contestant(graph.Contestant{
			ExternalID: teamID,
			Name:       strings.TrimSpace(team.Name),
			Type:       graph.ContestantTeam,
		})
		for _, player := range team.Players {
			playerID := strings.TrimSpace(player.ID)
			if playerID == "" {
				continue
			}
			b.Contestant(graph.Contestant{
				ExternalID: playerID,
				Name:       strings.TrimSpace(player.Name),
				Type:       graph.ContestantIndividual,
			})
			b.Add(graph.LinkPlayerTeam{PlayerExternalID: playerID, TeamExternalID: teamID})
		}
	}

	return b.Build(), nil
}

func decodeXML(data []byte, out any) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = true
	return decoder.Decode(out)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
