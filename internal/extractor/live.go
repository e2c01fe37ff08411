package extractor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

type livePayload struct {
	Sport string     `json:"sport"`
	Games []liveGame `json:"games"`
}

type liveGame struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Period    string `json:"period"`
	Minute    any    `json:"minute"`
	HomeScore *int   `json:"home_score"`
	AwayScore *int   `json:"away_score"`
}

// ExtractLive reads a near-real-time score payload. Only games the graph
// already knows are touched; if none resolve the payload yields
// ErrNoResolvableGame.
func ExtractLive(ctx context.Context, in Input) (graph.MutationList, error) {
	if in.Lookup == nil {
		return nil, fmt.Errorf("live extractor requires a graph lookup")
	}
	var payload livePayload
	if err := sonic.Unmarshal(in.Data, &payload); err != nil {
		return nil, malformed(in.Filename, "decode live payload: %v", err)
	}
	sport := firstNonEmpty(strings.ToLower(payload.Sport), in.Sport)

	b := graph.NewBuilder()
	resolved := 0
	for _, item := range payload.Games {
		gameID := strings.TrimSpace(item.ID)
		if gameID == "" {
			continue
		}
		_, exists, err := in.Lookup.FindGame(ctx, gameID)
		if err != nil {
			return nil, fmt.Errorf("find game %s: %w", gameID, err)
		}
		if !exists {
			continue
		}
		resolved++

		status := GameStatus(sport, firstNonEmpty(item.Status, item.Period))
		if status.Known() {
			b.Add(graph.SetGameStatus{GameExternalID: gameID, Status: status})
		}
		if item.HomeScore != nil && item.AwayScore != nil {
			b.Add(graph.SetGameScore{
				GameExternalID: gameID,
				Score:          graph.Score{Home: *item.HomeScore, Away: *item.AwayScore},
			})
		}
		b.Add(graph.MergeGameProperties{GameExternalID: gameID, Properties: map[string]string{
			graph.PropertyPeriod:     item.Period,
			graph.PropertyMinute:     minuteString(item.Minute),
			graph.PropertySourceFile: in.Filename,
		}})
	}

	if resolved == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResolvableGame, in.Filename)
	}
	return b.Build(), nil
}

// minuteString accepts the minute as either a JSON number or string.
func minuteString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.Itoa(int(v))
	default:
		return fmt.Sprint(v)
	}
}
