package extractor

import (
	"strings"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/graph"
)

// Per-sport period/status codes. Codes not listed fall back to the shared
// table and then to graph.ParseStatus.
var sportStatusCodes = map[string]map[string]graph.Status{
	"football": {
		"1H": graph.StatusOnGoing, "HT": graph.StatusOnGoing, "2H": graph.StatusOnGoing,
		"ET": graph.StatusOnGoing, "BT": graph.StatusOnGoing, "P": graph.StatusOnGoing,
		"FT": graph.StatusTerminated, "AET": graph.StatusTerminated, "PEN": graph.StatusTerminated,
		"AWD": graph.StatusTerminated, "WO": graph.StatusTerminated,
	},
	"rugby": {
		"1H": graph.StatusOnGoing, "HT": graph.StatusOnGoing, "2H": graph.StatusOnGoing,
		"ET": graph.StatusOnGoing, "FT": graph.StatusTerminated, "AET": graph.StatusTerminated,
	},
	"basketball": {
		"Q1": graph.StatusOnGoing, "Q2": graph.StatusOnGoing, "Q3": graph.StatusOnGoing,
		"Q4": graph.StatusOnGoing, "OT": graph.StatusOnGoing, "HT": graph.StatusOnGoing,
		"FT": graph.StatusTerminated, "AOT": graph.StatusTerminated,
	},
	"tennis": {
		"S1": graph.StatusOnGoing, "S2": graph.StatusOnGoing, "S3": graph.StatusOnGoing,
		"S4": graph.StatusOnGoing, "S5": graph.StatusOnGoing,
		"RET": graph.StatusTerminated, "W/O": graph.StatusTerminated, "FIN": graph.StatusTerminated,
	},
	"cycling": {
		"RUNNING": graph.StatusOnGoing, "NEUTRALISED": graph.StatusOnGoing,
		"FINISHED": graph.StatusTerminated, "PROVISIONAL": graph.StatusTerminated,
	},
	"formula1": {
		"FP": graph.StatusOnGoing, "QUALI": graph.StatusOnGoing, "RACE": graph.StatusOnGoing,
		"SC": graph.StatusOnGoing, "RED": graph.StatusOnGoing,
		"CHEQUERED": graph.StatusTerminated, "CLASSIFIED": graph.StatusTerminated,
	},
}

var sharedStatusCodes = map[string]graph.Status{
	"NS":       graph.StatusScheduled,
	"SCH":      graph.StatusScheduled,
	"FIX":      graph.StatusScheduled,
	"TBA":      graph.StatusScheduled,
	"LIVE":     graph.StatusOnGoing,
	"INPLAY":   graph.StatusOnGoing,
	"CANC":     graph.StatusCancelled,
	"ABD":      graph.StatusCancelled,
	"ABAN":     graph.StatusCancelled,
	"PST":      graph.StatusPostponed,
	"POSTP":    graph.StatusPostponed,
	"SUSP":     graph.StatusPostponed,
	"DELAYED":  graph.StatusPostponed,
	"RESULT":   graph.StatusTerminated,
	"COMPLETE": graph.StatusTerminated,
}

// GameStatus maps a feed's literal code to a game status. Unknown codes
// return StatusUnknown so the stored status is left alone.
func GameStatus(sport, code string) graph.Status {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return graph.StatusUnknown
	}
	if table, ok := sportStatusCodes[strings.ToLower(strings.TrimSpace(sport))]; ok {
		if status, ok := table[code]; ok {
			return status
		}
	}
	if status, ok := sharedStatusCodes[code]; ok {
		return status
	}
	return graph.ParseStatus(code)
}
