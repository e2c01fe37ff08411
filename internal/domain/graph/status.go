package graph

import "strings"

// Status is the lifecycle state shared by every level of the event graph.
// The zero value means the feed never told us.
type Status string

const (
	StatusUnknown    Status = ""
	StatusScheduled  Status = "SCHEDULED"
	StatusOnGoing    Status = "ON_GOING"
	StatusTerminated Status = "TERMINATED"
	StatusCancelled  Status = "CANCELLED"
	StatusPostponed  Status = "POSTPONED"
)

func ParseStatus(value string) Status {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case string(StatusScheduled):
		return StatusScheduled
	case string(StatusOnGoing), "ONGOING", "LIVE", "IN_PROGRESS":
		return StatusOnGoing
	case string(StatusTerminated), "FINISHED", "ENDED":
		return StatusTerminated
	case string(StatusCancelled), "CANCELED":
		return StatusCancelled
	case string(StatusPostponed):
		return StatusPostponed
	default:
		return StatusUnknown
	}
}

func (s Status) Known() bool {
	return s != StatusUnknown
}

// Closed reports whether nothing more will happen for an entity in this state.
func (s Status) Closed() bool {
	return s == StatusTerminated || s == StatusCancelled
}

// AllowedFor reports whether a status belongs to the domain of the given kind.
// Seasons never carry CANCELLED or POSTPONED.
func (s Status) AllowedFor(kind Kind) bool {
	switch s {
	case StatusScheduled, StatusOnGoing, StatusTerminated:
		return true
	case StatusCancelled, StatusPostponed:
		return kind != KindSeason
	default:
		return false
	}
}
