package graph

import (
	"context"
	"errors"
	"time"
)

// ErrUnresolvedReference means a feed referenced a parent the graph does not
// know yet. It is an expected consequence of feed ordering, not a failure.
var ErrUnresolvedReference = errors.New("unresolved graph reference")

// Reader resolves entities by provider external id.
type Reader interface {
	FindTournament(ctx context.Context, externalID string) (Tournament, bool, error)
	FindSeason(ctx context.Context, externalID string) (Season, bool, error)
	FindStage(ctx context.Context, externalID string) (Stage, bool, error)
	FindRound(ctx context.Context, externalID string) (Round, bool, error)
	FindGame(ctx context.Context, externalID string) (Game, bool, error)
	FindContestant(ctx context.Context, externalID string) (Contestant, bool, error)
}

// Writer upserts entities keyed by external id. Each call is atomic for the
// entity it touches.
type Writer interface {
	UpsertTournament(ctx context.Context, item Tournament) error
	UpsertSeason(ctx context.Context, item Season) error
	UpsertStage(ctx context.Context, item Stage) error
	UpsertRound(ctx context.Context, item Round) error
	UpsertGame(ctx context.Context, item Game) error
	UpsertContestant(ctx context.Context, item Contestant) error
	ReplaceStandings(ctx context.Context, parentKind Kind, parentExternalID string, rows []StandingRow) error
	// SetGameScore and MergeGameProperties touch only their own column, so a
	// concurrent status change is never written back over.
	SetGameScore(ctx context.Context, externalID string, score Score) error
	MergeGameProperties(ctx context.Context, externalID string, properties map[string]string) error
}

// Hierarchy exposes the parent/child view walked by the cascades.
type Hierarchy interface {
	// ListNodes returns every node of kind whose status is one of statuses.
	// No statuses means every node of that kind.
	ListNodes(ctx context.Context, kind Kind, statuses ...Status) ([]Node, error)
	// ListDueNodes returns nodes of kind in status whose start date is at or
	// before reference.
	ListDueNodes(ctx context.Context, kind Kind, status Status, reference time.Time) ([]Node, error)
	ChildrenOf(ctx context.Context, parent Node) ([]Node, error)
	SetStatus(ctx context.Context, kind Kind, externalID string, status Status) error
	SetStartDate(ctx context.Context, kind Kind, externalID string, startDate time.Time) error
	// CompareAndSetStatus writes to only while the stored status is still
	// from. ok is false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, kind Kind, externalID string, from, to Status) (bool, error)
	// SetStartDateIfStatus writes startDate only while the stored status is
	// still status.
	SetStartDateIfStatus(ctx context.Context, kind Kind, externalID string, status Status, startDate time.Time) (bool, error)
}

type Repository interface {
	Reader
	Writer
	Hierarchy
}
