package graph

import "time"

// Mutation is one create-or-update instruction produced by a feed extractor.
// The set of variants is closed; appliers switch on the concrete type.
type Mutation interface {
	mutation()
	// Target names the entity the mutation addresses, for logging.
	Target() (Kind, string)
}

type UpsertTournament struct{ Tournament Tournament }

type UpsertSeason struct{ Season Season }

type UpsertStage struct{ Stage Stage }

type UpsertRound struct{ Round Round }

// UpsertGame creates the game when it does not exist yet. For an existing
// game only the round link and contestants are refreshed; status, score,
// start date and properties travel through their own mutations.
type UpsertGame struct{ Game Game }

type UpsertContestant struct{ Contestant Contestant }

// LinkPlayerTeam moves a player to a team, replacing any previous link.
type LinkPlayerTeam struct {
	PlayerExternalID string
	TeamExternalID   string
}

type SetGameStatus struct {
	GameExternalID string
	Status         Status
}

type SetGameScore struct {
	GameExternalID string
	Score          Score
}

// SetGameStartDate overwrites a game's start date. With FutureOnly the stored
// date is kept unless StartDate is strictly after the applier's clock.
type SetGameStartDate struct {
	GameExternalID string
	StartDate      time.Time
	FutureOnly     bool
}

type MergeGameProperties struct {
	GameExternalID string
	Properties     map[string]string
}

// AttachStandings replaces the league table hanging off a season, stage or round.
type AttachStandings struct {
	ParentKind       Kind
	ParentExternalID string
	Rows             []StandingRow
}

func (UpsertTournament) mutation()    {}
func (UpsertSeason) mutation()        {}
func (UpsertStage) mutation()         {}
func (UpsertRound) mutation()         {}
func (UpsertGame) mutation()          {}
func (UpsertContestant) mutation()    {}
func (LinkPlayerTeam) mutation()      {}
func (SetGameStatus) mutation()       {}
func (SetGameScore) mutation()        {}
func (SetGameStartDate) mutation()    {}
func (MergeGameProperties) mutation() {}
func (AttachStandings) mutation()     {}

func (m UpsertTournament) Target() (Kind, string) { return KindTournament, m.Tournament.ExternalID }
func (m UpsertSeason) Target() (Kind, string)     { return KindSeason, m.Season.ExternalID }
func (m UpsertStage) Target() (Kind, string)      { return KindStage, m.Stage.ExternalID }
func (m UpsertRound) Target() (Kind, string)      { return KindRound, m.Round.ExternalID }
func (m UpsertGame) Target() (Kind, string)       { return KindGame, m.Game.ExternalID }
func (m UpsertContestant) Target() (Kind, string) { return KindContestant, m.Contestant.ExternalID }
func (m LinkPlayerTeam) Target() (Kind, string)   { return KindContestant, m.PlayerExternalID }
func (m SetGameStatus) Target() (Kind, string)    { return KindGame, m.GameExternalID }
func (m SetGameScore) Target() (Kind, string)     { return KindGame, m.GameExternalID }
func (m SetGameStartDate) Target() (Kind, string) { return KindGame, m.GameExternalID }
func (m MergeGameProperties) Target() (Kind, string) {
	return KindGame, m.GameExternalID
}
func (m AttachStandings) Target() (Kind, string) { return m.ParentKind, m.ParentExternalID }

// MutationList is applied strictly in order.
type MutationList []Mutation

// Builder accumulates the mutations of one feed document. Tournaments,
// seasons, stages, rounds and contestants are emitted at most once per
// external id so a document that repeats a parent per game stays compact.
type Builder struct {
	list MutationList
	seen map[Kind]map[string]struct{}
}

func NewBuilder() *Builder {
	return &Builder{seen: make(map[Kind]map[string]struct{})}
}

func (b *Builder) once(kind Kind, externalID string) bool {
	ids, ok := b.seen[kind]
	if !ok {
		ids = make(map[string]struct{})
		b.seen[kind] = ids
	}
	if _, dup := ids[externalID]; dup {
		return false
	}
	ids[externalID] = struct{}{}
	return true
}

func (b *Builder) Tournament(item Tournament) *Builder {
	if b.once(KindTournament, item.ExternalID) {
		b.list = append(b.list, UpsertTournament{Tournament: item})
	}
	return b
}

func (b *Builder) Season(item Season) *Builder {
	if b.once(KindSeason, item.ExternalID) {
		b.list = append(b.list, UpsertSeason{Season: item})
	}
	return b
}

func (b *Builder) Stage(item Stage) *Builder {
	if b.once(KindStage, item.ExternalID) {
		b.list = append(b.list, UpsertStage{Stage: item})
	}
	return b
}

func (b *Builder) Round(item Round) *Builder {
	if b.once(KindRound, item.ExternalID) {
		b.list = append(b.list, UpsertRound{Round: item})
	}
	return b
}

func (b *Builder) Contestant(item Contestant) *Builder {
	if b.once(KindContestant, item.ExternalID) {
		b.list = append(b.list, UpsertContestant{Contestant: item})
	}
	return b
}

// Add appends m unconditionally.
func (b *Builder) Add(m Mutation) *Builder {
	b.list = append(b.list, m)
	return b
}

func (b *Builder) Len() int {
	return len(b.list)
}

func (b *Builder) Build() MutationList {
	out := make(MutationList, len(b.list))
	copy(out, b.list)
	return out
}
