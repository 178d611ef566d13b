package quiz

import (
	"strings"

	"github.com/samber/lo"

	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

// Lobby is the live state of one game session. It is only ever mutated from
// inside its room actor loop, so none of this needs locking.
type Lobby struct {
	Pin     string
	GameRef string

	Locked        bool
	Phase         Phase
	QuestionIndex int
	QuestionType  QuestionType

	// Insertion order is significant for roster display; the organizer is
	// conventionally first.
	Players []*Player

	// Lowercased names, permanent for the lobby's lifetime.
	BannedNames map[string]bool

	QCMSubmissions      []QCMSubmission
	FreeTextSubmissions []FreeTextSubmission
	EstimateSubmissions []EstimateSubmission

	Histogram      map[string]int
	BonusRecipient string // connection id, set at most once per question

	EntryFee    float64
	EntryFeeSum float64
	FriendOnly  bool
}

func NewLobby(pin, gameRef string, entryFee float64, friendOnly bool) *Lobby {
	return &Lobby{
		Pin:         pin,
		GameRef:     gameRef,
		BannedNames: map[string]bool{},
		Histogram:   map[string]int{},
		EntryFee:    entryFee,
		FriendOnly:  friendOnly,
	}
}

func (l *Lobby) Started() bool { return l.Phase != PhaseForming }

func (l *Lobby) FindPlayer(connID string) *Player {
	for _, p := range l.Players {
		if p.ConnectionID == connID {
			return p
		}
	}
	return nil
}

func (l *Lobby) FindByName(name string) *Player {
	for _, p := range l.Players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (l *Lobby) Organizer() *Player {
	for _, p := range l.Players {
		if p.Role == RoleOrganizer {
			return p
		}
	}
	return nil
}

func (l *Lobby) AddPlayer(p *Player) { l.Players = append(l.Players, p) }

// RemovePlayer deletes the player from the roster, preserving order, and
// returns it (nil if absent).
func (l *Lobby) RemovePlayer(connID string) *Player {
	for i, p := range l.Players {
		if p.ConnectionID == connID {
			l.Players = append(l.Players[:i], l.Players[i+1:]...)
			return p
		}
	}
	return nil
}

func (l *Lobby) IsBanned(name string) bool {
	return l.BannedNames[strings.ToLower(name)]
}

func (l *Lobby) BanName(name string) {
	l.BannedNames[strings.ToLower(name)] = true
}

// QuorumMet reports whether every non-observer still in play has answered
// the current question. The organizer's HasAnswered is pinned to true, and a
// player who went Black mid-question no longer counts against the quorum.
func (l *Lobby) QuorumMet() bool {
	for _, p := range l.Players {
		if p.Role == RoleObserver || p.Activity == ActivityBlack {
			continue
		}
		if !p.HasAnswered {
			return false
		}
	}
	return true
}

// StartQuestion advances to the next question: bumps the index, sets the
// type, nulls the histogram and clears per-question state.
func (l *Lobby) StartQuestion(qt QuestionType) {
	l.QuestionIndex++
	l.ResetQuestion()
	l.QuestionType = qt
	l.Histogram = map[string]int{}
}

// ResetQuestion clears the three submission collections, the bonus recipient,
// the question type and every player's HasAnswered flag, in one step so the
// invariant "all four are in sync" cannot be broken piecemeal. The organizer
// stays marked as answered.
func (l *Lobby) ResetQuestion() {
	l.QCMSubmissions = nil
	l.FreeTextSubmissions = nil
	l.EstimateSubmissions = nil
	l.BonusRecipient = ""
	l.QuestionType = QuestionNone
	for _, p := range l.Players {
		p.HasAnswered = p.Role == RoleOrganizer
	}
}

func (p *Player) View() types.PlayerView {
	return types.PlayerView{
		ConnectionID: p.ConnectionID,
		Name:         p.Name,
		Role:         string(p.Role),
		Score:        p.Score,
		Activity:     string(p.Activity),
		CanChat:      p.CanChat,
		IsTyping:     p.IsTyping,
		BonusCount:   p.BonusCount,
		HasAnswered:  p.HasAnswered,
	}
}

func (l *Lobby) Roster() []types.PlayerView {
	return lo.Map(l.Players, func(p *Player, _ int) types.PlayerView {
		return p.View()
	})
}

func (l *Lobby) Snapshot() *types.LobbySnapshot {
	return &types.LobbySnapshot{
		Pin:        l.Pin,
		GameRef:    l.GameRef,
		Locked:     l.Locked,
		Started:    l.Started(),
		EntryFee:   l.EntryFee,
		FriendOnly: l.FriendOnly,
		Players:    l.Roster(),
	}
}

func (l *Lobby) Summary() types.LobbySummary {
	players := lo.CountBy(l.Players, func(p *Player) bool {
		return p.Role != RoleObserver
	})
	return types.LobbySummary{
		Pin:         l.Pin,
		GameRef:     l.GameRef,
		Locked:      l.Locked,
		Started:     l.Started(),
		PlayerCount: players,
		EntryFee:    l.EntryFee,
		FriendOnly:  l.FriendOnly,
	}
}
