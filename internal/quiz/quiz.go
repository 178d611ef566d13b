// Package quiz holds the domain model shared by the room registry, the
// per-room actors and the session archiver: the live Lobby record, its
// players, and the answer collections for the current question.
package quiz

import "errors"

var ErrInvalidPin = errors.New("invalid pin")
var ErrLobbyLocked = errors.New("lobby is locked")
var ErrGameStarted = errors.New("game already started")
var ErrNameTaken = errors.New("name already taken")
var ErrNameBanned = errors.New("name is banned")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrFriendsOnly = errors.New("lobby is restricted to friends of the organizer")
var ErrBlocked = errors.New("blocked by a participant")
var ErrBlockedWarning = errors.New("caller blocked a participant")
var ErrCapacityExceeded = errors.New("maximum number of lobbies reached")
var ErrNotOrganizer = errors.New("organizer only")
var ErrGameNotStarted = errors.New("game has not started")

type Role string

const (
	RoleOrganizer Role = "organizer"
	RolePlayer    Role = "player"
	RoleObserver  Role = "observer"
)

// ActivityState is the roster color shown next to each player.
// Red = idle, Yellow = interacted, Green = submitted, Black = gone
// mid-question.
type ActivityState string

const (
	ActivityRed    ActivityState = "red"
	ActivityYellow ActivityState = "yellow"
	ActivityGreen  ActivityState = "green"
	ActivityBlack  ActivityState = "black"
)

type QuestionType string

const (
	QuestionQCM  QuestionType = "QCM" // multiple-choice
	QuestionQRL  QuestionType = "QRL" // free-text, graded later
	QuestionQRE  QuestionType = "QRE" // numeric estimate
	QuestionNone QuestionType = ""
)

// Phase is the lobby lifecycle. Gameplay messages are only legal while
// InProgress; joins only while Forming.
type Phase int

const (
	PhaseForming Phase = iota
	PhaseInProgress
	PhaseEnded
)

type Player struct {
	ConnectionID string
	UserID       string
	Name         string
	Role         Role
	Score        float64
	Activity     ActivityState
	CanChat      bool
	IsTyping     bool
	BonusCount   int
	HasAnswered  bool
}

// QCMSubmission records one multiple-choice answer.
type QCMSubmission struct {
	ConnectionID string
	Name         string
	Choices      []int
	Correct      bool
	FromTimer    bool
}

// FreeTextSubmission records one free-text answer, kept in arrival order
// until the question ends.
type FreeTextSubmission struct {
	ConnectionID string
	Name         string
	Text         string
}

// EstimateSubmission records one numeric-estimate answer. Correctness is
// decided against the question's tolerance band by the content service, not
// here.
type EstimateSubmission struct {
	ConnectionID string
	Name         string
	Value        float64
	Correct      bool
}
