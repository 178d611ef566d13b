package room

import (
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/countdown"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

// Msg is the sum type of everything a room actor can process. One message is
// handled at a time, so handlers never race each other for the Lobby record.
type Msg interface{ isRoomMsg() }

type Join struct {
	ConnectionID string
	UserID       string
	Name         string
	AsObserver   bool
	// Confirmed acknowledges the soft "you blocked a participant" warning.
	Confirmed bool
	Outbox    chan<- types.ServerMessage
	Reply     chan JoinResult
}

type JoinResult struct {
	Player   types.PlayerView
	Snapshot *types.LobbySnapshot
	// Warning means the join was held back pending confirmation, not refused.
	Warning bool
	Err     error
}

type Leave struct{ ConnectionID string }

type Ban struct{ By, Target string }

type ToggleLock struct{ By string }

type ToggleChat struct{ By, Target string }

type StartGame struct{ By string }

type EndGame struct{ By string }

type StartQuestion struct {
	By           string
	QuestionType quiz.QuestionType
}

type SubmitQCM struct {
	ConnectionID string
	Choices      []int
	Correct      bool
	FromTimer    bool
}

type SubmitFreeText struct {
	ConnectionID string
	Text         string
}

type SubmitEstimate struct {
	ConnectionID string
	Value        float64
	Correct      bool
	FromTimer    bool
}

type HistogramDelta struct{ Deltas map[string]int }

type HistogramReplace struct{ Histogram map[string]int }

type UpdateScore struct {
	By, Target string
	Score      float64
	Bonus      bool
}

// MarkActivity is sent when a player types into the answer box.
type MarkActivity struct{ ConnectionID string }

// Interacted is sent on any other socket interaction.
type Interacted struct{ ConnectionID string }

type ResetActivity struct{ By string }

type StartCountdown struct {
	Duration int
	Mode     countdown.Mode
}

type StopCountdown struct{ By string }

type EnablePanic struct{ ConnectionID string }

// ClearTyping is posted by the inactivity watchdog when it expires.
type ClearTyping struct{ ConnectionID string }

// Deliver carries a ready-made broadcast (countdown ticks) into the loop so
// it fans out in order with everything else.
type Deliver struct{ Msg types.ServerMessage }

// GetSnapshot asks for the lobby snapshot. Name and UserID identify the
// asker so the reply can say whether a seat dropped mid-game is theirs to
// reclaim.
type GetSnapshot struct {
	Name   string
	UserID string
	Reply  chan SnapshotReply
}

type SnapshotReply struct {
	Snapshot    *types.LobbySnapshot
	Reclaimable bool
}

// GetState is test-only: reflect internal state without data races.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Join) isRoomMsg()            {}
func (Leave) isRoomMsg()           {}
func (Ban) isRoomMsg()             {}
func (ToggleLock) isRoomMsg()      {}
func (ToggleChat) isRoomMsg()      {}
func (StartGame) isRoomMsg()       {}
func (EndGame) isRoomMsg()         {}
func (StartQuestion) isRoomMsg()   {}
func (SubmitQCM) isRoomMsg()       {}
func (SubmitFreeText) isRoomMsg()  {}
func (SubmitEstimate) isRoomMsg()  {}
func (HistogramDelta) isRoomMsg()  {}
func (HistogramReplace) isRoomMsg() {}
func (UpdateScore) isRoomMsg()     {}
func (MarkActivity) isRoomMsg()    {}
func (Interacted) isRoomMsg()      {}
func (ResetActivity) isRoomMsg()   {}
func (StartCountdown) isRoomMsg()  {}
func (StopCountdown) isRoomMsg()   {}
func (EnablePanic) isRoomMsg()     {}
func (ClearTyping) isRoomMsg()     {}
func (Deliver) isRoomMsg()         {}
func (GetSnapshot) isRoomMsg()     {}
func (GetState) isRoomMsg()        {}
func (Shutdown) isRoomMsg()        {}

// View is what GetState replies with.
type View struct {
	NumClients     int
	Phase          quiz.Phase
	QuestionType   quiz.QuestionType
	QuestionIndex  int
	BonusRecipient string
	EntryFeeSum    float64
	Histogram      map[string]int
	Snapshot       *types.LobbySnapshot
}
