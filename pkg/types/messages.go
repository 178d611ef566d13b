// Package types defines the wire protocol spoken over the lobby websocket.
// Every frame is a single JSON object with a "type" discriminator; the other
// fields are a union and only the ones relevant to that type are set.
package types

// Client -> Server event names.
const (
	EvCreateLobby         = "createLobby"
	EvValidatePin         = "validatePin"
	EvJoinLobby           = "joinLobby"
	EvLeaveLobby          = "leaveLobby"
	EvBanPlayer           = "banPlayer"
	EvToggleLock          = "toggleLock"
	EvToggleChat          = "toggleChatPermission"
	EvStartCountdown      = "startCountdown"
	EvStopCountdown       = "stopCountdown"
	EvEnablePanicMode     = "enablePanicMode"
	EvGameStarted         = "gameStarted"
	EvGameEnded           = "gameEnded"
	EvQuestionStarted     = "questionStarted"
	EvAnswerSubmitted     = "answerSubmitted" // free-text (QRL)
	EvQCMAnswerSubmitted  = "qcmAnswerSubmitted"
	EvQREAnswerSubmitted  = "qreAnswerSubmitted"
	EvUpdateHistogram     = "updateHistogram"
	EvReplaceHistogram    = "updateLongAnswerHistogram"
	EvUpdateScore         = "updateScore"
	EvMarkInputActivity   = "markInputActivity"
	EvSocketInteracted    = "socketInteracted"
	EvResetActivityStates = "resetPlayersActivityState"
)

// Server -> Client event names.
const (
	EvLobbyList           = "lobbyList"
	EvLatestPlayerList    = "latestPlayerList"
	EvValidPin            = "validPin"
	EvInvalidPin          = "invalidPin"
	EvLobbyConnection     = "successfulLobbyConnection"
	EvLobbyConnectionFail = "failedLobbyConnection"
	EvBlockedWarning      = "pendingBlockedWarning"
	EvCountdown           = "countdown"
	EvCountdownEnd        = "countdownEnd"
	EvCountdownStopped    = "countdownStopped"
	EvQuestionTransition  = "questionTransition"
	EvPanicMode           = "panicMode"
	EvQCMEnd              = "qcmEnd"
	EvQREEnd              = "qreEnd"
	EvQRLEnd              = "qrlEnd"
	EvHistogramUpdated    = "updateHistogram"
	EvScoreUpdated        = "scoreUpdated"
	EvShowResults         = "showResults"
	EvLobbyClosed         = "lobbyClosed"
	EvNoPlayers           = "noPlayers"
	EvLobbyCreated        = "lobbyCreated"
	EvError               = "error"
)

// ClientMessage is the inbound frame. Fields are a union over all inbound
// event types.
type ClientMessage struct {
	Type string `json:"type"`

	// createLobby
	GameRef    string  `json:"gameRef,omitempty"`
	EntryFee   float64 `json:"entryFee,omitempty"`
	FriendOnly bool    `json:"friendOnly,omitempty"`

	// validatePin / joinLobby
	Pin         string `json:"pin,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	UserID      string `json:"userId,omitempty"`
	AsObserver  bool   `json:"asObserver,omitempty"`
	// Acknowledges the soft "you blocked a participant" warning.
	Confirmed bool `json:"confirmed,omitempty"`

	// banPlayer / toggleChatPermission / updateScore
	Target string `json:"target,omitempty"`

	// startCountdown
	Duration int    `json:"duration,omitempty"`
	Mode     string `json:"mode,omitempty"`

	// questionStarted
	QuestionType string `json:"questionType,omitempty"`

	// answer submissions
	Answer    string  `json:"answer,omitempty"`
	Choices   []int   `json:"choices,omitempty"`
	Correct   bool    `json:"correct,omitempty"`
	FromTimer bool    `json:"fromTimer,omitempty"`
	Estimate  float64 `json:"estimate,omitempty"`

	// updateScore
	Score float64 `json:"score,omitempty"`
	Bonus bool    `json:"bonus,omitempty"`

	// histogram updates
	Histogram map[string]int `json:"histogram,omitempty"`
}

// ServerMessage is the outbound frame.
type ServerMessage struct {
	Type string `json:"type"`

	Pin     string `json:"pin,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`

	Lobbies []LobbySummary `json:"lobbies,omitempty"`
	Lobby   *LobbySnapshot `json:"lobby,omitempty"`
	// validPin: the asker's dropped mid-game seat is theirs to retake.
	Reclaimable bool `json:"reclaimable,omitempty"`
	Players []PlayerView   `json:"players,omitempty"`
	Player  *PlayerView    `json:"player,omitempty"`

	Remaining  int  `json:"remaining,omitempty"`
	Transition bool `json:"transition,omitempty"`

	Histogram map[string]int `json:"histogram,omitempty"`

	// qcmEnd / qreEnd
	BonusRecipient string `json:"bonusRecipient,omitempty"`
	// qrlEnd, sorted by submitter name
	Answers []FreeTextAnswer `json:"answers,omitempty"`
}

// LobbySummary is one entry of the browsable active-lobby list.
type LobbySummary struct {
	Pin         string  `json:"pin"`
	GameRef     string  `json:"gameRef"`
	Locked      bool    `json:"locked"`
	Started     bool    `json:"started"`
	PlayerCount int     `json:"playerCount"`
	EntryFee    float64 `json:"entryFee"`
	FriendOnly  bool    `json:"friendOnly"`
}

// PlayerView is the roster entry broadcast with latestPlayerList.
type PlayerView struct {
	ConnectionID string  `json:"connectionId"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	Score        float64 `json:"score"`
	Activity     string  `json:"activityState"`
	CanChat      bool    `json:"canChat"`
	IsTyping     bool    `json:"isTyping"`
	BonusCount   int     `json:"bonusCount"`
	HasAnswered  bool    `json:"hasAnswered"`
}

// LobbySnapshot is sent with validPin and successfulLobbyConnection.
type LobbySnapshot struct {
	Pin        string       `json:"pin"`
	GameRef    string       `json:"gameRef"`
	Locked     bool         `json:"locked"`
	Started    bool         `json:"started"`
	EntryFee   float64      `json:"entryFee"`
	FriendOnly bool         `json:"friendOnly"`
	Players    []PlayerView `json:"players"`
}

// FreeTextAnswer is one graded-later free-text submission, as broadcast by
// qrlEnd.
type FreeTextAnswer struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name"`
	Text         string `json:"text"`
}
