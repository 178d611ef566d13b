package room

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/accounts"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/archive"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/countdown"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

const testPin = "4217"

type stubRegistrar struct {
	removed chan string
	changed chan types.LobbySummary
}

func newStubRegistrar() *stubRegistrar {
	return &stubRegistrar{
		removed: make(chan string, 8),
		changed: make(chan types.LobbySummary, 64),
	}
}

func (s *stubRegistrar) LobbyChanged(sm types.LobbySummary) {
	select {
	case s.changed <- sm:
	default:
	}
}

func (s *stubRegistrar) RemoveLobby(pin string) { s.removed <- pin }

type fixture struct {
	room  *Room
	org   chan types.ServerMessage
	reg   *stubRegistrar
	acct  *accounts.InMemory
	arch  *archive.Archiver
	clock *clockwork.FakeClock
}

func newTestRoom(t *testing.T, entryFee float64, friendOnly bool) *fixture {
	t.Helper()
	log := zap.NewNop()
	clock := clockwork.NewFakeClock()
	f := &fixture{
		org:   make(chan types.ServerMessage, 64),
		reg:   newStubRegistrar(),
		acct:  accounts.NewInMemory(),
		arch:  archive.New(archive.NewMemoryStore(), log),
		clock: clock,
	}

	lobby := quiz.NewLobby(testPin, "quiz-1", entryFee, friendOnly)
	lobby.AddPlayer(&quiz.Player{
		ConnectionID: "org",
		UserID:       "u-org",
		Name:         "Host",
		Role:         quiz.RoleOrganizer,
		Activity:     quiz.ActivityRed,
		CanChat:      true,
		HasAnswered:  true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f.room = New(ctx, lobby, "org", f.org, Deps{
		Registrar: f.reg,
		Accounts:  f.acct,
		Engine: countdown.NewEngine(clock, countdown.Config{
			TickPeriod:  time.Second,
			PanicFactor: 4,
		}, log),
		Archiver:      f.arch,
		Log:           log,
		WatchdogTicks: 1,
	})
	return f
}

func (f *fixture) join(t *testing.T, connID, name string, out chan types.ServerMessage) JoinResult {
	t.Helper()
	return f.joinMsg(t, Join{
		ConnectionID: connID,
		UserID:       "u-" + connID,
		Name:         name,
		Outbox:       out,
	})
}

func (f *fixture) joinMsg(t *testing.T, msg Join) JoinResult {
	t.Helper()
	msg.Reply = make(chan JoinResult, 1)
	if msg.Outbox == nil {
		msg.Outbox = make(chan types.ServerMessage, 64)
	}
	f.room.Inbox() <- msg
	select {
	case res := <-msg.Reply:
		return res
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for join reply")
		return JoinResult{}
	}
}

func (f *fixture) view(t *testing.T) View {
	t.Helper()
	reply := make(chan View, 1)
	f.room.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state view")
		return View{}
	}
}

func (f *fixture) startQuestion(qt quiz.QuestionType) {
	f.room.Inbox() <- StartGame{By: "org"}
	f.room.Inbox() <- StartQuestion{By: "org", QuestionType: qt}
}

func recvEvent(t *testing.T, ch <-chan types.ServerMessage, eventType string) types.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Type == eventType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", eventType)
			return types.ServerMessage{}
		}
	}
}

func recvNoEvent(t *testing.T, ch <-chan types.ServerMessage, eventType string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case msg := <-ch:
			if msg.Type == eventType {
				t.Fatalf("expected no %q, got %+v", eventType, msg)
			}
		case <-deadline:
			return
		}
	}
}

func findPlayer(t *testing.T, snap *types.LobbySnapshot, name string) types.PlayerView {
	t.Helper()
	for _, p := range snap.Players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("player %q not on roster", name)
	return types.PlayerView{}
}

func TestJoin_RosterKeepsInsertionOrder(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)

	snap := f.view(t).Snapshot
	require.Len(t, snap.Players, 3)
	require.Equal(t, "Host", snap.Players[0].Name)
	require.Equal(t, "alice", snap.Players[1].Name)
	require.Equal(t, "bob", snap.Players[2].Name)
}

func TestJoin_NameTakenCaseInsensitive(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "Alice", nil).Err)
	res := f.join(t, "p2", "aLiCe", nil)
	require.ErrorIs(t, res.Err, quiz.ErrNameTaken)
}

func TestJoin_LockedLobby(t *testing.T) {
	f := newTestRoom(t, 0, false)

	f.room.Inbox() <- ToggleLock{By: "org"}
	res := f.join(t, "p1", "alice", nil)
	require.ErrorIs(t, res.Err, quiz.ErrLobbyLocked)

	// Unlock and retry; a non-organizer toggle must have been a no-op.
	f.room.Inbox() <- ToggleLock{By: "p1"}
	res = f.join(t, "p1", "alice", nil)
	require.ErrorIs(t, res.Err, quiz.ErrLobbyLocked)

	f.room.Inbox() <- ToggleLock{By: "org"}
	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
}

func TestBan_PersistsForLobbyLifetime(t *testing.T) {
	f := newTestRoom(t, 0, false)

	bobOut := make(chan types.ServerMessage, 64)
	require.NoError(t, f.join(t, "p1", "Bob", bobOut).Err)

	f.room.Inbox() <- Ban{By: "org", Target: "p1"}
	closed := recvEvent(t, bobOut, types.EvLobbyClosed)
	require.Equal(t, ReasonBanned, closed.Reason)

	// Same name, any case, any connection: rejected for the lobby's life.
	res := f.join(t, "p2", "BOB", nil)
	require.ErrorIs(t, res.Err, quiz.ErrNameBanned)
	res = f.join(t, "p3", "bob", nil)
	require.ErrorIs(t, res.Err, quiz.ErrNameBanned)
}

func TestBan_NonOrganizerIsNoOp(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)

	f.room.Inbox() <- Ban{By: "p1", Target: "p2"}
	snap := f.view(t).Snapshot
	require.Len(t, snap.Players, 3)
}

func TestJoin_EntryFeeDebited(t *testing.T) {
	f := newTestRoom(t, 10, false)

	f.acct.AddUser(accounts.User{ID: "u-poor", Balance: 5})
	f.acct.AddUser(accounts.User{ID: "u-rich", Balance: 25})

	res := f.joinMsg(t, Join{ConnectionID: "poor", UserID: "u-poor", Name: "poor"})
	require.ErrorIs(t, res.Err, quiz.ErrInsufficientFunds)

	res = f.joinMsg(t, Join{ConnectionID: "rich", UserID: "u-rich", Name: "rich"})
	require.NoError(t, res.Err)

	u, err := f.acct.GetUserByID(context.Background(), "u-rich")
	require.NoError(t, err)
	require.Equal(t, 15.0, u.Balance)
	require.Equal(t, 10.0, f.view(t).EntryFeeSum)
}

func TestJoin_FriendOnly(t *testing.T) {
	f := newTestRoom(t, 0, true)

	res := f.join(t, "p1", "stranger", nil)
	require.ErrorIs(t, res.Err, quiz.ErrFriendsOnly)

	f.acct.SetFriends("u-p2", "u-org")
	require.NoError(t, f.join(t, "p2", "buddy", nil).Err)
}

func TestJoin_BlockedByParticipantIsHardReject(t *testing.T) {
	f := newTestRoom(t, 0, false)

	// The organizer blocked this user.
	f.acct.SetBlocked("u-org", "u-p1")
	res := f.join(t, "p1", "alice", nil)
	require.ErrorIs(t, res.Err, quiz.ErrBlocked)
}

func TestJoin_CallerBlockedParticipantIsSoftWarning(t *testing.T) {
	f := newTestRoom(t, 0, false)

	// This user blocked the organizer: warn, require confirmation.
	f.acct.SetBlocked("u-p1", "u-org")
	res := f.join(t, "p1", "alice", nil)
	require.True(t, res.Warning)
	require.ErrorIs(t, res.Err, quiz.ErrBlockedWarning)
	require.Len(t, f.view(t).Snapshot.Players, 1)

	res = f.joinMsg(t, Join{ConnectionID: "p1", UserID: "u-p1", Name: "alice", Confirmed: true})
	require.NoError(t, res.Err)
	require.Len(t, f.view(t).Snapshot.Players, 2)
}

func TestJoin_RejectedOnceStarted(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	f.room.Inbox() <- StartGame{By: "org"}

	res := f.join(t, "p2", "late", nil)
	require.ErrorIs(t, res.Err, quiz.ErrGameStarted)

	// A locked lobby still reports locked, not started.
	f.room.Inbox() <- ToggleLock{By: "org"}
	res = f.join(t, "p3", "later", nil)
	require.ErrorIs(t, res.Err, quiz.ErrLobbyLocked)
}

func TestQuorum_EndsExactlyOnAllPlayersAnswered(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)
	require.NoError(t, f.joinMsg(t, Join{ConnectionID: "watcher", UserID: "u-w", Name: "watcher", AsObserver: true}).Err)

	f.startQuestion(quiz.QuestionQCM)

	f.room.Inbox() <- SubmitQCM{ConnectionID: "p1", Choices: []int{0}}
	recvNoEvent(t, f.org, types.EvQCMEnd, 50*time.Millisecond)

	// The observer never counts toward the quorum; the second player's
	// submission must end the question immediately.
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p2", Choices: []int{1}}
	recvEvent(t, f.org, types.EvQCMEnd)
	recvNoEvent(t, f.org, types.EvQCMEnd, 50*time.Millisecond)

	v := f.view(t)
	require.Equal(t, quiz.QuestionNone, v.QuestionType)
	require.Empty(t, v.BonusRecipient)
}

func TestBonus_FirstCorrectNonTimerWins(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)
	require.NoError(t, f.join(t, "p3", "carol", nil).Err)

	f.startQuestion(quiz.QuestionQCM)

	// Correct but timer-forced: no bonus.
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p1", Correct: true, FromTimer: true}
	// First correct live submission: takes the bonus.
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p2", Correct: true}
	// Correct but late: bonus already granted.
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p3", Correct: true}

	end := recvEvent(t, f.org, types.EvQCMEnd)
	require.Equal(t, "p2", end.BonusRecipient)

	snap := f.view(t).Snapshot
	require.Equal(t, 1, findPlayer(t, snap, "bob").BonusCount)
	require.Equal(t, 0, findPlayer(t, snap, "alice").BonusCount)
	require.Equal(t, 0, findPlayer(t, snap, "carol").BonusCount)
}

func TestFreeText_EndBroadcastSortedByName(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "b", nil).Err)
	require.NoError(t, f.join(t, "p2", "A", nil).Err)
	require.NoError(t, f.join(t, "p3", "c", nil).Err)

	f.startQuestion(quiz.QuestionQRL)

	f.room.Inbox() <- SubmitFreeText{ConnectionID: "p3", Text: "third name"}
	f.room.Inbox() <- SubmitFreeText{ConnectionID: "p1", Text: "second name"}
	f.room.Inbox() <- SubmitFreeText{ConnectionID: "p2", Text: "first name"}

	end := recvEvent(t, f.org, types.EvQRLEnd)
	require.Len(t, end.Answers, 3)
	require.Equal(t, "A", end.Answers[0].Name)
	require.Equal(t, "b", end.Answers[1].Name)
	require.Equal(t, "c", end.Answers[2].Name)
}

func TestEstimate_EndBroadcast(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)

	f.startQuestion(quiz.QuestionQRE)
	f.room.Inbox() <- SubmitEstimate{ConnectionID: "p1", Value: 42.5, Correct: true}

	recvEvent(t, f.org, types.EvQREEnd)
}

func TestLateSubmission_AfterResetIsIgnored(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)

	f.startQuestion(quiz.QuestionQCM)
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p1"}
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p2"}
	recvEvent(t, f.org, types.EvQCMEnd)

	// The question context is gone; a straggler has nothing to attach to.
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p1", Correct: true}
	recvNoEvent(t, f.org, types.EvQCMEnd, 50*time.Millisecond)
	require.Empty(t, f.view(t).BonusRecipient)
}

func TestStartQuestion_EndsImmediatelyWhenNoActivePlayers(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	f.room.Inbox() <- StartGame{By: "org"}
	f.room.Inbox() <- Leave{ConnectionID: "p1"} // marked Black mid-game

	// With every remaining player Black the quorum is trivially met; the
	// question must not hang open waiting for a roster change.
	f.room.Inbox() <- StartQuestion{By: "org", QuestionType: quiz.QuestionQCM}
	recvEvent(t, f.org, types.EvQCMEnd)
}

func TestGetSnapshot_ReportsReclaimableSeat(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	f.room.Inbox() <- StartGame{By: "org"}
	f.room.Inbox() <- Leave{ConnectionID: "p1"}

	snapshot := func(name, userID string) SnapshotReply {
		reply := make(chan SnapshotReply, 1)
		f.room.Inbox() <- GetSnapshot{Name: name, UserID: userID, Reply: reply}
		select {
		case rep := <-reply:
			return rep
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for snapshot reply")
			return SnapshotReply{}
		}
	}

	require.True(t, snapshot("alice", "u-p1").Reclaimable)
	// Same name under another account, or an unknown name, gets nothing.
	require.False(t, snapshot("alice", "u-imposter").Reclaimable)
	require.False(t, snapshot("carol", "u-p1").Reclaimable)
	// A seat that is still live is not reclaimable either.
	require.False(t, snapshot("Host", "u-org").Reclaimable)
}

func TestLeave_MidQuestionUnblocksQuorum(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)

	f.startQuestion(quiz.QuestionQCM)
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p1"}
	recvNoEvent(t, f.org, types.EvQCMEnd, 50*time.Millisecond)

	// The holdout disconnects; the question must still complete.
	f.room.Inbox() <- Leave{ConnectionID: "p2"}
	recvEvent(t, f.org, types.EvQCMEnd)
}

func TestLeave_MidGameShowsBlack(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)
	f.room.Inbox() <- StartGame{By: "org"}

	f.room.Inbox() <- Leave{ConnectionID: "p1"}

	snap := f.view(t).Snapshot
	require.Len(t, snap.Players, 3) // seat kept for final ranking
	require.Equal(t, string(quiz.ActivityBlack), findPlayer(t, snap, "alice").Activity)
}

func TestLeave_BeforeStartRemovesSeatAndNotifiesEmpty(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	f.room.Inbox() <- Leave{ConnectionID: "p1"}

	recvEvent(t, f.org, types.EvNoPlayers)
	require.Len(t, f.view(t).Snapshot.Players, 1)
}

func TestOrganizerLeave_CascadesLobbyClosed(t *testing.T) {
	f := newTestRoom(t, 0, false)

	outs := make([]chan types.ServerMessage, 3)
	for i, id := range []string{"p1", "p2", "p3"} {
		outs[i] = make(chan types.ServerMessage, 64)
		require.NoError(t, f.join(t, id, "player-"+id, outs[i]).Err)
	}

	f.room.Inbox() <- Leave{ConnectionID: "org"}

	for _, out := range outs {
		closed := recvEvent(t, out, types.EvLobbyClosed)
		require.Equal(t, ReasonNoHost, closed.Reason)
	}

	select {
	case pin := <-f.reg.removed:
		require.Equal(t, testPin, pin)
	case <-time.After(time.Second):
		t.Fatal("lobby was never removed from the registry")
	}
}

func TestReconnect_SameIdentityRetakesSeat(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)
	f.room.Inbox() <- StartGame{By: "org"}
	f.room.Inbox() <- Leave{ConnectionID: "p1"}

	// Same name and user, fresh connection: allowed even mid-game.
	res := f.joinMsg(t, Join{ConnectionID: "p1-bis", UserID: "u-p1", Name: "alice"})
	require.NoError(t, res.Err)

	snap := f.view(t).Snapshot
	got := findPlayer(t, snap, "alice")
	require.Equal(t, "p1-bis", got.ConnectionID)
	require.Equal(t, string(quiz.ActivityRed), got.Activity)
}

func TestHistogram_DeltaAccumulatesReplaceDoesNot(t *testing.T) {
	f := newTestRoom(t, 0, false)

	delta := map[string]int{"a": 1, "b": 2}
	f.room.Inbox() <- HistogramDelta{Deltas: delta}
	f.room.Inbox() <- HistogramDelta{Deltas: delta}

	v := f.view(t)
	require.Equal(t, map[string]int{"a": 2, "b": 4}, v.Histogram)

	grades := map[string]int{"0": 1, "50": 2, "100": 3}
	f.room.Inbox() <- HistogramReplace{Histogram: grades}
	f.room.Inbox() <- HistogramReplace{Histogram: grades}

	v = f.view(t)
	require.Equal(t, grades, v.Histogram)

	hist := recvEvent(t, f.org, types.EvHistogramUpdated)
	require.NotNil(t, hist.Histogram)
}

func TestActivity_Transitions(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)
	f.startQuestion(quiz.QuestionQCM)

	f.room.Inbox() <- Interacted{ConnectionID: "p1"}
	snap := f.view(t).Snapshot
	require.Equal(t, string(quiz.ActivityYellow), findPlayer(t, snap, "alice").Activity)

	f.room.Inbox() <- SubmitQCM{ConnectionID: "p1"}
	snap = f.view(t).Snapshot
	require.Equal(t, string(quiz.ActivityGreen), findPlayer(t, snap, "alice").Activity)

	// A timer-forced submission keeps the color it found.
	f.room.Inbox() <- Interacted{ConnectionID: "p2"}
	f.room.Inbox() <- SubmitQCM{ConnectionID: "p2", FromTimer: true}
	snap = f.view(t).Snapshot
	require.Equal(t, string(quiz.ActivityYellow), findPlayer(t, snap, "bob").Activity)
}

func TestActivity_ResetTurnsPlayersRed(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	f.room.Inbox() <- Interacted{ConnectionID: "p1"}

	f.room.Inbox() <- ResetActivity{By: "org"}
	snap := f.view(t).Snapshot
	require.Equal(t, string(quiz.ActivityRed), findPlayer(t, snap, "alice").Activity)
}

func TestWatchdog_ClearsTypingFlag(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)

	f.room.Inbox() <- MarkActivity{ConnectionID: "p1"}
	snap := f.view(t).Snapshot
	require.True(t, findPlayer(t, snap, "alice").IsTyping)

	f.clock.BlockUntil(1)
	f.clock.Advance(time.Second)

	deadline := time.After(2 * time.Second)
	for {
		if !findPlayer(t, f.view(t).Snapshot, "alice").IsTyping {
			return
		}
		select {
		case <-deadline:
			t.Fatal("typing flag never cleared")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestToggleChat(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)

	f.room.Inbox() <- ToggleChat{By: "org", Target: "p1"}
	require.False(t, findPlayer(t, f.view(t).Snapshot, "alice").CanChat)

	f.room.Inbox() <- ToggleChat{By: "p1", Target: "p1"} // not the organizer
	require.False(t, findPlayer(t, f.view(t).Snapshot, "alice").CanChat)
}

func TestUpdateScore_Broadcasts(t *testing.T) {
	f := newTestRoom(t, 0, false)

	out := make(chan types.ServerMessage, 64)
	require.NoError(t, f.join(t, "p1", "alice", out).Err)

	f.room.Inbox() <- UpdateScore{By: "org", Target: "p1", Score: 60, Bonus: true}

	msg := recvEvent(t, out, types.EvScoreUpdated)
	require.NotNil(t, msg.Player)
	require.Equal(t, 60.0, msg.Player.Score)
	require.Equal(t, 1, msg.Player.BonusCount)
}

func TestEndGame_ArchivesPaysPotAndRemovesLobby(t *testing.T) {
	f := newTestRoom(t, 10, false)

	f.acct.AddUser(accounts.User{ID: "u-p1", Balance: 50})
	f.acct.AddUser(accounts.User{ID: "u-p2", Balance: 50})

	p1Out := make(chan types.ServerMessage, 64)
	require.NoError(t, f.join(t, "p1", "alice", p1Out).Err)
	require.NoError(t, f.join(t, "p2", "bob", nil).Err)

	f.room.Inbox() <- StartGame{By: "org"}
	f.room.Inbox() <- UpdateScore{By: "org", Target: "p1", Score: 90}
	f.room.Inbox() <- UpdateScore{By: "org", Target: "p2", Score: 40}

	f.room.Inbox() <- EndGame{By: "org"}

	recvEvent(t, p1Out, types.EvShowResults)

	select {
	case pin := <-f.reg.removed:
		require.Equal(t, testPin, pin)
	case <-time.After(time.Second):
		t.Fatal("lobby was never removed from the registry")
	}

	snap, ok := f.arch.Results(testPin)
	require.True(t, ok)
	require.Equal(t, "alice", snap.BestPlayer)
	require.Equal(t, 90.0, snap.BestScore)
	require.Equal(t, 20.0, snap.Pot)
	require.Len(t, snap.Players, 3)

	// Winner takes the pot: 50 - 10 entry + 20 pot.
	u, err := f.acct.GetUserByID(context.Background(), "u-p1")
	require.NoError(t, err)
	require.Equal(t, 60.0, u.Balance)

	recs, err := f.arch.History(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, testPin, recs[0].Pin)
}

func TestEndGame_NonOrganizerIsNoOp(t *testing.T) {
	f := newTestRoom(t, 0, false)

	require.NoError(t, f.join(t, "p1", "alice", nil).Err)
	f.room.Inbox() <- StartGame{By: "org"}

	f.room.Inbox() <- EndGame{By: "p1"}
	require.Equal(t, quiz.PhaseInProgress, f.view(t).Phase)
}

func TestStopCountdown_OrganizerOnly(t *testing.T) {
	f := newTestRoom(t, 0, false)

	out := make(chan types.ServerMessage, 64)
	require.NoError(t, f.join(t, "p1", "alice", out).Err)

	f.room.Inbox() <- StartCountdown{Duration: 10, Mode: countdown.ModeStandard}
	recvEvent(t, out, types.EvCountdown)

	// Silent no-op for a regular player.
	f.room.Inbox() <- StopCountdown{By: "p1"}
	recvNoEvent(t, out, types.EvCountdownStopped, 50*time.Millisecond)

	f.room.Inbox() <- StopCountdown{By: "org"}
	stopped := recvEvent(t, out, types.EvCountdownStopped)
	require.Equal(t, 10, stopped.Remaining)
}
