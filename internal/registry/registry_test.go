package registry

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
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/room"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

func newTestRegistry(t *testing.T, maxLobbies int) *Registry {
	t.Helper()
	log := zap.NewNop()
	engine := countdown.NewEngine(clockwork.NewFakeClock(), countdown.Config{TickPeriod: time.Second, PanicFactor: 4}, log)
	deps := room.Deps{
		Accounts: accounts.NewInMemory(),
		Engine:   engine,
		Archiver: archive.New(archive.NewMemoryStore(), log),
		Log:      log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, Config{MaxLobbies: maxLobbies, PinLength: 4}, deps, log)
}

func createLobby(t *testing.T, r *Registry, connID string, out chan types.ServerMessage) CreateReply {
	t.Helper()
	reply := make(chan CreateReply, 1)
	r.Inbox() <- CreateLobby{
		GameRef:      "quiz-1",
		ConnectionID: connID,
		UserID:       "u-" + connID,
		Name:         "host-" + connID,
		Outbox:       out,
		Reply:        reply,
	}
	select {
	case res := <-reply:
		return res
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for create reply")
		return CreateReply{}
	}
}

func lookupRoom(t *testing.T, r *Registry, pin string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	r.Inbox() <- Lookup{Pin: pin, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for lookup reply")
		return nil
	}
}

func recvList(t *testing.T, ch <-chan types.ServerMessage) types.ServerMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Type == types.EvLobbyList {
				return msg
			}
		case <-deadline:
			t.Fatal("timed out waiting for lobbyList")
			return types.ServerMessage{}
		}
	}
}

func TestCreateLobby_PinsAreUniqueAndNumeric(t *testing.T) {
	r := newTestRegistry(t, 10)
	out := make(chan types.ServerMessage, 64)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		res := createLobby(t, r, "conn-"+string(rune('a'+i)), out)
		require.NoError(t, res.Err)
		require.Len(t, res.Pin, 4)
		for _, c := range res.Pin {
			require.True(t, c >= '0' && c <= '9', "pin %q is not numeric", res.Pin)
		}
		require.False(t, seen[res.Pin], "pin %q issued twice", res.Pin)
		seen[res.Pin] = true
	}
}

func TestCreateLobby_CapacityExceeded(t *testing.T) {
	r := newTestRegistry(t, 2)
	out := make(chan types.ServerMessage, 64)

	require.NoError(t, createLobby(t, r, "a", out).Err)
	require.NoError(t, createLobby(t, r, "b", out).Err)

	res := createLobby(t, r, "c", out)
	require.ErrorIs(t, res.Err, quiz.ErrCapacityExceeded)
	// No partial room left behind.
	require.Empty(t, res.Pin)
}

func TestRemove_RecyclesCapacityAndPin(t *testing.T) {
	r := newTestRegistry(t, 1)
	out := make(chan types.ServerMessage, 64)

	first := createLobby(t, r, "a", out)
	require.NoError(t, first.Err)

	r.Inbox() <- Remove{Pin: first.Pin}

	second := createLobby(t, r, "b", out)
	require.NoError(t, second.Err)
	require.NotNil(t, lookupRoom(t, r, second.Pin))
}

func TestLookup_UnknownPinIsNil(t *testing.T) {
	r := newTestRegistry(t, 5)
	out := make(chan types.ServerMessage, 64)

	res := createLobby(t, r, "a", out)
	require.NoError(t, res.Err)

	require.NotNil(t, lookupRoom(t, r, res.Pin))

	absent := "0000"
	if absent == res.Pin {
		absent = "0001"
	}
	require.Nil(t, lookupRoom(t, r, absent))
}

func TestSubscribe_ReceivesLobbyListUpdates(t *testing.T) {
	r := newTestRegistry(t, 5)
	browser := make(chan types.ServerMessage, 64)

	r.Inbox() <- Subscribe{ConnectionID: "browser", Outbox: browser}
	initial := recvList(t, browser)
	require.Empty(t, initial.Lobbies)

	orgOut := make(chan types.ServerMessage, 64)
	res := createLobby(t, r, "org", orgOut)
	require.NoError(t, res.Err)

	updated := recvList(t, browser)
	require.Len(t, updated.Lobbies, 1)
	require.Equal(t, res.Pin, updated.Lobbies[0].Pin)

	r.Inbox() <- Remove{Pin: res.Pin}
	emptied := recvList(t, browser)
	require.Empty(t, emptied.Lobbies)
}

func TestOrganizerLeave_RemovesLobbyFromRegistry(t *testing.T) {
	r := newTestRegistry(t, 5)
	browser := make(chan types.ServerMessage, 64)
	r.Inbox() <- Subscribe{ConnectionID: "browser", Outbox: browser}
	recvList(t, browser)

	orgOut := make(chan types.ServerMessage, 64)
	res := createLobby(t, r, "org", orgOut)
	require.NoError(t, res.Err)
	recvList(t, browser)

	res.Room.Inbox() <- room.Leave{ConnectionID: "org"}

	emptied := recvList(t, browser)
	require.Empty(t, emptied.Lobbies)
	require.Nil(t, lookupRoom(t, r, res.Pin))
}
