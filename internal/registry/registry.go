// Package registry owns the pin -> live room table. It is a single actor, so
// pin uniqueness and the lobby cap are enforced without locks; entries are
// only ever added or removed whole, never partially mutated.
package registry

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/room"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

const createAttempts = 100

type Msg interface{ isRegistryMsg() }

type CreateLobby struct {
	GameRef    string
	EntryFee   float64
	FriendOnly bool
	// The creating connection becomes the organizer.
	ConnectionID string
	UserID       string
	Name         string
	Outbox       chan<- types.ServerMessage
	Reply        chan CreateReply
}

type CreateReply struct {
	Pin  string
	Room *room.Room
	Err  error
}

type Lookup struct {
	Pin   string
	Reply chan *room.Room
}

type Remove struct{ Pin string }

// Subscribe registers a connection for lobbyList broadcasts. Every
// connection subscribes on open, roomed or not.
type Subscribe struct {
	ConnectionID string
	Outbox       chan<- types.ServerMessage
}

type Unsubscribe struct{ ConnectionID string }

type SummaryChanged struct{ Summary types.LobbySummary }

type Shutdown struct{}

func (CreateLobby) isRegistryMsg()    {}
func (Lookup) isRegistryMsg()         {}
func (Remove) isRegistryMsg()         {}
func (Subscribe) isRegistryMsg()      {}
func (Unsubscribe) isRegistryMsg()    {}
func (SummaryChanged) isRegistryMsg() {}
func (Shutdown) isRegistryMsg()       {}

type Config struct {
	MaxLobbies int
	PinLength  int
}

type Registry struct {
	inbox     chan Msg
	rooms     map[string]*room.Room
	summaries map[string]types.LobbySummary
	conns     map[string]chan<- types.ServerMessage
	cfg       Config
	roomDeps  room.Deps
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(parent context.Context, cfg Config, roomDeps room.Deps, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	r := &Registry{
		inbox:     make(chan Msg, 64),
		rooms:     map[string]*room.Room{},
		summaries: map[string]types.LobbySummary{},
		conns:     map[string]chan<- types.ServerMessage{},
		cfg:       cfg,
		roomDeps:  roomDeps,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	r.roomDeps.Registrar = r
	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

// LobbyChanged and RemoveLobby implement room.Registrar. They are called
// from room goroutines and only post to the inbox; the registry never sends
// into room inboxes, so there is no cycle to deadlock on.
func (r *Registry) LobbyChanged(summary types.LobbySummary) {
	select {
	case r.inbox <- SummaryChanged{Summary: summary}:
	case <-r.ctx.Done():
	}
}

func (r *Registry) RemoveLobby(pin string) {
	select {
	case r.inbox <- Remove{Pin: pin}:
	case <-r.ctx.Done():
	}
}

func (r *Registry) loop() {
	for {
		select {
		case <-r.ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- r.handleCreate(msg)
			case Lookup:
				msg.Reply <- r.rooms[msg.Pin]
			case Remove:
				if _, ok := r.rooms[msg.Pin]; ok {
					delete(r.rooms, msg.Pin)
					delete(r.summaries, msg.Pin)
					r.log.Info("lobby removed", zap.String("pin", msg.Pin))
					r.broadcastLobbyList()
				}
			case Subscribe:
				r.conns[msg.ConnectionID] = msg.Outbox
				r.send(msg.ConnectionID, r.lobbyListMessage())
			case Unsubscribe:
				delete(r.conns, msg.ConnectionID)
			case SummaryChanged:
				if _, ok := r.rooms[msg.Summary.Pin]; ok {
					r.summaries[msg.Summary.Pin] = msg.Summary
					r.broadcastLobbyList()
				}
			case Shutdown:
				// Rooms run under the registry context; cancelling it stops
				// every actor.
				r.cancel()
				return
			}
		}
	}
}

func (r *Registry) handleCreate(msg CreateLobby) CreateReply {
	if len(r.rooms) >= r.cfg.MaxLobbies {
		return CreateReply{Err: quiz.ErrCapacityExceeded}
	}

	// Rejection sampling over the numeric pin space until an unused value
	// comes up. Pins recycle only after their lobby is deleted.
	var pin string
	for i := 0; ; i++ {
		p, err := generatePin(r.cfg.PinLength)
		if err != nil {
			return CreateReply{Err: fmt.Errorf("generating pin: %w", err)}
		}
		if _, taken := r.rooms[p]; !taken {
			pin = p
			break
		}
		if i == createAttempts {
			return CreateReply{Err: fmt.Errorf("no free pin after %d attempts", createAttempts)}
		}
	}

	lobby := quiz.NewLobby(pin, msg.GameRef, msg.EntryFee, msg.FriendOnly)
	lobby.AddPlayer(&quiz.Player{
		ConnectionID: msg.ConnectionID,
		UserID:       msg.UserID,
		Name:         msg.Name,
		Role:         quiz.RoleOrganizer,
		Activity:     quiz.ActivityRed,
		CanChat:      true,
		HasAnswered:  true, // the organizer never blocks the quorum
	})
	summary := lobby.Summary()

	rm := room.New(r.ctx, lobby, msg.ConnectionID, msg.Outbox, r.roomDeps)
	r.rooms[pin] = rm
	r.summaries[pin] = summary

	r.log.Info("lobby created", zap.String("pin", pin), zap.String("gameRef", msg.GameRef))
	r.broadcastLobbyList()
	return CreateReply{Pin: pin, Room: rm}
}

func (r *Registry) lobbyListMessage() types.ServerMessage {
	list := make([]types.LobbySummary, 0, len(r.summaries))
	for _, s := range r.summaries {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Pin < list[j].Pin })
	return types.ServerMessage{Type: types.EvLobbyList, Lobbies: list}
}

func (r *Registry) broadcastLobbyList() {
	msg := r.lobbyListMessage()
	for id := range r.conns {
		r.send(id, msg)
	}
}

func (r *Registry) send(connID string, msg types.ServerMessage) {
	ch, ok := r.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		// Slow client; the next full-state list will catch it up.
	}
}
