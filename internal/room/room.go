// Package room runs one actor goroutine per live lobby. The actor owns the
// quiz.Lobby record outright: every mutation, including the ones that call
// out to the account service, happens inline in the loop, so two events for
// the same pin can never interleave around an external call.
package room

import (
	"context"

	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/accounts"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/archive"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/countdown"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

// Registrar is the slice of the room registry a room needs: announcing
// lobby-list changes and removing itself when it dies.
type Registrar interface {
	LobbyChanged(summary types.LobbySummary)
	RemoveLobby(pin string)
}

type Deps struct {
	Registrar Registrar
	Accounts  accounts.Service
	Engine    *countdown.Engine
	Archiver  *archive.Archiver
	Log       *zap.Logger
	// Ticks before the inactivity watchdog clears a typing flag.
	WatchdogTicks int
}

type Room struct {
	inbox   chan Msg
	lobby   *quiz.Lobby
	clients map[string]chan<- types.ServerMessage
	deps    Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New starts the actor. The lobby must already hold the organizer; callers
// hand over ownership of the record entirely once the actor is running.
func New(parent context.Context, lobby *quiz.Lobby, organizerConnID string, outbox chan<- types.ServerMessage, deps Deps) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		inbox:   make(chan Msg, 64),
		lobby:   lobby,
		clients: map[string]chan<- types.ServerMessage{organizerConnID: outbox},
		deps:    deps,
		log:     deps.Log.With(zap.String("pin", lobby.Pin)),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done is closed once the actor has shut down. Senders must select on it:
// the inbox of a dead room is never drained.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) Pin() string { return r.lobby.Pin }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg)
			case Leave:
				if closed := r.handleLeave(msg.ConnectionID); closed {
					return
				}
			case Ban:
				r.handleBan(msg)
			case ToggleLock:
				r.handleToggleLock(msg)
			case ToggleChat:
				r.handleToggleChat(msg)
			case StartGame:
				r.handleStartGame(msg)
			case EndGame:
				if closed := r.handleEndGame(msg); closed {
					return
				}
			case StartQuestion:
				r.handleStartQuestion(msg)
			case SubmitQCM:
				r.handleSubmitQCM(msg)
			case SubmitFreeText:
				r.handleSubmitFreeText(msg)
			case SubmitEstimate:
				r.handleSubmitEstimate(msg)
			case HistogramDelta:
				r.handleHistogramDelta(msg)
			case HistogramReplace:
				r.handleHistogramReplace(msg)
			case UpdateScore:
				r.handleUpdateScore(msg)
			case MarkActivity:
				r.handleMarkActivity(msg)
			case Interacted:
				r.handleInteracted(msg)
			case ResetActivity:
				r.handleResetActivity(msg)
			case StartCountdown:
				r.deps.Engine.Start(r.lobby.Pin, msg.Duration, msg.Mode, r.sink, nil)
			case StopCountdown:
				r.handleStopCountdown(msg)
			case EnablePanic:
				r.deps.Engine.EnablePanic(r.lobby.Pin)
			case ClearTyping:
				r.handleClearTyping(msg)
			case Deliver:
				r.broadcast(msg.Msg)
			case GetSnapshot:
				msg.Reply <- r.snapshotReply(msg.Name, msg.UserID)
			case GetState:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	r.deps.Engine.Stop(r.lobby.Pin)
	// Outbox channels are owned by the websocket layer; just forget them.
	clear(r.clients)
	r.cancel()
}

// broadcast fans a message out to every connection in the room. Sends never
// block: roster and histogram broadcasts are idempotent full-state messages,
// so a client that misses one self-heals on the next.
func (r *Room) broadcast(msg types.ServerMessage) {
	for id, ch := range r.clients {
		select {
		case ch <- msg:
		default:
			r.log.Debug("dropping broadcast for slow client",
				zap.String("connection", id), zap.String("event", msg.Type))
		}
	}
}

func (r *Room) sendTo(connID string, msg types.ServerMessage) {
	ch, ok := r.clients[connID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		r.log.Debug("dropping message for slow client",
			zap.String("connection", connID), zap.String("event", msg.Type))
	}
}

// sink feeds countdown broadcasts back through the inbox so they are ordered
// with everything else the room does. It must not block; a full inbox drops
// the tick, the next one catches clients up.
func (r *Room) sink(msg types.ServerMessage) {
	select {
	case r.inbox <- Deliver{Msg: msg}:
	default:
	}
}

func (r *Room) broadcastRoster() {
	r.broadcast(types.ServerMessage{Type: types.EvLatestPlayerList, Players: r.lobby.Roster()})
}

func (r *Room) organizerID() string {
	if org := r.lobby.Organizer(); org != nil {
		return org.ConnectionID
	}
	return ""
}

func (r *Room) isOrganizer(connID string) bool {
	return connID != "" && connID == r.organizerID()
}

func (r *Room) snapshotReply(name, userID string) SnapshotReply {
	rep := SnapshotReply{Snapshot: r.lobby.Snapshot()}
	if name != "" {
		p := r.lobby.FindByName(name)
		rep.Reclaimable = p != nil && p.UserID == userID && p.Activity == quiz.ActivityBlack
	}
	return rep
}

func (r *Room) view() View {
	hist := make(map[string]int, len(r.lobby.Histogram))
	for k, v := range r.lobby.Histogram {
		hist[k] = v
	}
	return View{
		NumClients:     len(r.clients),
		Phase:          r.lobby.Phase,
		QuestionType:   r.lobby.QuestionType,
		QuestionIndex:  r.lobby.QuestionIndex,
		BonusRecipient: r.lobby.BonusRecipient,
		EntryFeeSum:    r.lobby.EntryFeeSum,
		Histogram:      hist,
		Snapshot:       r.lobby.Snapshot(),
	}
}
