// Package ws is the websocket gateway: one goroutine pair per connection, an
// outbox channel the registry and rooms broadcast into, and a reader loop
// that turns wire frames into registry/room messages. Events from one
// connection are processed strictly in receipt order.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/countdown"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/registry"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/room"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

const outboxSize = 32

type Gateway struct {
	reg    *registry.Registry
	engine *countdown.Engine
	log    *zap.Logger
}

func NewGateway(reg *registry.Registry, engine *countdown.Engine, log *zap.Logger) *Gateway {
	return &Gateway{reg: reg, engine: engine, log: log}
}

// conn is the per-connection state the reader loop tracks.
type conn struct {
	id     string
	userID string
	outbox chan types.ServerMessage
	room   *room.Room
}

func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer sock.Close(websocket.StatusNormalClosure, "bye")

		c := &conn{
			id:     uuid.NewString(),
			userID: r.URL.Query().Get("userId"),
			outbox: make(chan types.ServerMessage, outboxSize),
		}
		log := g.log.With(zap.String("connection", c.id))

		g.reg.Inbox() <- registry.Subscribe{ConnectionID: c.id, Outbox: c.outbox}
		defer func() {
			g.post(c, room.Leave{ConnectionID: c.id})
			g.engine.Stop(c.id) // headless practice timer, if any
			g.reg.Inbox() <- registry.Unsubscribe{ConnectionID: c.id}
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case msg := <-c.outbox:
					payload, err := json.Marshal(msg)
					if err != nil {
						log.Error("marshal outbound frame", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
					_ = sock.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		for {
			_, data, err := sock.Read(r.Context())
			if err != nil {
				// Disconnection is not an error: the deferred Leave runs the
				// same path as an explicit leaveLobby.
				return
			}
			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.send(types.ServerMessage{Type: types.EvError, Message: "bad json"})
				continue
			}
			g.dispatch(c, cm, log)
		}
	}
}

func (c *conn) send(msg types.ServerMessage) {
	select {
	case c.outbox <- msg:
	default:
	}
}

func (g *Gateway) dispatch(c *conn, cm types.ClientMessage, log *zap.Logger) {
	if cm.UserID != "" {
		c.userID = cm.UserID
	}

	switch cm.Type {
	case types.EvCreateLobby:
		g.createLobby(c, cm)
	case types.EvValidatePin:
		g.validatePin(c, cm)
	case types.EvJoinLobby:
		g.joinLobby(c, cm)
	case types.EvLeaveLobby:
		g.post(c, room.Leave{ConnectionID: c.id})
		c.room = nil

	case types.EvBanPlayer:
		g.toRoom(c, room.Ban{By: c.id, Target: cm.Target})
	case types.EvToggleLock:
		g.toRoom(c, room.ToggleLock{By: c.id})
	case types.EvToggleChat:
		g.toRoom(c, room.ToggleChat{By: c.id, Target: cm.Target})

	case types.EvGameStarted:
		g.toRoom(c, room.StartGame{By: c.id})
	case types.EvGameEnded:
		// The room decides whether the game really ends (organizer only, game
		// in progress). The pointer is cleared through post's Done path once
		// the actor is gone; dropping it here would orphan the seat when the
		// request was a no-op.
		g.post(c, room.EndGame{By: c.id})
	case types.EvQuestionStarted:
		qt, ok := parseQuestionType(cm.QuestionType)
		if !ok {
			c.send(types.ServerMessage{Type: types.EvError, Message: "unknown question type"})
			return
		}
		g.toRoom(c, room.StartQuestion{By: c.id, QuestionType: qt})

	case types.EvQCMAnswerSubmitted:
		g.toRoom(c, room.SubmitQCM{
			ConnectionID: c.id,
			Choices:      cm.Choices,
			Correct:      cm.Correct,
			FromTimer:    cm.FromTimer,
		})
	case types.EvAnswerSubmitted:
		g.toRoom(c, room.SubmitFreeText{ConnectionID: c.id, Text: cm.Answer})
	case types.EvQREAnswerSubmitted:
		g.toRoom(c, room.SubmitEstimate{
			ConnectionID: c.id,
			Value:        cm.Estimate,
			Correct:      cm.Correct,
			FromTimer:    cm.FromTimer,
		})

	case types.EvUpdateHistogram:
		g.toRoom(c, room.HistogramDelta{Deltas: cm.Histogram})
	case types.EvReplaceHistogram:
		g.toRoom(c, room.HistogramReplace{Histogram: cm.Histogram})
	case types.EvUpdateScore:
		g.toRoom(c, room.UpdateScore{By: c.id, Target: cm.Target, Score: cm.Score, Bonus: cm.Bonus})

	case types.EvMarkInputActivity:
		g.toRoom(c, room.MarkActivity{ConnectionID: c.id})
	case types.EvSocketInteracted:
		g.toRoom(c, room.Interacted{ConnectionID: c.id})
	case types.EvResetActivityStates:
		g.toRoom(c, room.ResetActivity{By: c.id})

	case types.EvStartCountdown:
		g.startCountdown(c, cm)
	case types.EvStopCountdown:
		if c.room != nil {
			g.post(c, room.StopCountdown{By: c.id})
		} else {
			g.engine.Stop(c.id)
		}
	case types.EvEnablePanicMode:
		if c.room != nil {
			g.post(c, room.EnablePanic{ConnectionID: c.id})
		} else {
			g.engine.EnablePanic(c.id)
		}

	default:
		log.Debug("unknown event", zap.String("type", cm.Type))
		c.send(types.ServerMessage{Type: types.EvError, Message: "unknown type"})
	}
}

func (g *Gateway) toRoom(c *conn, msg room.Msg) {
	if c.room == nil || !g.post(c, msg) {
		c.send(types.ServerMessage{Type: types.EvError, Message: "not in a lobby"})
	}
}

// post sends into the connection's room, giving up if the actor has already
// shut down (its inbox is never drained after that).
func (g *Gateway) post(c *conn, msg room.Msg) bool {
	rm := c.room
	if rm == nil {
		return false
	}
	// Check liveness before offering the message: a dead room's inbox still
	// buffers sends it will never drain, and select would happily pick it.
	select {
	case <-rm.Done():
		c.room = nil
		return false
	default:
	}
	select {
	case rm.Inbox() <- msg:
		return true
	case <-rm.Done():
		c.room = nil
		return false
	}
}

func (g *Gateway) createLobby(c *conn, cm types.ClientMessage) {
	if c.room != nil {
		c.send(types.ServerMessage{Type: types.EvError, Message: "already in a lobby"})
		return
	}
	reply := make(chan registry.CreateReply, 1)
	g.reg.Inbox() <- registry.CreateLobby{
		GameRef:      cm.GameRef,
		EntryFee:     cm.EntryFee,
		FriendOnly:   cm.FriendOnly,
		ConnectionID: c.id,
		UserID:       c.userID,
		Name:         cm.DisplayName,
		Outbox:       c.outbox,
		Reply:        reply,
	}
	res := <-reply
	if res.Err != nil {
		c.send(types.ServerMessage{Type: types.EvLobbyConnectionFail, Reason: res.Err.Error()})
		return
	}
	c.room = res.Room
	c.send(types.ServerMessage{Type: types.EvLobbyCreated, Pin: res.Pin})
}

func (g *Gateway) validatePin(c *conn, cm types.ClientMessage) {
	rm := g.lookup(cm.Pin)
	if rm == nil {
		c.send(types.ServerMessage{Type: types.EvInvalidPin, Reason: quiz.ErrInvalidPin.Error()})
		return
	}
	reply := make(chan room.SnapshotReply, 1)
	select {
	case rm.Inbox() <- room.GetSnapshot{Name: cm.DisplayName, UserID: c.userID, Reply: reply}:
	case <-rm.Done():
		c.send(types.ServerMessage{Type: types.EvInvalidPin, Reason: quiz.ErrInvalidPin.Error()})
		return
	}
	select {
	case rep := <-reply:
		c.send(types.ServerMessage{Type: types.EvValidPin, Lobby: rep.Snapshot, Reclaimable: rep.Reclaimable})
	case <-rm.Done():
		c.send(types.ServerMessage{Type: types.EvInvalidPin, Reason: quiz.ErrInvalidPin.Error()})
	}
}

func (g *Gateway) joinLobby(c *conn, cm types.ClientMessage) {
	if c.room != nil {
		c.send(types.ServerMessage{Type: types.EvError, Message: "already in a lobby"})
		return
	}
	rm := g.lookup(cm.Pin)
	if rm == nil {
		c.send(types.ServerMessage{Type: types.EvLobbyConnectionFail, Reason: quiz.ErrInvalidPin.Error()})
		return
	}
	reply := make(chan room.JoinResult, 1)
	join := room.Join{
		ConnectionID: c.id,
		UserID:       c.userID,
		Name:         cm.DisplayName,
		AsObserver:   cm.AsObserver,
		Confirmed:    cm.Confirmed,
		Outbox:       c.outbox,
		Reply:        reply,
	}
	select {
	case rm.Inbox() <- join:
	case <-rm.Done():
		c.send(types.ServerMessage{Type: types.EvLobbyConnectionFail, Reason: quiz.ErrInvalidPin.Error()})
		return
	}
	var res room.JoinResult
	select {
	case res = <-reply:
	case <-rm.Done():
		// The room may have replied just before dying.
		select {
		case res = <-reply:
		default:
			c.send(types.ServerMessage{Type: types.EvLobbyConnectionFail, Reason: quiz.ErrInvalidPin.Error()})
			return
		}
	}
	switch {
	case res.Warning:
		c.send(types.ServerMessage{Type: types.EvBlockedWarning, Reason: res.Err.Error()})
	case res.Err != nil:
		c.send(types.ServerMessage{Type: types.EvLobbyConnectionFail, Reason: res.Err.Error()})
	default:
		c.room = rm
		c.send(types.ServerMessage{Type: types.EvLobbyConnection, Lobby: res.Snapshot, Player: &res.Player})
	}
}

// startCountdown routes to the room when the connection is seated; otherwise
// the timer runs headless against the connection itself, which is how solo
// practice sessions get a clock without a lobby.
func (g *Gateway) startCountdown(c *conn, cm types.ClientMessage) {
	mode, ok := countdown.ParseMode(cm.Mode)
	if !ok {
		c.send(types.ServerMessage{Type: types.EvError, Message: "unknown countdown mode"})
		return
	}
	if c.room != nil {
		g.post(c, room.StartCountdown{Duration: cm.Duration, Mode: mode})
		return
	}
	g.engine.Start(c.id, cm.Duration, mode, c.send, nil)
}

func (g *Gateway) lookup(pin string) *room.Room {
	reply := make(chan *room.Room, 1)
	g.reg.Inbox() <- registry.Lookup{Pin: pin, Reply: reply}
	return <-reply
}

func parseQuestionType(s string) (quiz.QuestionType, bool) {
	switch quiz.QuestionType(s) {
	case quiz.QuestionQCM, quiz.QuestionQRL, quiz.QuestionQRE:
		return quiz.QuestionType(s), true
	default:
		return quiz.QuestionNone, false
	}
}
