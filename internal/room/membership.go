package room

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

const (
	ReasonNoHost = "NO HOST"
	ReasonBanned = "BANNED"
)

// handleJoin runs the admission checks in order; the first failing check
// wins. The account-service calls happen inline in the actor loop, so a
// second join for the same lobby cannot slip in between the balance check
// and the debit.
func (r *Room) handleJoin(msg Join) JoinResult {
	lb := r.lobby

	// A player who dropped mid-game may take their seat back under the same
	// identity, locked or not.
	if existing := lb.FindByName(msg.Name); existing != nil {
		if existing.UserID == msg.UserID && existing.Activity == quiz.ActivityBlack {
			return r.reconnect(existing, msg)
		}
		if lb.Locked {
			return JoinResult{Err: quiz.ErrLobbyLocked}
		}
		return JoinResult{Err: quiz.ErrNameTaken}
	}

	if lb.Locked {
		return JoinResult{Err: quiz.ErrLobbyLocked}
	}
	if lb.Started() {
		return JoinResult{Err: quiz.ErrGameStarted}
	}
	if lb.IsBanned(msg.Name) {
		return JoinResult{Err: quiz.ErrNameBanned}
	}

	paid := lb.EntryFee > 0 && !msg.AsObserver
	if paid {
		u, err := r.deps.Accounts.GetUserByID(r.ctx, msg.UserID)
		if err != nil {
			return JoinResult{Err: fmt.Errorf("fetching user: %w", err)}
		}
		if u.Balance < lb.EntryFee {
			return JoinResult{Err: quiz.ErrInsufficientFunds}
		}
	}

	if lb.FriendOnly {
		org := lb.Organizer()
		if org == nil {
			return JoinResult{Err: quiz.ErrFriendsOnly}
		}
		friend, err := r.deps.Accounts.IsFriendOf(r.ctx, msg.UserID, org.UserID)
		if err != nil {
			return JoinResult{Err: fmt.Errorf("checking friendship: %w", err)}
		}
		if !friend {
			return JoinResult{Err: quiz.ErrFriendsOnly}
		}
	}

	hasBlocked := false
	for _, p := range lb.Players {
		blocked, err := r.deps.Accounts.IsBlockedBy(r.ctx, msg.UserID, p.UserID)
		if err != nil {
			return JoinResult{Err: fmt.Errorf("checking blocks: %w", err)}
		}
		if blocked {
			return JoinResult{Err: quiz.ErrBlocked}
		}
		mine, err := r.deps.Accounts.IsBlockedBy(r.ctx, p.UserID, msg.UserID)
		if err != nil {
			return JoinResult{Err: fmt.Errorf("checking blocks: %w", err)}
		}
		hasBlocked = hasBlocked || mine
	}
	// Having blocked a participant is a soft stop: the caller must confirm,
	// not be refused.
	if hasBlocked && !msg.Confirmed {
		return JoinResult{Warning: true, Err: quiz.ErrBlockedWarning}
	}

	if paid {
		if err := r.deps.Accounts.DebitWallet(r.ctx, msg.UserID, lb.EntryFee); err != nil {
			return JoinResult{Err: quiz.ErrInsufficientFunds}
		}
		lb.EntryFeeSum += lb.EntryFee
	}

	role := quiz.RolePlayer
	if msg.AsObserver {
		role = quiz.RoleObserver
	}
	p := &quiz.Player{
		ConnectionID: msg.ConnectionID,
		UserID:       msg.UserID,
		Name:         msg.Name,
		Role:         role,
		Activity:     quiz.ActivityRed,
		CanChat:      true,
	}
	lb.AddPlayer(p)
	r.clients[msg.ConnectionID] = msg.Outbox

	r.log.Info("player joined",
		zap.String("name", msg.Name), zap.String("role", string(role)))
	r.broadcastRoster()
	r.deps.Registrar.LobbyChanged(lb.Summary())
	return JoinResult{Player: p.View(), Snapshot: lb.Snapshot()}
}

func (r *Room) reconnect(p *quiz.Player, msg Join) JoinResult {
	delete(r.clients, p.ConnectionID)
	p.ConnectionID = msg.ConnectionID
	p.Activity = quiz.ActivityRed
	r.clients[msg.ConnectionID] = msg.Outbox

	r.log.Info("player reconnected", zap.String("name", p.Name))
	r.broadcastRoster()
	return JoinResult{Player: p.View(), Snapshot: r.lobby.Snapshot()}
}

// handleLeave covers explicit leaves and disconnects alike. Mid-game a
// non-organizer keeps their roster seat, shown Black, so final rankings still
// include them; before the game starts they are removed outright. Returns
// true when the leave closed the room.
func (r *Room) handleLeave(connID string) bool {
	lb := r.lobby
	p := lb.FindPlayer(connID)
	if p == nil {
		return false
	}

	if p.Role == quiz.RoleOrganizer {
		r.log.Info("organizer left, closing lobby")
		lb.RemovePlayer(connID)
		delete(r.clients, connID)
		r.closeLobby(ReasonNoHost, "The organizer has left the game.")
		return true
	}

	delete(r.clients, connID)
	if lb.Phase == quiz.PhaseInProgress && p.Role == quiz.RolePlayer {
		p.Activity = quiz.ActivityBlack
		p.IsTyping = false
	} else {
		lb.RemovePlayer(connID)
	}
	r.log.Info("player left", zap.String("name", p.Name))

	if len(r.clients) == 0 {
		r.deps.Registrar.RemoveLobby(lb.Pin)
		r.shutdown()
		return true
	}

	r.broadcastRoster()
	// A departing player must not be able to block question completion.
	r.checkQuestionEnd()

	if r.onlyOrganizerRemains() {
		r.sendTo(r.organizerID(), types.ServerMessage{Type: types.EvNoPlayers})
	}
	r.deps.Registrar.LobbyChanged(lb.Summary())
	return false
}

func (r *Room) onlyOrganizerRemains() bool {
	count := 0
	organizerOnly := true
	for _, p := range r.lobby.Players {
		if p.Role == quiz.RoleObserver || p.Activity == quiz.ActivityBlack {
			continue
		}
		count++
		if p.Role != quiz.RoleOrganizer {
			organizerOnly = false
		}
	}
	return count == 1 && organizerOnly
}

func (r *Room) handleBan(msg Ban) {
	if !r.isOrganizer(msg.By) {
		return
	}
	target := r.lobby.FindPlayer(msg.Target)
	if target == nil {
		return
	}

	r.lobby.BanName(target.Name)
	r.lobby.RemovePlayer(target.ConnectionID)
	r.sendTo(target.ConnectionID, types.ServerMessage{
		Type:    types.EvLobbyClosed,
		Reason:  ReasonBanned,
		Message: "You have been banned from this game.",
	})
	delete(r.clients, target.ConnectionID)

	r.log.Info("player banned", zap.String("name", target.Name))
	r.broadcastRoster()
	r.checkQuestionEnd()
	r.deps.Registrar.LobbyChanged(r.lobby.Summary())
}

func (r *Room) handleToggleLock(msg ToggleLock) {
	if !r.isOrganizer(msg.By) {
		return
	}
	r.lobby.Locked = !r.lobby.Locked
	r.deps.Registrar.LobbyChanged(r.lobby.Summary())
}

func (r *Room) handleToggleChat(msg ToggleChat) {
	if !r.isOrganizer(msg.By) {
		return
	}
	p := r.lobby.FindPlayer(msg.Target)
	if p == nil {
		return
	}
	p.CanChat = !p.CanChat
	r.broadcastRoster()
}

// closeLobby force-disconnects every remaining participant from the room and
// tears the room down. The websocket connections themselves stay open.
func (r *Room) closeLobby(reason, message string) {
	r.broadcast(types.ServerMessage{
		Type:    types.EvLobbyClosed,
		Reason:  reason,
		Message: message,
	})
	r.deps.Registrar.RemoveLobby(r.lobby.Pin)
	r.shutdown()
}
