package room

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/archive"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/countdown"
	"github.com/steven-ho1/log3900-quiz-app-sub000/internal/quiz"
	"github.com/steven-ho1/log3900-quiz-app-sub000/pkg/types"
)

func (r *Room) handleStartGame(msg StartGame) {
	if !r.isOrganizer(msg.By) || r.lobby.Phase != quiz.PhaseForming {
		return
	}
	r.lobby.Phase = quiz.PhaseInProgress
	r.lobby.QuestionIndex = 0
	r.log.Info("game started")
	r.broadcastRoster()
	r.deps.Registrar.LobbyChanged(r.lobby.Summary())
}

func (r *Room) handleStartQuestion(msg StartQuestion) {
	if !r.isOrganizer(msg.By) || r.lobby.Phase != quiz.PhaseInProgress {
		return
	}
	r.lobby.StartQuestion(msg.QuestionType)
	r.broadcast(types.ServerMessage{Type: types.EvHistogramUpdated, Histogram: r.histogramCopy()})
	r.broadcastRoster()
	// Everyone left in play may already count as answered (all remaining
	// players Black); close the question right away rather than on the next
	// roster change.
	r.checkQuestionEnd()
}

// handleSubmitQCM records a multiple-choice answer. The first correct
// submission that was not forced by the timer wins the bonus; ties are broken
// by arrival order, which the actor loop already guarantees.
func (r *Room) handleSubmitQCM(msg SubmitQCM) {
	p, ok := r.acceptSubmission(msg.ConnectionID, quiz.QuestionQCM)
	if !ok {
		return
	}
	r.lobby.QCMSubmissions = append(r.lobby.QCMSubmissions, quiz.QCMSubmission{
		ConnectionID: p.ConnectionID,
		Name:         p.Name,
		Choices:      msg.Choices,
		Correct:      msg.Correct,
		FromTimer:    msg.FromTimer,
	})
	if msg.Correct && !msg.FromTimer && r.lobby.BonusRecipient == "" {
		r.lobby.BonusRecipient = p.ConnectionID
		p.BonusCount++
	}
	r.finishSubmission(p, msg.FromTimer)
}

func (r *Room) handleSubmitFreeText(msg SubmitFreeText) {
	p, ok := r.acceptSubmission(msg.ConnectionID, quiz.QuestionQRL)
	if !ok {
		return
	}
	r.lobby.FreeTextSubmissions = append(r.lobby.FreeTextSubmissions, quiz.FreeTextSubmission{
		ConnectionID: p.ConnectionID,
		Name:         p.Name,
		Text:         msg.Text,
	})
	p.IsTyping = false
	r.finishSubmission(p, false)
}

func (r *Room) handleSubmitEstimate(msg SubmitEstimate) {
	p, ok := r.acceptSubmission(msg.ConnectionID, quiz.QuestionQRE)
	if !ok {
		return
	}
	r.lobby.EstimateSubmissions = append(r.lobby.EstimateSubmissions, quiz.EstimateSubmission{
		ConnectionID: p.ConnectionID,
		Name:         p.Name,
		Value:        msg.Value,
		Correct:      msg.Correct,
	})
	r.finishSubmission(p, msg.FromTimer)
}

// acceptSubmission screens a submission against the current question. A
// submission that arrives after the question was reset simply has no context
// to attach to and is dropped (timing races are tolerated, not rejected).
func (r *Room) acceptSubmission(connID string, want quiz.QuestionType) (*quiz.Player, bool) {
	if r.lobby.Phase != quiz.PhaseInProgress || r.lobby.QuestionType != want {
		return nil, false
	}
	p := r.lobby.FindPlayer(connID)
	// Only seated players answer; organizer and observers are out of quorum.
	if p == nil || p.Role != quiz.RolePlayer || p.HasAnswered {
		return nil, false
	}
	return p, true
}

func (r *Room) finishSubmission(p *quiz.Player, fromTimer bool) {
	p.HasAnswered = true
	// A timer-forced submission keeps whatever color the player had.
	if !fromTimer {
		p.Activity = quiz.ActivityGreen
	}
	r.broadcastRoster()
	r.checkQuestionEnd()
}

// checkQuestionEnd runs after every submission and every departure. When all
// active players have answered, the question ends exactly once: the
// end-of-question broadcast for the question's shape goes out, then all
// per-question state resets in one step.
func (r *Room) checkQuestionEnd() {
	lb := r.lobby
	if lb.Phase != quiz.PhaseInProgress || lb.QuestionType == quiz.QuestionNone {
		return
	}
	if !lb.QuorumMet() {
		return
	}

	switch lb.QuestionType {
	case quiz.QuestionQCM:
		r.broadcast(types.ServerMessage{Type: types.EvQCMEnd, BonusRecipient: lb.BonusRecipient})
	case quiz.QuestionQRE:
		r.broadcast(types.ServerMessage{Type: types.EvQREEnd, BonusRecipient: lb.BonusRecipient})
	case quiz.QuestionQRL:
		r.broadcast(types.ServerMessage{Type: types.EvQRLEnd, Answers: r.sortedFreeTextAnswers()})
	}

	r.deps.Engine.Stop(lb.Pin)
	lb.ResetQuestion()
	r.broadcastRoster()
	r.log.Info("question ended", zap.Int("index", lb.QuestionIndex))
}

// sortedFreeTextAnswers orders the collected free-text answers by submitter
// name, case-insensitively, keeping arrival order for equal names so grading
// review is synchronized across clients.
func (r *Room) sortedFreeTextAnswers() []types.FreeTextAnswer {
	subs := make([]quiz.FreeTextSubmission, len(r.lobby.FreeTextSubmissions))
	copy(subs, r.lobby.FreeTextSubmissions)
	sort.SliceStable(subs, func(i, j int) bool {
		return strings.ToLower(subs[i].Name) < strings.ToLower(subs[j].Name)
	})
	out := make([]types.FreeTextAnswer, len(subs))
	for i, s := range subs {
		out[i] = types.FreeTextAnswer{ConnectionID: s.ConnectionID, Name: s.Name, Text: s.Text}
	}
	return out
}

// handleHistogramDelta merges per-bucket deltas, creating absent buckets at
// zero. Counts are never recomputed from scratch.
func (r *Room) handleHistogramDelta(msg HistogramDelta) {
	for bucket, delta := range msg.Deltas {
		r.lobby.Histogram[bucket] += delta
	}
	r.broadcast(types.ServerMessage{Type: types.EvHistogramUpdated, Histogram: r.histogramCopy()})
}

// handleHistogramReplace overwrites the histogram wholesale. Free-text grade
// tallies are recomputed client-side and pushed as a unit, so applying the
// same replacement twice must not double anything.
func (r *Room) handleHistogramReplace(msg HistogramReplace) {
	fresh := make(map[string]int, len(msg.Histogram))
	for bucket, count := range msg.Histogram {
		fresh[bucket] = count
	}
	r.lobby.Histogram = fresh
	r.broadcast(types.ServerMessage{Type: types.EvHistogramUpdated, Histogram: r.histogramCopy()})
}

func (r *Room) histogramCopy() map[string]int {
	out := make(map[string]int, len(r.lobby.Histogram))
	for k, v := range r.lobby.Histogram {
		out[k] = v
	}
	return out
}

func (r *Room) handleUpdateScore(msg UpdateScore) {
	if !r.isOrganizer(msg.By) {
		return
	}
	p := r.lobby.FindPlayer(msg.Target)
	if p == nil {
		return
	}
	p.Score = msg.Score
	if msg.Bonus {
		p.BonusCount++
	}
	view := p.View()
	r.broadcast(types.ServerMessage{Type: types.EvScoreUpdated, Player: &view})
}

func (r *Room) handleMarkActivity(msg MarkActivity) {
	p := r.lobby.FindPlayer(msg.ConnectionID)
	if p == nil || p.Role == quiz.RoleOrganizer {
		return
	}
	if p.Activity == quiz.ActivityRed {
		p.Activity = quiz.ActivityYellow
	}
	p.IsTyping = true
	connID := msg.ConnectionID
	r.deps.Engine.Start(r.lobby.Pin, r.watchdogTicks(), countdown.ModeWatchdog, r.sink, func() {
		select {
		case r.inbox <- ClearTyping{ConnectionID: connID}:
		default:
		}
	})
	r.broadcastRoster()
}

func (r *Room) handleClearTyping(msg ClearTyping) {
	p := r.lobby.FindPlayer(msg.ConnectionID)
	if p == nil || !p.IsTyping {
		return
	}
	p.IsTyping = false
	r.broadcastRoster()
}

func (r *Room) handleInteracted(msg Interacted) {
	p := r.lobby.FindPlayer(msg.ConnectionID)
	if p == nil || p.Role == quiz.RoleOrganizer {
		return
	}
	if p.Activity == quiz.ActivityRed {
		p.Activity = quiz.ActivityYellow
	}
	r.broadcastRoster()
}

func (r *Room) handleResetActivity(msg ResetActivity) {
	if !r.isOrganizer(msg.By) {
		return
	}
	for _, p := range r.lobby.Players {
		if p.Role == quiz.RoleOrganizer || p.Activity == quiz.ActivityBlack {
			continue
		}
		p.Activity = quiz.ActivityRed
		p.IsTyping = false
	}
	r.broadcastRoster()
}

func (r *Room) handleStopCountdown(msg StopCountdown) {
	// Only the organizer may pause the game clock; anyone else is a silent
	// no-op.
	if !r.isOrganizer(msg.By) {
		return
	}
	remaining, stopped := r.deps.Engine.Stop(r.lobby.Pin)
	if !stopped {
		return
	}
	r.broadcast(types.ServerMessage{Type: types.EvCountdownStopped, Remaining: remaining})
}

// handleEndGame snapshots the final lobby state for post-game queries, pays
// the pot out to the best-scoring player still present, and removes the live
// lobby. Highest score wins; equal scores fall back to roster order, which is
// deliberately left undocumented to clients.
func (r *Room) handleEndGame(msg EndGame) bool {
	if !r.isOrganizer(msg.By) || r.lobby.Phase != quiz.PhaseInProgress {
		return false
	}
	lb := r.lobby
	lb.Phase = quiz.PhaseEnded

	best := r.bestPlayer()
	if best != nil && lb.EntryFeeSum > 0 {
		if err := r.deps.Accounts.CreditWallet(r.ctx, best.UserID, lb.EntryFeeSum); err != nil {
			r.log.Error("crediting pot failed", zap.String("user", best.UserID), zap.Error(err))
		}
	}

	snap := archive.Snapshot{
		Pin:     lb.Pin,
		GameRef: lb.GameRef,
		EndedAt: time.Now(),
		Pot:     lb.EntryFeeSum,
	}
	for _, p := range lb.Players {
		snap.Players = append(snap.Players, archive.PlayerResult{
			Name:       p.Name,
			Role:       string(p.Role),
			Score:      p.Score,
			BonusCount: p.BonusCount,
		})
	}
	if best != nil {
		snap.BestPlayer = best.Name
		snap.BestScore = best.Score
	}
	if err := r.deps.Archiver.Archive(r.ctx, snap); err != nil {
		r.log.Error("archiving game failed", zap.Error(err))
	}

	r.broadcast(types.ServerMessage{Type: types.EvShowResults, Pin: lb.Pin})
	r.log.Info("game ended", zap.String("winner", snap.BestPlayer))
	r.deps.Registrar.RemoveLobby(lb.Pin)
	r.shutdown()
	return true
}

// bestPlayer picks the highest score among non-observer players still
// present at game end.
func (r *Room) bestPlayer() *quiz.Player {
	var best *quiz.Player
	for _, p := range r.lobby.Players {
		if p.Role != quiz.RolePlayer || p.Activity == quiz.ActivityBlack {
			continue
		}
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

func (r *Room) watchdogTicks() int {
	if r.deps.WatchdogTicks > 0 {
		return r.deps.WatchdogTicks
	}
	return 5
}
