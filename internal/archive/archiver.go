// Package archive takes over when a game ends: it keeps a read-only snapshot
// of the final lobby state for post-game queries (ranking, feedback) and
// writes a history record through the persistence service.
package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshot is the final, immutable state of one finished game.
type Snapshot struct {
	Pin        string         `json:"pin"`
	GameRef    string         `json:"gameRef"`
	EndedAt    time.Time      `json:"endedAt"`
	Players    []PlayerResult `json:"players"`
	BestPlayer string         `json:"bestPlayer"`
	BestScore  float64        `json:"bestScore"`
	Pot        float64        `json:"pot"`
}

type PlayerResult struct {
	Name       string  `json:"name"`
	Role       string  `json:"role"`
	Score      float64 `json:"score"`
	BonusCount int     `json:"bonusCount"`
}

type Archiver struct {
	store HistoryStore
	log   *zap.Logger

	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func New(store HistoryStore, log *zap.Logger) *Archiver {
	return &Archiver{
		store:     store,
		log:       log,
		snapshots: map[string]Snapshot{},
	}
}

// Archive stores the snapshot and inserts the history record. The snapshot
// is kept even if the insert fails; players should still see their results.
func (a *Archiver) Archive(ctx context.Context, snap Snapshot) error {
	a.mu.Lock()
	a.snapshots[snap.Pin] = snap
	a.mu.Unlock()

	rec := HistoryRecord{
		Pin:         snap.Pin,
		GameRef:     snap.GameRef,
		BestPlayer:  snap.BestPlayer,
		BestScore:   snap.BestScore,
		PlayerCount: len(snap.Players),
		EndedAt:     snap.EndedAt,
	}
	if err := a.store.Insert(ctx, rec); err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}
	a.log.Info("game archived", zap.String("pin", snap.Pin), zap.String("bestPlayer", snap.BestPlayer))
	return nil
}

// Results returns the post-game snapshot for a finished pin.
func (a *Archiver) Results(pin string) (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snapshots[pin]
	return snap, ok
}

func (a *Archiver) History(ctx context.Context) ([]HistoryRecord, error) {
	return a.store.List(ctx)
}
