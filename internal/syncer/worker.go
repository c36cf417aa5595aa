package syncer

import (
	"context"
	"log"
	"time"

	"github.com/Zuo-Peng/ai-session-sync/internal/event"
	"github.com/Zuo-Peng/ai-session-sync/internal/store"
)

// Tuning controls the worker's pacing. Zero values fall back to the
// defaults below.
type Tuning struct {
	BatchSize      int
	IdleInterval   time.Duration
	Throttle       time.Duration
	BackoffFloor   time.Duration
	BackoffCeiling time.Duration
}

func (t Tuning) withDefaults() Tuning {
	if t.BatchSize <= 0 {
		t.BatchSize = 50
	}
	if t.IdleInterval <= 0 {
		t.IdleInterval = 60 * time.Second
	}
	if t.Throttle <= 0 {
		t.Throttle = 100 * time.Millisecond
	}
	if t.BackoffFloor <= 0 {
		t.BackoffFloor = 100 * time.Millisecond
	}
	if t.BackoffCeiling <= 0 {
		t.BackoffCeiling = 5 * time.Minute
	}
	return t
}

// Worker drains unsynced events from the store to the collector.
// Delivery is newest-first so recent activity shows up remotely before
// the backlog. Redaction happens here, on the outbound copy only; the
// stored payload is never altered.
type Worker struct {
	store    *store.Store
	client   *Client
	classify event.Classifier
	tuning   Tuning

	backoff time.Duration
}

func NewWorker(st *store.Store, client *Client, classify event.Classifier, tuning Tuning) *Worker {
	return &Worker{
		store:    st,
		client:   client,
		classify: classify,
		tuning:   tuning.withDefaults(),
	}
}

// Run loops until the context is cancelled. An empty batch sleeps for
// the idle interval; a delivery failure abandons the rest of the batch
// and doubles the backoff, capped at the ceiling. A success resets the
// backoff to the floor.
func (w *Worker) Run(ctx context.Context) error {
	w.backoff = w.tuning.BackoffFloor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sent, err := w.SyncBatch(ctx)
		if err != nil {
			log.Printf("sync batch failed after %d event(s): %v", sent, err)
			w.backoff = min(w.backoff*2, w.tuning.BackoffCeiling)
			if !sleep(ctx, w.backoff) {
				return ctx.Err()
			}
			continue
		}

		if sent == 0 {
			if !sleep(ctx, w.tuning.IdleInterval) {
				return ctx.Err()
			}
		}
	}
}

// SyncBatch sends one batch of unsynced events, marking each delivered
// event before moving to the next. It stops at the first failure and
// returns how many events went through.
func (w *Worker) SyncBatch(ctx context.Context) (int, error) {
	events, err := w.store.Unsynced(w.tuning.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		payload := Payload{
			FileName:      ev.FileName,
			LineNumber:    ev.LineNumber,
			EventData:     event.Redact(ev.Payload, w.classify),
			GitRemoteURL:  ev.GitRemoteURL,
			GitCommitHash: ev.GitCommitHash,
		}
		if err := w.client.SendEvent(ctx, payload); err != nil {
			return sent, err
		}
		if err := w.store.MarkSynced(ev.ID); err != nil {
			return sent, err
		}
		sent++
		w.backoff = w.tuning.BackoffFloor

		if !sleep(ctx, w.tuning.Throttle) {
			return sent, ctx.Err()
		}
	}
	if sent > 0 {
		log.Printf("synced %d event(s)", sent)
	}
	return sent, nil
}

// sleep waits for d or until the context ends, reporting whether the
// full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
