package db

import (
	"context"
	"database/sql"
)

// TxFn runs inside a write transaction managed by the Worker.
type TxFn func(ctx context.Context, tx *sql.Tx) error

type writeReq struct {
	ctx    context.Context
	fn     TxFn
	result chan error
}

// Worker funnels all writes through a single goroutine, one transaction at
// a time.  With SQLite capped at one connection this keeps writers from
// ever contending on SQLITE_BUSY.
type Worker struct {
	db    *sql.DB
	queue chan writeReq
	done  chan struct{}
}

func NewWorker(db *sql.DB) *Worker {
	w := &Worker{
		db:    db,
		queue: make(chan writeReq, 256),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

// Close drains the queue and stops the goroutine.  No Do calls may follow.
func (w *Worker) Close() {
	close(w.queue)
	<-w.done
}

// Do submits fn and waits for its transaction to finish.  If ctx expires
// while the request is queued or executing, Do returns early with ctx.Err();
// the worker still completes the transaction and the result is discarded
// into the buffered channel.
func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	req := writeReq{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case w.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for req := range w.queue {
		req.result <- w.runTx(req.ctx, req.fn)
	}
}

func (w *Worker) runTx(ctx context.Context, fn TxFn) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
