// Package recorder persists Sight samples to a SQLite database so a run can
// be inspected after the fact.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/sight"
)

const (
	subscriberBuffer = 1024
	flushInterval    = time.Second
)

// Recorder writes every sample of a sight store to the sight_samples table.
// Samples are buffered and inserted in one transaction per batch.
type Recorder struct {
	db        *sql.DB
	runID     string
	batchSize int
	store     *sight.Store
	logger    customlog.Logger

	mu      sync.Mutex
	pending []sight.Sample
	written int64

	cancel func()
	wg     sync.WaitGroup
}

// Open creates the database at cfg.Path if needed and starts a new run.
func Open(cfg config.RecorderConfig, store *sight.Store, logger customlog.Logger) (*Recorder, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recorder database: %w", err)
	}

	r := &Recorder{
		db:        db,
		runID:     xid.New().String(),
		batchSize: cfg.BatchSize,
		store:     store,
		logger:    logger.WithField("bridge", "recorder"),
	}
	if r.batchSize <= 0 {
		r.batchSize = 1
	}

	if err := r.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(func() {
		if err := r.Flush(); err != nil {
			r.logger.Errorf("Failed to flush recorder on exit: %v", err)
		}
	})

	r.logger.Infof("Recording run %s to %s", r.runID, cfg.Path)
	return r, nil
}

func (r *Recorder) createTables() error {
	_, err := r.db.Exec(`
		create table if not exists sight_samples
		(
			run_id    varchar(20)  not null,
			node      varchar(100) not null,
			name      varchar(100) not null,
			value     text,
			timestamp float        not null
		);
		create index if not exists sight_samples_run_node_index
			on sight_samples (run_id, node, name);
	`)
	if err != nil {
		return fmt.Errorf("failed to create sight_samples table: %w", err)
	}
	return nil
}

// RunID identifies the samples written by this recorder.
func (r *Recorder) RunID() string { return r.runID }

// Name identifies the bridge in logs.
func (r *Recorder) Name() string { return "recorder" }

// Start subscribes to the store.
func (r *Recorder) Start(ctx context.Context) error {
	samples, cancel := r.store.Subscribe(subscriberBuffer)
	r.cancel = cancel

	r.wg.Add(1)
	go r.run(ctx, samples)
	return nil
}

// Stop unsubscribes, flushes and closes the database.
func (r *Recorder) Stop() error {
	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
		r.cancel = nil
	}
	if err := r.Flush(); err != nil {
		return err
	}
	r.logger.Infof("Recorder stopped: %d samples written", r.Written())
	return r.db.Close()
}

// Write buffers one sample and flushes when the batch is full.
func (r *Recorder) Write(sample sight.Sample) error {
	r.mu.Lock()
	r.pending = append(r.pending, sample)
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full {
		return r.Flush()
	}
	return nil
}

// Flush inserts every buffered sample.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(`insert into sight_samples (run_id, node, name, value, timestamp) values (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range r.pending {
		value, err := json.Marshal(s.Value)
		if err != nil {
			value = []byte(fmt.Sprintf("%q", fmt.Sprint(s.Value)))
		}
		ts := float64(s.Timestamp.UnixNano()) / 1e9
		if _, err := stmt.Exec(r.runID, s.Node, s.Name, string(value), ts); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert sample %s/%s: %w", s.Node, s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}
	r.written += int64(len(r.pending))
	r.pending = nil
	return nil
}

// Written returns the number of samples committed.
func (r *Recorder) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Samples returns the recorded samples of node in this run, oldest first.
// Values are decoded from JSON.
func (r *Recorder) Samples(node string) ([]sight.Sample, error) {
	rows, err := r.db.Query(
		`select node, name, value, timestamp from sight_samples where run_id = ? and node = ? order by rowid`,
		r.runID, node)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []sight.Sample
	for rows.Next() {
		var (
			s     sight.Sample
			value string
			ts    float64
		)
		if err := rows.Scan(&s.Node, &s.Name, &value, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(value), &s.Value); err != nil {
			s.Value = value
		}
		s.Timestamp = time.Unix(0, int64(ts*1e9))
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (r *Recorder) run(ctx context.Context, samples <-chan sight.Sample) {
	defer r.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Warnf("Periodic flush failed: %v", err)
			}
		case sample, ok := <-samples:
			if !ok {
				return
			}
			if err := r.Write(sample); err != nil {
				r.logger.Warnf("Failed to record sample: %v", err)
			}
		}
	}
}
