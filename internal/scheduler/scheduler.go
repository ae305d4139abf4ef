// Package scheduler sequences queued listing submissions through a single
// browser session. It is deliberately not parallel: one profile, one
// identity, one in-flight submission. Concurrent sessions against the same
// account would amplify detection risk, and a profile directory cannot be
// opened by two browser instances at once.
package scheduler

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"marketplace/autoposter/internal/domain"
	"marketplace/autoposter/internal/humanize"
)

// Poster is the submission state machine the scheduler drives.
type Poster interface {
	Initialize(ctx context.Context) error
	Submit(ctx context.Context, payload domain.ListingPayload) domain.SubmissionResult
}

// Session is one opened browser + initialized poster, owned by a single run.
type Session interface {
	Poster
	Close()
}

// SessionFactory opens the session for a run. Start failures (locked
// profile, launch timeout) surface here and are fatal to the run.
type SessionFactory func(ctx context.Context) (Session, error)

// QueueStore is the slice of the persistence store the scheduler writes.
// The scheduler is the sole writer of the posting/posted/failed transitions.
type QueueStore interface {
	MarkPosting(ctx context.Context, id int64) error
	MarkPosted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errText string) error
}

// RunState carries posting state across runs so pacing survives restarts.
type RunState interface {
	LastPostedAt(ctx context.Context) (time.Time, error)
	SetLastPostedAt(ctx context.Context, t time.Time) error
	IncrPosted(ctx context.Context) error
	IncrFailed(ctx context.Context) error
}

// ImageResolver turns remote image references in a payload into local file
// paths the file input can accept.
type ImageResolver interface {
	Resolve(ctx context.Context, images []string) ([]string, error)
}

// Progress is one scheduler status update for the presentation layer.
type Progress struct {
	Index  int
	Total  int
	Record domain.QueueRecord
	Status string
}

// ProgressFunc receives progress updates. May be nil.
type ProgressFunc func(Progress)

// Notifier fans progress out to external consumers. Best-effort.
type Notifier interface {
	PublishProgress(ctx context.Context, p Progress) error
}

// Config tunes inter-record pacing.
type Config struct {
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Scheduler runs the posting queue.
type Scheduler struct {
	open     SessionFactory
	store    QueueStore
	state    RunState
	notifier Notifier
	images   ImageResolver
	pacer    humanize.Pacer
	cfg      Config
}

// New wires a scheduler. state, notifier, and images may be nil when the
// corresponding collaborator is not deployed.
func New(open SessionFactory, store QueueStore, state RunState, notifier Notifier, images ImageResolver, pacer humanize.Pacer, cfg Config) *Scheduler {
	return &Scheduler{
		open:     open,
		store:    store,
		state:    state,
		notifier: notifier,
		images:   images,
		pacer:    pacer,
		cfg:      cfg,
	}
}

// Run processes records strictly in the given order over one browser
// session. Each record reaches a terminal status (posted or failed with
// error text) before the next is picked up; cancellation is honored at
// record boundaries only, so an in-flight submission always completes or
// fails first. The session is closed on every exit path.
func (s *Scheduler) Run(ctx context.Context, records []domain.QueueRecord, progress ProgressFunc) error {
	if len(records) == 0 {
		log.Info("posting queue is empty, nothing to do")
		return nil
	}

	session, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Initialize(ctx); err != nil {
		return err
	}

	s.catchUpPause(ctx)

	total := len(records)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			log.Infof("posting cancelled, %d of %d records left pending", total-i, total)
			return err
		}

		s.emit(ctx, progress, Progress{Index: i, Total: total, Record: rec, Status: "posting"})
		if err := s.store.MarkPosting(ctx, rec.ID); err != nil {
			log.Errorf("failed to mark record %d as posting, skipping it: %v", rec.ID, err)
			continue
		}

		s.postOne(ctx, session, rec, i, total, progress)

		if i < total-1 {
			s.emit(ctx, progress, Progress{Index: i, Total: total, Record: rec, Status: "waiting"})
			if err := s.pacer.Delay(ctx, s.cfg.MinDelay, s.cfg.MaxDelay); err != nil {
				log.Info("posting cancelled during the inter-record pause")
				return err
			}
		}
	}

	log.Infof("posting run complete: %d record(s) processed", total)
	return nil
}

// postOne takes a record already marked posting to a terminal status.
func (s *Scheduler) postOne(ctx context.Context, poster Poster, rec domain.QueueRecord, i, total int, progress ProgressFunc) {
	payload := rec.Payload

	if err := payload.Validate(); err != nil {
		s.fail(ctx, rec, i, total, progress, err.Error())
		return
	}

	if s.images != nil {
		resolved, err := s.images.Resolve(ctx, payload.Images)
		if err != nil {
			s.fail(ctx, rec, i, total, progress, "image resolution failed: "+err.Error())
			return
		}
		payload.Images = resolved
	}

	result := s.submit(ctx, poster, rec, payload)
	if result.Success {
		if err := s.store.MarkPosted(ctx, rec.ID); err != nil {
			log.Errorf("record %d published but status update failed: %v", rec.ID, err)
		}
		s.recordPosted(ctx)
		s.emit(ctx, progress, Progress{Index: i, Total: total, Record: rec, Status: "posted"})
		return
	}

	detail := result.ErrorDetail
	if detail == "" {
		detail = "submission failed"
	}
	s.fail(ctx, rec, i, total, progress, detail)
}

// submit guards against a panicking driver: a crashed submission still
// yields a failed result instead of tearing down the run without a
// terminal status for the in-flight record.
func (s *Scheduler) submit(ctx context.Context, poster Poster, rec domain.QueueRecord, payload domain.ListingPayload) (result domain.SubmissionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("submission of record %d panicked: %v", rec.ID, r)
			result = domain.SubmissionResult{ErrorDetail: "submission crashed, see logs"}
		}
	}()
	return poster.Submit(ctx, payload)
}

func (s *Scheduler) fail(ctx context.Context, rec domain.QueueRecord, i, total int, progress ProgressFunc, detail string) {
	if err := s.store.MarkFailed(ctx, rec.ID, detail); err != nil {
		log.Errorf("failed to record failure for record %d: %v", rec.ID, err)
	}
	if s.state != nil {
		if err := s.state.IncrFailed(ctx); err != nil {
			log.Debugf("failed-counter update skipped: %v", err)
		}
	}
	s.emit(ctx, progress, Progress{Index: i, Total: total, Record: rec, Status: "failed: " + detail})
}

func (s *Scheduler) recordPosted(ctx context.Context) {
	if s.state == nil {
		return
	}
	if err := s.state.SetLastPostedAt(ctx, time.Now()); err != nil {
		log.Debugf("last-posted timestamp update skipped: %v", err)
	}
	if err := s.state.IncrPosted(ctx); err != nil {
		log.Debugf("posted-counter update skipped: %v", err)
	}
}

// catchUpPause keeps the configured minimum gap even across process
// restarts: posting immediately after a crash-restart would break the
// pacing pattern the delays exist to produce.
func (s *Scheduler) catchUpPause(ctx context.Context) {
	if s.state == nil {
		return
	}
	last, err := s.state.LastPostedAt(ctx)
	if err != nil || last.IsZero() {
		return
	}
	since := time.Since(last)
	if since >= s.cfg.MinDelay {
		return
	}
	wait := s.cfg.MinDelay - since
	log.Infof("last post was %s ago, pausing %s before the first submission", since.Round(time.Second), wait.Round(time.Second))
	if err := s.pacer.Delay(ctx, wait, wait); err != nil {
		log.Debugf("catch-up pause interrupted: %v", err)
	}
}

func (s *Scheduler) emit(ctx context.Context, progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
	if s.notifier != nil {
		if err := s.notifier.PublishProgress(ctx, p); err != nil {
			log.Warnf("progress notification failed: %v", err)
		}
	}
}
