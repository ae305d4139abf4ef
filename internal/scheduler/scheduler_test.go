package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/autoposter/internal/domain"
	"marketplace/autoposter/internal/humanize"
)

type fakeStore struct {
	mu          sync.Mutex
	transitions []string
	failDetails map[int64]string
	postingErr  map[int64]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{failDetails: map[int64]string{}, postingErr: map[int64]error{}}
}

func (s *fakeStore) record(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, fmt.Sprintf(format, args...))
}

func (s *fakeStore) MarkPosting(_ context.Context, id int64) error {
	if err := s.postingErr[id]; err != nil {
		return err
	}
	s.record("posting:%d", id)
	return nil
}

func (s *fakeStore) MarkPosted(_ context.Context, id int64) error {
	s.record("posted:%d", id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, errText string) error {
	s.mu.Lock()
	s.failDetails[id] = errText
	s.mu.Unlock()
	s.record("failed:%d", id)
	return nil
}

type fakeSession struct {
	initErr error
	submit  func(payload domain.ListingPayload) domain.SubmissionResult

	submitted []domain.ListingPayload
	closed    bool
}

func (s *fakeSession) Initialize(context.Context) error { return s.initErr }

func (s *fakeSession) Submit(_ context.Context, payload domain.ListingPayload) domain.SubmissionResult {
	s.submitted = append(s.submitted, payload)
	if s.submit != nil {
		return s.submit(payload)
	}
	return domain.Succeeded()
}

func (s *fakeSession) Close() { s.closed = true }

type fakeState struct {
	last   time.Time
	posted int
	failed int
}

func (s *fakeState) LastPostedAt(context.Context) (time.Time, error) { return s.last, nil }
func (s *fakeState) SetLastPostedAt(_ context.Context, t time.Time) error {
	s.last = t
	return nil
}
func (s *fakeState) IncrPosted(context.Context) error { s.posted++; return nil }
func (s *fakeState) IncrFailed(context.Context) error { s.failed++; return nil }

// recordingPacer captures requested delays without sleeping.
type recordingPacer struct {
	delays []time.Duration
}

func (p *recordingPacer) Delay(ctx context.Context, min, _ time.Duration) error {
	p.delays = append(p.delays, min)
	return ctx.Err()
}

func (p *recordingPacer) TypeText(ctx context.Context, _ humanize.TypeTarget, _ string, _, _ time.Duration) error {
	return ctx.Err()
}

func testRecords(n int) []domain.QueueRecord {
	records := make([]domain.QueueRecord, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, domain.QueueRecord{
			ID: int64(i),
			Payload: domain.ListingPayload{
				Title:  fmt.Sprintf("Item %d", i),
				Price:  10,
				Images: []string{"img.jpg"},
			},
			Status: domain.StatusPending,
		})
	}
	return records
}

func newTestScheduler(session *fakeSession, store *fakeStore, state RunState) *Scheduler {
	open := func(context.Context) (Session, error) { return session, nil }
	return New(open, store, state, nil, nil, humanize.NewSeeded(1), Config{})
}

func TestRunPostsStrictlyInOrder(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{}
	s := newTestScheduler(session, store, nil)

	require.NoError(t, s.Run(context.Background(), testRecords(3), nil))

	assert.Equal(t, []string{
		"posting:1", "posted:1",
		"posting:2", "posted:2",
		"posting:3", "posted:3",
	}, store.transitions)
	assert.True(t, session.closed)
}

func TestRunFailureDoesNotStopTheQueue(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{
		submit: func(payload domain.ListingPayload) domain.SubmissionResult {
			if payload.Title == "Item 2" {
				return domain.Failed(errors.New("could not find the price field"))
			}
			return domain.Succeeded()
		},
	}
	s := newTestScheduler(session, store, nil)

	require.NoError(t, s.Run(context.Background(), testRecords(3), nil))

	assert.Equal(t, []string{
		"posting:1", "posted:1",
		"posting:2", "failed:2",
		"posting:3", "posted:3",
	}, store.transitions)
	assert.Equal(t, "could not find the price field", store.failDetails[2])
}

func TestRunFailedResultAlwaysCarriesDetail(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{
		submit: func(domain.ListingPayload) domain.SubmissionResult {
			return domain.SubmissionResult{} // failure with no detail
		},
	}
	s := newTestScheduler(session, store, nil)

	require.NoError(t, s.Run(context.Background(), testRecords(1), nil))
	assert.NotEmpty(t, store.failDetails[1])
}

func TestRunCancellationStopsAtRecordBoundary(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{}
	s := newTestScheduler(session, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	progress := func(p Progress) {
		if p.Status == "posted" {
			cancel()
		}
	}

	err := s.Run(ctx, testRecords(3), progress)
	assert.ErrorIs(t, err, context.Canceled)

	// The first record completed; nothing after it entered posting.
	assert.Equal(t, []string{"posting:1", "posted:1"}, store.transitions)
	assert.Len(t, session.submitted, 1)
	assert.True(t, session.closed, "session is closed on the cancellation path too")
}

func TestRunSessionStartFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	startErr := errors.New("profile directory is locked")
	open := func(context.Context) (Session, error) { return nil, startErr }
	s := New(open, store, nil, nil, nil, humanize.NewSeeded(1), Config{})

	err := s.Run(context.Background(), testRecords(2), nil)
	assert.ErrorIs(t, err, startErr)
	assert.Empty(t, store.transitions, "no record may be touched when the session never opened")
}

func TestRunInitializeFailureClosesSession(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{initErr: errors.New("login not completed within 5m0s")}
	s := newTestScheduler(session, store, nil)

	err := s.Run(context.Background(), testRecords(2), nil)
	assert.ErrorIs(t, err, session.initErr)
	assert.Empty(t, store.transitions)
	assert.True(t, session.closed)
}

func TestRunEmptyQueueNeverOpensBrowser(t *testing.T) {
	opened := false
	open := func(context.Context) (Session, error) {
		opened = true
		return &fakeSession{}, nil
	}
	s := New(open, newFakeStore(), nil, nil, nil, humanize.NewSeeded(1), Config{})

	require.NoError(t, s.Run(context.Background(), nil, nil))
	assert.False(t, opened)
}

func TestRunPanickingSubmissionIsRecordedAsFailure(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{
		submit: func(domain.ListingPayload) domain.SubmissionResult {
			panic("page crashed")
		},
	}
	s := newTestScheduler(session, store, nil)

	require.NoError(t, s.Run(context.Background(), testRecords(2), nil))

	assert.Equal(t, []string{
		"posting:1", "failed:1",
		"posting:2", "failed:2",
	}, store.transitions)
	assert.Contains(t, store.failDetails[1], "crashed")
	assert.True(t, session.closed)
}

func TestRunInvalidPayloadFailsWithoutSubmitting(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{}
	s := newTestScheduler(session, store, nil)

	records := testRecords(1)
	records[0].Payload.Images = nil

	require.NoError(t, s.Run(context.Background(), records, nil))
	assert.Equal(t, []string{"posting:1", "failed:1"}, store.transitions)
	assert.Empty(t, session.submitted)
	assert.Contains(t, store.failDetails[1], "images")
}

type fakeResolver struct {
	err error
}

func (r *fakeResolver) Resolve(_ context.Context, images []string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	resolved := make([]string, len(images))
	for i, img := range images {
		resolved[i] = "/cache/" + img
	}
	return resolved, nil
}

func TestRunResolvesImagesBeforeSubmitting(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{}
	open := func(context.Context) (Session, error) { return session, nil }
	s := New(open, store, nil, nil, &fakeResolver{}, humanize.NewSeeded(1), Config{})

	require.NoError(t, s.Run(context.Background(), testRecords(1), nil))
	require.Len(t, session.submitted, 1)
	assert.Equal(t, []string{"/cache/img.jpg"}, session.submitted[0].Images)
}

func TestRunImageResolutionFailureFailsTheRecord(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{}
	open := func(context.Context) (Session, error) { return session, nil }
	s := New(open, store, nil, nil, &fakeResolver{err: errors.New("HTTP error: 404")}, humanize.NewSeeded(1), Config{})

	require.NoError(t, s.Run(context.Background(), testRecords(1), nil))
	assert.Equal(t, []string{"posting:1", "failed:1"}, store.transitions)
	assert.Empty(t, session.submitted)
	assert.Contains(t, store.failDetails[1], "image resolution failed")
}

func TestRunMarkPostingErrorSkipsTheRecord(t *testing.T) {
	store := newFakeStore()
	store.postingErr[1] = errors.New("connection refused")
	session := &fakeSession{}
	s := newTestScheduler(session, store, nil)

	require.NoError(t, s.Run(context.Background(), testRecords(2), nil))
	assert.Equal(t, []string{"posting:2", "posted:2"}, store.transitions)
	require.Len(t, session.submitted, 1)
	assert.Equal(t, "Item 2", session.submitted[0].Title)
}

func TestRunUpdatesRunState(t *testing.T) {
	store := newFakeStore()
	state := &fakeState{}
	session := &fakeSession{
		submit: func(payload domain.ListingPayload) domain.SubmissionResult {
			if payload.Title == "Item 2" {
				return domain.Failed(errors.New("boom"))
			}
			return domain.Succeeded()
		},
	}
	s := newTestScheduler(session, store, state)

	require.NoError(t, s.Run(context.Background(), testRecords(2), nil))
	assert.Equal(t, 1, state.posted)
	assert.Equal(t, 1, state.failed)
	assert.False(t, state.last.IsZero())
}

func TestCatchUpPauseCoversTheRemainingGap(t *testing.T) {
	store := newFakeStore()
	state := &fakeState{last: time.Now().Add(-20 * time.Minute)}
	session := &fakeSession{}
	pacer := &recordingPacer{}
	open := func(context.Context) (Session, error) { return session, nil }
	s := New(open, store, state, nil, nil, pacer, Config{MinDelay: time.Hour, MaxDelay: 2 * time.Hour})

	require.NoError(t, s.Run(context.Background(), testRecords(1), nil))

	// First recorded delay is the catch-up: roughly the 40 minutes left of
	// the minimum gap.
	require.NotEmpty(t, pacer.delays)
	assert.InDelta(t, float64(40*time.Minute), float64(pacer.delays[0]), float64(time.Minute))
}

func TestRunEmitsProgressSequence(t *testing.T) {
	store := newFakeStore()
	session := &fakeSession{}
	s := newTestScheduler(session, store, nil)

	var statuses []string
	progress := func(p Progress) { statuses = append(statuses, p.Status) }

	require.NoError(t, s.Run(context.Background(), testRecords(2), progress))
	assert.Equal(t, []string{"posting", "posted", "waiting", "posting", "posted"}, statuses)
}
