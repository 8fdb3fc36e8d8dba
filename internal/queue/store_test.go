package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/pkg/db/dbtest"
	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
	"github.com/mutirao/castracao-backend/pkg/pagination"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*Store, *gorm.DB, *testClock) {
	t.Helper()
	client := dbtest.Open(t)
	clock := newTestClock()
	store, err := NewStore(StoreParams{DB: client.DB(), Policy: DefaultPolicy(), Now: clock.Now})
	require.NoError(t, err)
	return store, client.DB(), clock
}

func enqueueN(t *testing.T, store *Store, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		msg, err := store.Enqueue(context.Background(), EnqueueInput{
			Recipient: fmt.Sprintf("55329999900%02d", i),
			Body:      fmt.Sprintf("mensagem %d", i),
			Kind:      enums.MessageKindStatusChanged,
		})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	return ids
}

func loadMessage(t *testing.T, db *gorm.DB, id uuid.UUID) models.Message {
	t.Helper()
	var msg models.Message
	require.NoError(t, db.Where("id = ?", id).Take(&msg).Error)
	return msg
}

func TestEnqueueValidatesAndDefaults(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := store.Enqueue(ctx, EnqueueInput{Recipient: " ", Body: "oi"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = store.Enqueue(ctx, EnqueueInput{Recipient: "5532999990000", Body: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	msg, err := store.Enqueue(ctx, EnqueueInput{Recipient: "5532999990000", Body: "oi"})
	require.NoError(t, err)
	assert.Equal(t, enums.MessageStatusQueued, msg.Status)
	assert.Equal(t, 0, msg.Attempts)
	assert.True(t, msg.NextAttemptAt.Equal(clock.Now()))
	assert.Nil(t, msg.LastError)
}

func TestEnqueueDedupeKeyReturnsExisting(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Enqueue(ctx, EnqueueInput{Recipient: "5532999990000", Body: "oi", DedupeKey: "registration:1:confirmed"})
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, EnqueueInput{Recipient: "5532999990000", Body: "outra", DedupeKey: "registration:1:confirmed"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "oi", second.Body)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnqueueTxRollsBackWithCaller(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := store.EnqueueTx(ctx, tx, EnqueueInput{Recipient: "5532999990000", Body: "oi"}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClaimNextTransitionsToSending(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()

	none, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	ids := enqueueN(t, store, 2)
	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, ids[0], claimed.ID)
	assert.Equal(t, enums.MessageStatusSending, claimed.Status)
	assert.Equal(t, enums.MessageStatusSending, loadMessage(t, db, ids[0]).Status)

	next, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, ids[1], next.ID)

	empty, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestClaimNextConcurrentClaimersNeverShareAMessage(t *testing.T) {
	store, _, _ := newTestStore(t)
	const total = 30
	enqueueN(t, store, total)

	var (
		mu      sync.Mutex
		seen    = map[uuid.UUID]int{}
		wg      sync.WaitGroup
		errs    = make(chan error, 8)
		workers = 8
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, err := store.ClaimNext(context.Background())
				if err != nil {
					errs <- err
					return
				}
				if msg == nil {
					return
				}
				mu.Lock()
				seen[msg.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "message %s claimed %d times", id, n)
	}
}

func TestMarkSentClearsError(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 1)

	_, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	_, err = store.MarkFailed(ctx, ids[0], "timeout")
	require.NoError(t, err)

	// Not claimed right now.
	assert.ErrorIs(t, store.MarkSent(ctx, ids[0]), ErrNotClaimed)
	assert.ErrorIs(t, store.MarkSent(ctx, uuid.New()), ErrNotFound)

	require.NoError(t, db.Model(&models.Message{}).Where("id = ?", ids[0]).
		Update("next_attempt_at", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)).Error)
	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, store.MarkSent(ctx, claimed.ID))

	msg := loadMessage(t, db, ids[0])
	assert.Equal(t, enums.MessageStatusSent, msg.Status)
	assert.Nil(t, msg.LastError)
	assert.NotNil(t, msg.FinishedAt)
	assert.Nil(t, msg.ClaimedAt)
}

func TestReleaseKeepsAttempts(t *testing.T) {
	store, db, clock := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 1)

	for i := 0; i < 5; i++ {
		claimed, err := store.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed, "claim %d", i+1)
		require.NoError(t, store.Release(ctx, claimed.ID))
		clock.Advance(time.Second)
	}

	msg := loadMessage(t, db, ids[0])
	assert.Equal(t, enums.MessageStatusQueued, msg.Status)
	assert.Equal(t, 0, msg.Attempts)
	assert.Nil(t, msg.ClaimedAt)
	assert.Nil(t, msg.FinishedAt)

	assert.ErrorIs(t, store.Release(ctx, ids[0]), ErrNotClaimed)
	assert.ErrorIs(t, store.Release(ctx, uuid.New()), ErrNotFound)
}

func TestMarkFailedBacksOffThenBecomesTerminal(t *testing.T) {
	store, db, clock := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 1)
	id := ids[0]

	// First failure: back to queued, 30s later.
	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	outcome, err := store.MarkFailed(ctx, id, "gateway 503")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Attempts)
	assert.False(t, outcome.Terminal)
	assert.True(t, outcome.NextAttemptAt.Equal(clock.Now().Add(30*time.Second)))

	msg := loadMessage(t, db, id)
	assert.Equal(t, enums.MessageStatusQueued, msg.Status)
	require.NotNil(t, msg.LastError)
	assert.Equal(t, "gateway 503", *msg.LastError)

	// Not ready before the backoff elapses.
	early, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, early)

	clock.Advance(30 * time.Second)
	claimed, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	outcome, err = store.MarkFailed(ctx, id, "gateway 503")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Attempts)
	assert.True(t, outcome.NextAttemptAt.Equal(clock.Now().Add(60*time.Second)))

	clock.Advance(time.Minute)
	claimed, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	outcome, err = store.MarkFailed(ctx, id, "gateway 503")
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.Attempts)
	assert.True(t, outcome.Terminal)

	msg = loadMessage(t, db, id)
	assert.Equal(t, enums.MessageStatusFailed, msg.Status)
	assert.Equal(t, 3, msg.Attempts)

	clock.Advance(24 * time.Hour)
	never, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, never)

	_, err = store.MarkFailed(ctx, id, "again")
	assert.ErrorIs(t, err, ErrNotClaimed)
}

func TestClaimNextPicksRetryableFailedRows(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 1)

	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Model(&models.Message{}).Where("id = ?", ids[0]).Updates(map[string]any{
		"status":          enums.MessageStatusFailed,
		"attempts":        1,
		"next_attempt_at": past,
	}).Error)

	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, ids[0], claimed.ID)
	assert.Equal(t, 1, claimed.Attempts)
}

func TestClaimNextRecoversStaleSendingRows(t *testing.T) {
	store, db, clock := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 1)
	id := ids[0]

	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Worker crashed; the claim is still fresh.
	clock.Advance(time.Minute)
	none, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	clock.Advance(DefaultStaleAfter)
	reclaimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, id, reclaimed.ID)
	assert.Equal(t, 1, reclaimed.Attempts)

	clock.Advance(DefaultStaleAfter + time.Second)
	reclaimed, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, 2, reclaimed.Attempts)

	// Third abandoned claim exhausts the attempts.
	clock.Advance(DefaultStaleAfter + time.Second)
	none, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	msg := loadMessage(t, db, id)
	assert.Equal(t, enums.MessageStatusFailed, msg.Status)
	assert.Equal(t, 3, msg.Attempts)
	assert.NotNil(t, msg.FinishedAt)
}

func TestPurgeOlderThanOnlyRemovesOldTerminalRows(t *testing.T) {
	store, db, clock := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 6)

	old := clock.Now().Add(-40 * 24 * time.Hour)
	recent := clock.Now().Add(-time.Hour)
	set := func(id uuid.UUID, status enums.MessageStatus, finished *time.Time, created time.Time) {
		require.NoError(t, db.Model(&models.Message{}).Where("id = ?", id).Updates(map[string]any{
			"status":      status,
			"finished_at": finished,
			"created_at":  created,
		}).Error)
	}
	set(ids[0], enums.MessageStatusSent, &old, old)
	set(ids[1], enums.MessageStatusFailed, &old, old)
	set(ids[2], enums.MessageStatusExpired, &old, old)
	set(ids[3], enums.MessageStatusSent, &recent, old)
	set(ids[4], enums.MessageStatusQueued, nil, old)
	set(ids[5], enums.MessageStatusSending, nil, old)

	removed, err := store.PurgeOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	again, err := store.PurgeOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, again)

	var remaining []models.Message
	require.NoError(t, db.Order("created_at").Find(&remaining).Error)
	statuses := map[uuid.UUID]enums.MessageStatus{}
	for _, m := range remaining {
		statuses[m.ID] = m.Status
	}
	assert.Len(t, statuses, 3)
	assert.Contains(t, statuses, ids[3])
	assert.Contains(t, statuses, ids[4])
	assert.Contains(t, statuses, ids[5])

	_, err = store.PurgeOlderThan(ctx, -time.Second)
	assert.Error(t, err)
}

func TestExpireQueuedBefore(t *testing.T) {
	store, db, clock := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 2)

	old := clock.Now().Add(-96 * time.Hour)
	require.NoError(t, db.Model(&models.Message{}).Where("id = ?", ids[0]).Update("created_at", old).Error)

	expired, err := store.ExpireQueuedBefore(ctx, clock.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)
	assert.Equal(t, enums.MessageStatusExpired, loadMessage(t, db, ids[0]).Status)
	assert.Equal(t, enums.MessageStatusQueued, loadMessage(t, db, ids[1]).Status)
}

func TestRequeueResetsFailedMessage(t *testing.T) {
	store, db, _ := newTestStore(t)
	ctx := context.Background()
	ids := enqueueN(t, store, 2)

	_, err := store.Requeue(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotRequeueable)
	_, err = store.Requeue(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Model(&models.Message{}).Where("id = ?", ids[1]).Updates(map[string]any{
		"status":   enums.MessageStatusFailed,
		"attempts": 3,
	}).Error)
	msg, err := store.Requeue(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, enums.MessageStatusQueued, msg.Status)
	assert.Zero(t, msg.Attempts)
}

func TestListPagesNewestFirst(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		enqueueN(t, store, 1)
		clock.Advance(time.Second)
	}

	page, err := store.List(ctx, ListParams{Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].CreatedAt.After(page.Items[1].CreatedAt))

	seen := map[uuid.UUID]bool{}
	cursor := ""
	for {
		page, err := store.List(ctx, ListParams{Params: pagination.Params{Limit: 2, Cursor: cursor}})
		require.NoError(t, err)
		for _, m := range page.Items {
			assert.False(t, seen[m.ID])
			seen[m.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 5)

	failed := enums.MessageStatusFailed
	filtered, err := store.List(ctx, ListParams{Status: &failed})
	require.NoError(t, err)
	assert.Empty(t, filtered.Items)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, counts[enums.MessageStatusQueued])
}
