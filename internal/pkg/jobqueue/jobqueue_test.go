package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/evandrarf/neurocase-be/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&entity.JobRun{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestEnqueueClaimComplete(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openTestDB(t), nil)

	id, err := q.Enqueue(ctx, "reasoning_analysis", "u1", map[string]any{"session_id": "s1"})
	require.NoError(t, err)

	st, err := q.Status(ctx, id, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusQueued, st.Status)

	_, err = q.Status(ctx, id, "someone-else")
	assert.ErrorIs(t, err, ErrJobNotFound)

	job, err := q.Claim(ctx, 3, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 1, job.Attempts)
	assert.JSONEq(t, `{"session_id":"s1"}`, string(job.Payload))

	again, err := q.Claim(ctx, 3, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again)

	require.NoError(t, q.Complete(ctx, id, map[string]string{"status": "ready"}))
	st, err = q.Status(ctx, id, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusSucceeded, st.Status)
	assert.JSONEq(t, `{"status":"ready"}`, string(st.Result))
}

func TestRunOnceRecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	q := NewGormQueue(openTestDB(t), nil)
	reg := NewRegistry()
	reg.Register("echo", func(ctx context.Context, job *entity.JobRun) (any, error) {
		var payload map[string]any
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	reg.Register("boom", func(ctx context.Context, job *entity.JobRun) (any, error) {
		return nil, errors.New("analysis exploded")
	})
	reg.Register("panics", func(ctx context.Context, job *entity.JobRun) (any, error) {
		panic("bad state")
	})
	pool := NewPool(PoolConfig{Queue: q, Registry: reg})

	echoID, _ := q.Enqueue(ctx, "echo", "u1", map[string]int{"n": 1})
	boomID, _ := q.Enqueue(ctx, "boom", "u1", nil)
	panicID, _ := q.Enqueue(ctx, "panics", "u1", nil)
	orphanID, _ := q.Enqueue(ctx, "unknown", "u1", nil)

	for i := 0; i < 4; i++ {
		assert.True(t, pool.RunOnce(ctx))
	}
	assert.False(t, pool.RunOnce(ctx))

	st, _ := q.Status(ctx, echoID, "u1")
	assert.Equal(t, entity.JobStatusSucceeded, st.Status)
	assert.JSONEq(t, `{"n":1}`, string(st.Result))

	st, _ = q.Status(ctx, boomID, "u1")
	assert.Equal(t, entity.JobStatusFailed, st.Status)
	assert.Equal(t, "analysis exploded", st.Error)

	st, _ = q.Status(ctx, panicID, "u1")
	assert.Equal(t, entity.JobStatusFailed, st.Status)
	assert.Contains(t, st.Error, "panic")

	st, _ = q.Status(ctx, orphanID, "u1")
	assert.Equal(t, entity.JobStatusFailed, st.Status)
	assert.Contains(t, st.Error, "no handler registered")
}

func TestPoolStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&entity.JobRun{}))

	q := NewGormQueue(db, nil)
	done := make(chan string, 1)
	reg := NewRegistry()
	reg.Register("echo", func(ctx context.Context, job *entity.JobRun) (any, error) {
		done <- job.ID
		return "ok", nil
	})

	id, err := q.Enqueue(context.Background(), "echo", "u1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() {
		stopped <- NewPool(PoolConfig{Queue: q, Registry: reg, Concurrency: 3, PollInterval: 10 * time.Millisecond}).Run(ctx)
	}()

	select {
	case got := <-done:
		assert.Equal(t, id, got)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	require.NoError(t, sqlDB.Close())
}
