package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAddIsExclusiveUntilExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	key := CaseConversionLockKey(9, "u1")
	assert.Equal(t, "case_conversion_lock:9:u1", key)

	ok, err := s.Add(ctx, key, "job-1", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Add(ctx, key, "job-2", 120*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	var holder string
	found, err := s.Get(ctx, key, &holder)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "job-1", holder)

	now = now.Add(121 * time.Second)
	ok, err = s.Add(ctx, key, "job-3", 120*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	type payload struct {
		Status string `json:"status"`
	}
	require.NoError(t, s.Set(ctx, "k", payload{Status: "ready"}, 0))

	var got payload
	found, err := s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ready", got.Status)

	require.NoError(t, s.Delete(ctx, "k"))
	found, err = s.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, "ai_edit_lock:3:u2", AIEditLockKey(3, "u2"))
}
