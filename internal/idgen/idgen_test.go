package idgen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySequencer struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (m *memorySequencer) NextSequence(_ context.Context, kind string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.values[kind]++
	return m.values[kind], nil
}

func TestNextMasterKindIsZeroPadded(t *testing.T) {
	g := New(&memorySequencer{})
	ctx := context.Background()

	first, err := g.Next(ctx, KindSprint)
	require.NoError(t, err)
	second, err := g.Next(ctx, KindSprint)
	require.NoError(t, err)
	project, err := g.Next(ctx, KindProject)
	require.NoError(t, err)

	assert.Equal(t, "SPNT001", first)
	assert.Equal(t, "SPNT002", second)
	assert.Equal(t, "PROJ001", project)
}

func TestNextMasterKindWidensPastPadding(t *testing.T) {
	seq := &memorySequencer{values: map[string]int64{"EPIC": 999}}
	g := New(seq)

	id, err := g.Next(context.Background(), KindEpic)
	require.NoError(t, err)
	assert.Equal(t, "EPIC1000", id)
}

func TestNextTransactionKindIsUnique(t *testing.T) {
	g := New(&memorySequencer{err: errors.New("must not be called")})
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id, err := g.Next(ctx, KindStory)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id, "STRY"), id)
		require.Len(t, id, 4+32)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestNextUnknownKind(t *testing.T) {
	g := New(&memorySequencer{})

	_, err := g.Next(context.Background(), Kind("NOPE"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNextPropagatesSequenceError(t *testing.T) {
	g := New(&memorySequencer{err: errors.New("db down")})

	_, err := g.Next(context.Background(), KindRelease)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RELS")
}
