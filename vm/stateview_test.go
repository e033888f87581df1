package vm

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockDB 内存版 DBManager
type MockDB struct {
	mu      sync.RWMutex
	data    map[string][]byte
	commits int
}

func NewMockDB() *MockDB {
	return &MockDB{data: make(map[string][]byte)}
}

func (db *MockDB) Get(key string) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, exists := db.data[key]
	if !exists {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

func (db *MockDB) Scan(prefix string) (map[string][]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range db.data {
		if strings.HasPrefix(k, prefix) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (db *MockDB) Commit(ops []WriteOp) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, op := range ops {
		if op.Del {
			delete(db.data, op.Key)
		} else {
			db.data[op.Key] = op.Value
		}
	}
	db.commits++
	return nil
}

func TestStateViewSnapshotRevert(t *testing.T) {
	db := NewMockDB()
	require.NoError(t, db.Commit([]WriteOp{{Key: "a", Value: []byte("base")}}))
	sv := NewStateView(db.Get, db.Scan)

	v, ok, err := sv.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("base"), v)

	snap := sv.Snapshot()
	sv.Set("a", []byte("changed"))
	sv.Set("b", []byte("new"))
	sv.Del("a")

	_, ok, _ = sv.Get("a")
	assert.False(t, ok)

	require.NoError(t, sv.Revert(snap))
	v, ok, _ = sv.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("base"), v)
	_, ok, _ = sv.Get("b")
	assert.False(t, ok)
	assert.Empty(t, sv.Diff())

	assert.ErrorIs(t, sv.Revert(99), ErrInvalidSnapshot)
}

func TestStateViewDiffIsSortedAndCopied(t *testing.T) {
	sv := NewStateView(NewMockDB().Get, nil)
	buf := []byte("x")
	sv.Set("z", buf)
	sv.Set("m", []byte("y"))
	sv.Del("a")
	buf[0] = 'q'

	diff := sv.Diff()
	require.Len(t, diff, 3)
	assert.Equal(t, "a", diff[0].Key)
	assert.True(t, diff[0].Del)
	assert.Equal(t, "m", diff[1].Key)
	assert.Equal(t, "z", diff[2].Key)
	assert.Equal(t, []byte("x"), diff[2].Value)
}

func TestStateViewScanMergesOverlay(t *testing.T) {
	db := NewMockDB()
	require.NoError(t, db.Commit([]WriteOp{
		{Key: "p_1", Value: []byte("1")},
		{Key: "p_2", Value: []byte("2")},
		{Key: "q_1", Value: []byte("q")},
	}))
	sv := NewStateView(db.Get, db.Scan)
	sv.Del("p_1")
	sv.Set("p_3", []byte("3"))
	sv.Set("p_2", []byte("two"))

	got, err := sv.Scan("p_")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"p_2": []byte("two"),
		"p_3": []byte("3"),
	}, got)
}

func TestSafeMath(t *testing.T) {
	_, err := CheckedAdd(^uint64(0), 1)
	assert.ErrorIs(t, err, ErrOverflow)
	_, err = CheckedSub(1, 2)
	assert.ErrorIs(t, err, ErrUnderflow)
	_, err = CheckedMul(1<<40, 1<<40)
	assert.ErrorIs(t, err, ErrOverflow)

	v, err := CheckedSub(500, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), v)
}
