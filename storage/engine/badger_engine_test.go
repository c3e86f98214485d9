package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Engine {
	dir, err := os.MkdirTemp("", "graphd-engine-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	e, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestEngineGetPutDelete(t *testing.T) {
	e := open(t)

	_, found, err := e.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, e.ApplyPuts([]KVPair{{Key: []byte("k1"), Value: []byte("v1")}}))
	v, found, err := e.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, e.ApplyRemoves([][]byte{[]byte("k1")}))
	_, found, err = e.Get([]byte("k1"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestEngineScanRange(t *testing.T) {
	e := open(t)

	require.NoError(t, e.ApplyPuts([]KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}))

	it := e.Scan([]byte("a"), []byte("c"))
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a", "b"}, keys)
}

func TestEngineApplyRemoveRange(t *testing.T) {
	e := open(t)

	require.NoError(t, e.ApplyPuts([]KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}))
	require.NoError(t, e.ApplyRemoveRange([]byte("a"), []byte("c")))

	_, found, _ := e.Get([]byte("a"))
	require.False(t, found)
	_, found, _ = e.Get([]byte("c"))
	require.True(t, found)
}
