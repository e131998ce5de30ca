package encoding

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_DeterministicMaps(t *testing.T) {
	value := map[string]interface{}{"b": 2, "a": 1, "c": "three"}

	first, err := Marshal(value)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := Marshal(value)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestUnmarshal_StringsStayStrings(t *testing.T) {
	data, err := Marshal(map[string]interface{}{"user": "alice", "count": 3})
	require.NoError(t, err)

	var out interface{}
	require.NoError(t, Unmarshal(data, &out))

	m, ok := out.(map[string]interface{})
	require.True(t, ok, "expected map, got %T", out)
	assert.Equal(t, "alice", m["user"])
	assert.EqualValues(t, 3, m["count"])
}

func TestUnmarshal_IntoStruct(t *testing.T) {
	type session struct {
		UserID string   `msgpack:"user_id"`
		Scopes []string `msgpack:"scopes"`
	}

	in := session{UserID: "u-1", Scopes: []string{"read", "write"}}
	data, err := Marshal(in)
	require.NoError(t, err)

	var out session
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshal_ResultNotAliasedByPool(t *testing.T) {
	a, err := Marshal("first value")
	require.NoError(t, err)
	_, err = Marshal("second, longer value that reuses the pooled buffer")
	require.NoError(t, err)

	var out string
	require.NoError(t, Unmarshal(a, &out))
	assert.Equal(t, "first value", out)
}

func TestMarshal_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				data, err := Marshal(map[string]int{"goroutine": id, "iteration": j})
				if err != nil {
					t.Errorf("Marshal failed: %v", err)
					return
				}
				var out map[string]int
				if err := Unmarshal(data, &out); err != nil {
					t.Errorf("Unmarshal failed: %v", err)
					return
				}
				if out["goroutine"] != id || out["iteration"] != j {
					t.Errorf("mismatch: %v", out)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
