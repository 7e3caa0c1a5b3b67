package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_CopiesSeed(t *testing.T) {
	seed := map[string]any{"cache.capacity": 10}
	store := NewConfigStore(seed)
	seed["cache.capacity"] = 99

	assert.Equal(t, 10, store.GetInt("cache.capacity"))
	assert.NotNil(t, NewConfigStore(nil).values)
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore(nil)

	require.NoError(t, store.Set("upstream.feed_key", "coastal"))
	require.NoError(t, store.Set("upstream.feed_key", "inland"))

	val, ok := store.Get("upstream.feed_key")
	assert.True(t, ok)
	assert.Equal(t, "inland", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"str":     "value",
		"int":     42,
		"int64":   int64(7),
		"float":   2.5,
		"bool":    true,
		"slice":   []any{"a", 1, "b"},
		"strings": []string{"x", "y"},
		"single":  "only",
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", store.GetString("str"), "value"},
		{"string wrong type", store.GetString("int"), ""},
		{"int", store.GetInt("int"), 42},
		{"int from int64", store.GetInt("int64"), 7},
		{"int from float", store.GetInt("float"), 2},
		{"int wrong type", store.GetInt("str"), 0},
		{"float", store.GetFloat("float"), 2.5},
		{"float from int", store.GetFloat("int"), 42.0},
		{"float from int64", store.GetFloat("int64"), 7.0},
		{"float wrong type", store.GetFloat("bool"), 0.0},
		{"bool", store.GetBool("bool"), true},
		{"bool wrong type", store.GetBool("str"), false},
		{"slice of any", store.GetStringSlice("slice"), []string{"a", "b"}},
		{"slice of strings", store.GetStringSlice("strings"), []string{"x", "y"}},
		{"single string", store.GetStringSlice("single"), []string{"only"}},
		{"missing slice", store.GetStringSlice("missing"), []string(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestConfigStore_GetStringSlice_ReturnsCopy(t *testing.T) {
	store := NewConfigStore(map[string]any{"server.cors_origins": []string{"*"}})

	got := store.GetStringSlice("server.cors_origins")
	got[0] = "changed"

	assert.Equal(t, []string{"*"}, store.GetStringSlice("server.cors_origins"))
}

func TestConfigStore_SaveLoadPath(t *testing.T) {
	store := NewConfigStore(nil)
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore(nil)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set("cache.capacity", i)
		}()
		go func() {
			defer wg.Done()
			_ = store.GetInt("cache.capacity")
		}()
	}
	wg.Wait()

	_, ok := store.Get("cache.capacity")
	assert.True(t, ok)
}
