package safe_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewkit/viewkit/internal/safe"
)

func Test(t *testing.T) {
	m := safe.NewMap[int](nil)
	t.Run("set and get", func(t *testing.T) {
		_, ok := m.Get("1")
		assert.False(t, ok)
		for i := 0; i < 10; i++ {
			m.Set(fmt.Sprint(i), i)
		}
		for i := 0; i < 10; i++ {
			v, ok := m.Get(fmt.Sprint(i))
			assert.True(t, ok)
			assert.Equal(t, i, v)
		}
	})
	t.Run("del", func(t *testing.T) {
		m.Del("1")
		_, ok := m.Get("1")
		assert.False(t, ok)
		v, ok := m.Get("2")
		assert.True(t, ok)
		assert.Equal(t, 2, v)
	})
	t.Run("get or create runs create once", func(t *testing.T) {
		var (
			calls int
			mu    sync.Mutex
			wg    sync.WaitGroup
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := m.GetOrCreate("shared", func() (int, error) {
					mu.Lock()
					calls++
					mu.Unlock()
					return 42, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, 42, v)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, calls)
	})
	t.Run("get or create error", func(t *testing.T) {
		_, err := m.GetOrCreate("broken", func() (int, error) {
			return 0, assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)
		_, ok := m.Get("broken")
		assert.False(t, ok)
	})
}
