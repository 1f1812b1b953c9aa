package badger_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewkit/viewkit/kv"
	"github.com/viewkit/viewkit/kv/badger"
)

func scan(t *testing.T, db kv.DB, opts kv.IterOpts) []string {
	var keys []string
	require.NoError(t, db.Tx(false, func(tx kv.Tx) error {
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for ; iter.Valid(); iter.Next() {
			keys = append(keys, string(iter.Item().Key()))
		}
		return nil
	}))
	return keys
}

func Test(t *testing.T) {
	db, err := badger.Open("")
	require.NoError(t, err)
	defer db.Close()
	data := map[string]string{}
	for i := 0; i < 5; i++ {
		data[fmt.Sprintf("docs.%d", i)] = fmt.Sprint(i)
		data[fmt.Sprintf("design.%d", i)] = fmt.Sprint(i)
	}
	t.Run("set", func(t *testing.T) {
		assert.NoError(t, db.Tx(true, func(tx kv.Tx) error {
			for k, v := range data {
				if err := tx.Set([]byte(k), []byte(v)); err != nil {
					return err
				}
			}
			return nil
		}))
	})
	t.Run("get", func(t *testing.T) {
		assert.NoError(t, db.Tx(false, func(tx kv.Tx) error {
			for k, v := range data {
				got, err := tx.Get([]byte(k))
				assert.NoError(t, err)
				assert.Equal(t, v, string(got))
			}
			missing, err := tx.Get([]byte("missing"))
			assert.NoError(t, err)
			assert.Nil(t, missing)
			return nil
		}))
	})
	t.Run("iterate prefix", func(t *testing.T) {
		keys := scan(t, db, kv.IterOpts{Prefix: []byte("docs.")})
		assert.Equal(t, []string{"docs.0", "docs.1", "docs.2", "docs.3", "docs.4"}, keys)
	})
	t.Run("batch", func(t *testing.T) {
		batch := db.Batch()
		require.NoError(t, batch.Set([]byte("batch.1"), []byte("1")))
		require.NoError(t, batch.Set([]byte("batch.2"), []byte("2")))
		require.NoError(t, batch.Flush())
		assert.Len(t, scan(t, db, kv.IterOpts{Prefix: []byte("batch.")}), 2)
	})
	t.Run("delete", func(t *testing.T) {
		require.NoError(t, db.Tx(true, func(tx kv.Tx) error {
			return tx.Delete([]byte("docs.0"))
		}))
		assert.Len(t, scan(t, db, kv.IterOpts{Prefix: []byte("docs.")}), 4)
	})
	t.Run("failed update rolls back", func(t *testing.T) {
		err := db.Tx(true, func(tx kv.Tx) error {
			_ = tx.Set([]byte("docs.9"), []byte("9"))
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Len(t, scan(t, db, kv.IterOpts{Prefix: []byte("docs.")}), 4)
	})
	t.Run("drop prefix", func(t *testing.T) {
		require.NoError(t, db.DropPrefix([]byte("design.")))
		assert.Empty(t, scan(t, db, kv.IterOpts{Prefix: []byte("design.")}))
		assert.Len(t, scan(t, db, kv.IterOpts{Prefix: []byte("docs.")}), 4)
	})
}
