package filestore_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/escrowscan/aggregator"
	"github.com/screwyprof/escrowscan/aggregator/store/filestore"
)

func TestFileStoreBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it returns a zero-valued checkpoint when the file does not exist", func(t *testing.T) {
		t.Parallel()

		store := filestore.New(filepath.Join(t.TempDir(), "report.json"))

		cp, err := store.Load(t.Context())

		require.NoError(t, err)
		assert.Equal(t, "0", cp.Total().String())
		assert.Equal(t, uint64(0), cp.NumWithdrawers())
		assert.Equal(t, 0, cp.Recorded())
	})

	t.Run("it round-trips a snapshot through disk", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		store := filestore.New(path)

		cp := aggregator.NewCheckpoint()
		require.NoError(t, cp.Record("0xA", big.NewInt(10)))
		require.NoError(t, cp.Record("0xB", big.NewInt(20)))
		cp.SetNumWithdrawers(3)
		require.NoError(t, store.Save(t.Context(), cp))

		restored, err := store.Load(t.Context())

		require.NoError(t, err)
		assert.Equal(t, "30", restored.Total().String())
		assert.Equal(t, uint64(3), restored.NumWithdrawers())
		assert.Equal(t, "10", restored.Balance("0xA").String())
		assert.Equal(t, "20", restored.Balance("0xB").String())
	})

	t.Run("it overwrites the whole snapshot on every save", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		store := filestore.New(path)

		first := aggregator.NewCheckpoint()
		require.NoError(t, first.Record("0xA", big.NewInt(10)))
		require.NoError(t, store.Save(t.Context(), first))

		second := aggregator.NewCheckpoint()
		require.NoError(t, second.Record("0xB", big.NewInt(20)))
		require.NoError(t, store.Save(t.Context(), second))

		restored, err := store.Load(t.Context())

		require.NoError(t, err)
		assert.Nil(t, restored.Balance("0xA"), "previous snapshot must be fully replaced")
		assert.Equal(t, "20", restored.Total().String())
	})

	t.Run("it leaves no temp files behind after saving", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		store := filestore.New(filepath.Join(dir, "report.json"))

		cp := aggregator.NewCheckpoint()
		require.NoError(t, cp.Record("0xA", big.NewInt(1)))
		for range 5 {
			require.NoError(t, store.Save(t.Context(), cp))
		}

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "report.json", entries[0].Name())
	})

	t.Run("it fails on a corrupt checkpoint file instead of restarting from scratch", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"totalEscrowedSNX": "nope`), 0o644))
		store := filestore.New(path)

		_, err := store.Load(t.Context())

		assert.ErrorIs(t, err, filestore.ErrCheckpointCorrupt)
	})

	t.Run("it fails on a snapshot whose total disagrees with its accounts", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "report.json")
		tampered := `{"totalEscrowedSNX": "999", "numWithdrawers": "1", "accounts": {"0xa": "10"}}`
		require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))
		store := filestore.New(path)

		_, err := store.Load(t.Context())

		assert.ErrorIs(t, err, filestore.ErrCheckpointCorrupt)
	})
}
