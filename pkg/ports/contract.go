package ports

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/wharf/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRegistrationStoreContract verifies that a RegistrationStore implementation
// adheres to the interface contract.
func RunRegistrationStoreContract(t *testing.T, store RegistrationStore) {
	ctx := context.Background()
	uri := fmt.Sprintf("http://contract-%d:9080", time.Now().UnixNano())

	t.Run("Save and Load", func(t *testing.T) {
		reg := domain.Registration{URI: uri, DeploymentID: "dp_1", RegisteredAt: time.Now().UTC().Truncate(time.Second)}
		require.NoError(t, store.Save(ctx, reg))

		loaded, err := store.Load(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, reg.URI, loaded.URI)
		assert.Equal(t, reg.DeploymentID, loaded.DeploymentID)
		assert.True(t, reg.RegisteredAt.Equal(loaded.RegisteredAt))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.Registration{URI: uri, DeploymentID: "dp_2"}))

		loaded, err := store.Load(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, "dp_2", loaded.DeploymentID)
	})

	t.Run("Load Unknown", func(t *testing.T) {
		_, err := store.Load(ctx, uri+"/unknown")
		assert.ErrorIs(t, err, domain.ErrNotRegistered)
	})

	t.Run("List", func(t *testing.T) {
		other := uri + "/other"
		require.NoError(t, store.Save(ctx, domain.Registration{URI: other}))

		list, err := store.List(ctx)
		require.NoError(t, err)

		var uris []string
		for _, r := range list {
			uris = append(uris, r.URI)
		}
		assert.Contains(t, uris, uri)
		assert.Contains(t, uris, other)
		assert.IsNonDecreasing(t, uris)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, uri))
		_, err := store.Load(ctx, uri)
		assert.ErrorIs(t, err, domain.ErrNotRegistered)

		assert.NoError(t, store.Delete(ctx, uri), "deleting twice should not fail")
	})
}

// RunLockerContract verifies that a DistributedLocker provides mutual exclusion.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	key := fmt.Sprintf("contract-lock-%d", time.Now().UnixNano())

	t.Run("Mutual Exclusion", func(t *testing.T) {
		var (
			wg       sync.WaitGroup
			holders  atomic.Int32
			violated atomic.Bool
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				unlock, err := locker.Lock(ctx, key, 2*time.Second)
				if !assert.NoError(t, err) {
					return
				}
				if holders.Add(1) > 1 {
					violated.Store(true)
				}
				time.Sleep(10 * time.Millisecond)
				holders.Add(-1)
				assert.NoError(t, unlock(context.Background()))
			}()
		}
		wg.Wait()
		assert.False(t, violated.Load(), "lock was held by more than one caller")
	})

	t.Run("Context Cancel", func(t *testing.T) {
		unlock, err := locker.Lock(context.Background(), key, 2*time.Second)
		require.NoError(t, err)
		defer unlock(context.Background())

		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, key, time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
