package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "soulledger/pkg/domain-errors"
)

func TestMemoryRunner_GlobalPathSerializesMutations(t *testing.T) {
	runner := NewMemoryRunner()

	const goroutines = 100
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
				// Read-modify-write without internal synchronization. Only
				// the runner's lock keeps this race-free.
				v := counter
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter, "every transaction must observe the previous one")
}

func TestMemoryRunner_ShardedPathSerializesSameKey(t *testing.T) {
	runner := NewMemoryRunner()

	const goroutines = 100
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := WithShard(context.Background(), "42")
			err := runner.RunInTx(ctx, func(ctx context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
}

func TestMemoryRunner_ShardedAndGlobalExclude(t *testing.T) {
	runner := NewMemoryRunner()

	// Interleave keyed and keyless transactions over shared state. Keyless
	// transactions take every shard, so no keyed transaction may run
	// concurrently with one.
	const goroutines = 50
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := runner.RunInTx(WithShard(context.Background(), "7"), func(ctx context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2*goroutines, counter, "keyed transactions on one shard must still exclude global ones")
}

func TestMemoryRunner_PropagatesCallbackError(t *testing.T) {
	runner := NewMemoryRunner()
	want := errors.New("boom")

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		return want
	})

	require.ErrorIs(t, err, want)
}

func TestMemoryRunner_CancelledContext(t *testing.T) {
	runner := NewMemoryRunner()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		t.Fatal("callback must not run on a cancelled context")
		return nil
	})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestMemoryRunner_AppliesDefaultDeadline(t *testing.T) {
	runner := NewMemoryRunner()

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok, "runner must bound unbounded contexts")
		assert.False(t, deadline.IsZero())
		return nil
	})

	require.NoError(t, err)
}
