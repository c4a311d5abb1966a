package tx

import (
	"context"
	"sync"
	"time"

	dErrors "soulledger/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a ledger transaction.
const defaultTxTimeout = 5 * time.Second

// numShards distributes single-soul operations across mutexes so they do not
// contend with unrelated souls. 128 shards keeps collision probability low
// under concurrent load.
const numShards = 128

// Runner executes fn within a transactional boundary. Implementations wrap a
// database transaction or, in-memory, sharded locks. Every state-changing
// operation goes through a Runner so validate-then-mutate sequences observe a
// consistent snapshot.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type shardKey struct{}

var shardKeyCtx = shardKey{}

type heldKey struct{}

var heldKeyCtx = heldKey{}

// WithShard marks ctx so memory mode serializes only against operations on
// the same key (the soul id). Operations that span souls or move funds
// between accounts must not set a key; they serialize against every shard.
func WithShard(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, shardKeyCtx, key)
}

// MemoryRunner serializes mutations behind sharded mutexes. Single-soul
// operations lock one shard selected by the soul id; settlement operations
// span souls and treasury accounts, so they take every shard and the ledger
// degrades to a single writer for their duration.
type MemoryRunner struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (t *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Check if context is already cancelled
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Join an ambient transaction instead of re-acquiring locks. Nested
	// calls must not need wider locking than their enclosing transaction,
	// which is why multi-soul operations run keyless at the outermost level.
	if held, ok := ctx.Value(heldKeyCtx).(bool); ok && held {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, heldKeyCtx, true)

	if shard, ok := t.selectShard(ctx); ok {
		t.shards[shard].Lock()
		defer t.shards[shard].Unlock()
	} else {
		t.lockAll()
		defer t.unlockAll()
	}

	// Check again after acquiring the lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// selectShard picks a shard from the key set via WithShard. Keyless
// transactions report false and take the global path.
func (t *MemoryRunner) selectShard(ctx context.Context) (int, bool) {
	key, ok := ctx.Value(shardKeyCtx).(string)
	if !ok || key == "" {
		return 0, false
	}
	return int(hashShardKey(key) % numShards), true
}

// lockAll acquires shards in ascending order so global transactions never
// deadlock against each other.
func (t *MemoryRunner) lockAll() {
	for i := range t.shards {
		t.shards[i].Lock()
	}
}

func (t *MemoryRunner) unlockAll() {
	for i := range t.shards {
		t.shards[i].Unlock()
	}
}

// hashShardKey uses FNV-1a for better hash distribution than simple multiply-add.
func hashShardKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
