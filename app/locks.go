package app

import (
	"context"
	"hash/fnv"
	"sync"
)

// lockShard is a single shard of the lock table.
type lockShard struct {
	mu    sync.Mutex
	locks map[string]*playerLock
}

// playerLock is held while its one-slot channel is full.
type playerLock struct {
	ch   chan struct{}
	refs int
}

// lockTable hands out one mutual-exclusion lock per player. Entries exist
// only while someone holds or waits for them.
type lockTable struct {
	shards    []*lockShard
	numShards int
}

func newLockTable(numShards int) *lockTable {
	if numShards <= 0 {
		numShards = 32
	}
	t := &lockTable{
		shards:    make([]*lockShard, numShards),
		numShards: numShards,
	}
	for i := range t.shards {
		t.shards[i] = &lockShard{locks: make(map[string]*playerLock)}
	}
	return t
}

// getShard returns the shard for a player using consistent hashing.
func (t *lockTable) getShard(playerID string) *lockShard {
	h := fnv.New32a()
	h.Write([]byte(playerID))
	return t.shards[h.Sum32()%uint32(t.numShards)]
}

func (t *lockTable) ref(playerID string) *playerLock {
	shard := t.getShard(playerID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	l, ok := shard.locks[playerID]
	if !ok {
		l = &playerLock{ch: make(chan struct{}, 1)}
		shard.locks[playerID] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(playerID string, l *playerLock) {
	shard := t.getShard(playerID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(shard.locks, playerID)
	}
}

// acquire blocks until the player's lock is held or ctx is done.
func (t *lockTable) acquire(ctx context.Context, playerID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := t.ref(playerID)
	select {
	case l.ch <- struct{}{}:
		return t.releaser(playerID, l), nil
	case <-ctx.Done():
		t.unref(playerID, l)
		return nil, ctx.Err()
	}
}

func (t *lockTable) releaser(playerID string, l *playerLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			t.unref(playerID, l)
		})
	}
}

// len returns the number of live entries (for testing).
func (t *lockTable) len() int {
	total := 0
	for _, shard := range t.shards {
		shard.mu.Lock()
		total += len(shard.locks)
		shard.mu.Unlock()
	}
	return total
}
