package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushairer/batchdb"
	"github.com/rushairer/batchdb/drivers/redis"
)

// 内存版 SET NX / 比较删除，模拟单个 redis 节点
type fakeClient struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	setnx   int
	setErr  error
	evalErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeClient) SetNX(_ context.Context, key string, value any, ttl time.Duration) *goredis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setnx++
	if f.setErr != nil {
		return goredis.NewBoolResult(false, f.setErr)
	}
	if _, held := f.values[key]; held {
		return goredis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return goredis.NewBoolResult(true, nil)
}

func (f *fakeClient) Eval(_ context.Context, _ string, keys []string, args ...any) *goredis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.evalErr != nil {
		return goredis.NewCmdResult(nil, f.evalErr)
	}
	if f.values[keys[0]] != args[0].(string) {
		return goredis.NewCmdResult(int64(0), nil)
	}
	delete(f.values, keys[0])
	return goredis.NewCmdResult(int64(1), nil)
}

func TestLocker_LockUnlock(t *testing.T) {
	client := newFakeClient()
	locker := redis.NewLocker(client).WithTTL(5 * time.Second)

	unlock, err := locker.Lock(context.Background(), "batchdb:insert:people")
	require.NoError(t, err)
	assert.Contains(t, client.values, "batchdb:insert:people")
	assert.Equal(t, 5*time.Second, client.ttls["batchdb:insert:people"])

	require.NoError(t, unlock(context.Background()))
	assert.NotContains(t, client.values, "batchdb:insert:people")

	// 再次释放：锁已不属于当前持有者
	err = unlock(context.Background())
	assert.ErrorIs(t, err, redis.ErrLockNotHeld)
}

func TestLocker_WaitsForRelease(t *testing.T) {
	client := newFakeClient()
	locker := redis.NewLocker(client).WithRetryInterval(time.Millisecond)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := locker.Lock(context.Background(), "k")
		if err == nil {
			close(acquired)
			_ = second(context.Background())
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, unlock(context.Background()))
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func TestLocker_ContextDone(t *testing.T) {
	client := newFakeClient()
	client.values["k"] = "someone-else"
	locker := redis.NewLocker(client).WithRetryInterval(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, client.setnx, 1)
}

func TestLocker_Errors(t *testing.T) {
	client := newFakeClient()
	client.setErr = errors.New("connection refused")
	_, err := redis.NewLocker(client).Lock(context.Background(), "k")
	assert.ErrorIs(t, err, client.setErr)

	client = newFakeClient()
	unlock, err := redis.NewLocker(client).Lock(context.Background(), "k")
	require.NoError(t, err)
	client.evalErr = errors.New("broken pipe")
	assert.ErrorIs(t, unlock(context.Background()), client.evalErr)
}

func TestLocker_WithBatchWriter(t *testing.T) {
	client := newFakeClient()
	w, err := batchdb.NewBatchWriter(batchdb.DefaultConfig(), batchdb.NewStaticSchema().WithTable("people", "id", "name"))
	require.NoError(t, err)
	w.WithLocker(redis.NewLocker(client))

	exec := batchdb.NewMockExecutor()
	exec.QueryResult = []batchdb.Row{{"id": int64(1), "name": "a"}}
	fetched, err := w.InsertAndFetch(context.Background(), exec, "people", []batchdb.Row{{"name": "a"}})
	require.NoError(t, err)
	assert.Len(t, fetched, 1)
	assert.Equal(t, 1, client.setnx)
	assert.Empty(t, client.values)
}
