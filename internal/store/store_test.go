package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/shaiso/Flowkit/internal/domain"
)

type StoreTestSuite struct {
	suite.Suite
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = s.rdb.Close() })
	s.store = New(s.rdb)
	s.ctx = context.Background()
}

func (s *StoreTestSuite) TestState_SetGetDelete() {
	st := s.store.State("wf-1")

	s.Require().NoError(st.Set(s.ctx, "urls", domain.MustValue([]string{"https://a", "https://b"})))

	got, err := st.Get(s.ctx, "urls")
	s.Require().NoError(err)

	var urls []string
	s.Require().NoError(got.Decode(&urls))
	s.Equal([]string{"https://a", "https://b"}, urls)

	// Формат ключа общий с воркерами на других языках
	raw := s.mr.HGet("workflow:wf-1:state", "urls")
	s.JSONEq(`["https://a","https://b"]`, raw)

	s.Require().NoError(st.Delete(s.ctx, "urls"))
	_, err = st.Get(s.ctx, "urls")
	s.ErrorIs(err, ErrKeyNotFound)
	s.ErrorIs(err, domain.ErrKeyNotFound)
}

func (s *StoreTestSuite) TestState_All() {
	st := s.store.State("wf-1")
	s.Require().NoError(st.Set(s.ctx, "total_items", domain.MustValue(3)))
	s.Require().NoError(st.Set(s.ctx, "mode", domain.MustValue("fast")))

	all, err := st.All(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal(domain.KindNumber, all["total_items"].Kind())
	s.Equal("fast", all["mode"].String())
}

func (s *StoreTestSuite) TestState_GetRawText() {
	// Значение, записанное без JSON-кодирования, читается как строка
	s.mr.HSet("workflow:wf-1:state", "note", "hello world")

	got, err := s.store.State("wf-1").Get(s.ctx, "note")
	s.Require().NoError(err)
	s.Equal("hello world", got.String())
}

func (s *StoreTestSuite) TestState_IncrementConcurrent() {
	st := s.store.State("wf-1")

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Increment(s.ctx, "steps_completed", 1)
			s.NoError(err)
		}()
	}
	wg.Wait()

	n, err := st.Counter(s.ctx, "steps_completed")
	s.Require().NoError(err)
	s.Equal(int64(writers), n)
	s.Equal(fmt.Sprint(writers), s.mr.HGet("workflow:wf-1:state", "steps_completed:counter"))
}

func (s *StoreTestSuite) TestState_CounterMissing() {
	n, err := s.store.State("wf-1").Counter(s.ctx, "nothing")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *StoreTestSuite) TestState_AppendConcurrentWritersNoLoss() {
	st := s.store.State("wf-1")

	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.NoError(st.Append(s.ctx, "map_results", domain.MustValue(map[string]int{"item": i})))
		}(i)
	}
	wg.Wait()

	items, err := st.List(s.ctx, "map_results")
	s.Require().NoError(err)
	s.Require().Len(items, writers)

	seen := make([]int, 0, writers)
	for _, item := range items {
		var rec struct {
			Item int `json:"item"`
		}
		s.Require().NoError(item.Decode(&rec))
		seen = append(seen, rec.Item)
	}
	sort.Ints(seen)
	for i := 0; i < writers; i++ {
		s.Equal(i, seen[i], "each writer must appear exactly once")
	}

	n, err := st.ListLen(s.ctx, "map_results")
	s.Require().NoError(err)
	s.Equal(int64(writers), n)
}

func (s *StoreTestSuite) TestState_ListMissingIsEmpty() {
	items, err := s.store.State("wf-1").List(s.ctx, "map_errors")
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *StoreTestSuite) TestState_Sets() {
	st := s.store.State("wf-1")
	s.Require().NoError(st.AddToSet(s.ctx, "domains", domain.MustValue("a.com")))
	s.Require().NoError(st.AddToSet(s.ctx, "domains", domain.MustValue("a.com")))
	s.Require().NoError(st.AddToSet(s.ctx, "domains", domain.MustValue("b.com")))

	members, err := st.Members(s.ctx, "domains")
	s.Require().NoError(err)
	s.Len(members, 2)
}

func (s *StoreTestSuite) TestState_CompareAndSwap() {
	st := s.store.State("wf-1")

	ok, err := st.CompareAndSwap(s.ctx, "phase", nil, domain.MustValue("list"))
	s.Require().NoError(err)
	s.True(ok, "swap on missing key with empty expected")

	ok, err = st.CompareAndSwap(s.ctx, "phase", domain.MustValue("reduce"), domain.MustValue("map"))
	s.Require().NoError(err)
	s.False(ok, "swap with stale expected value")

	ok, err = st.CompareAndSwap(s.ctx, "phase", domain.Value(`  "list" `), domain.MustValue("map"))
	s.Require().NoError(err)
	s.True(ok)

	got, err := st.Get(s.ctx, "phase")
	s.Require().NoError(err)
	s.Equal("map", got.String())
}

func (s *StoreTestSuite) TestFetchTask_NotFound() {
	_, err := s.store.FetchTask(s.ctx, "missing")
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *StoreTestSuite) TestPutFetchTask() {
	idx := 2
	task := &domain.Task{
		ID:         "task-2",
		WorkflowID: "wf-1",
		StepID:     "map",
		Type:       "map",
		Input:      map[string]domain.Value{"current_url": domain.MustValue("https://c")},
		Index:      &idx,
	}
	s.Require().NoError(s.store.PutTask(s.ctx, task))

	got, err := s.store.FetchTask(s.ctx, "task-2")
	s.Require().NoError(err)
	s.Equal("wf-1", got.WorkflowID)
	s.Equal(2, *got.Index)
	s.Equal("https://c", got.Input["current_url"].String())
}

func (s *StoreTestSuite) TestWriteResult_VisibleUntilTTL() {
	s.Require().NoError(s.store.WriteResult(s.ctx, "t1", domain.MustValue(map[string]int{"word_count": 7})))

	got, err := s.store.ReadResult(s.ctx, "t1")
	s.Require().NoError(err)
	s.JSONEq(`{"word_count":7}`, string(got))

	s.mr.FastForward(DefaultTTL - time.Second)
	got, err = s.store.ReadResult(s.ctx, "t1")
	s.Require().NoError(err)
	s.JSONEq(`{"word_count":7}`, string(got))

	s.mr.FastForward(2 * time.Second)
	_, err = s.store.ReadResult(s.ctx, "t1")
	s.ErrorIs(err, ErrResultNotFound)
}

func (s *StoreTestSuite) TestWriteError() {
	s.Require().NoError(s.store.WriteError(s.ctx, "t1", "boom"))

	msg, err := s.store.ReadError(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal("boom", msg)
	s.Equal(DefaultTTL, s.mr.TTL("task:t1:error"))

	outcome, ok, err := s.store.Outcome(s.ctx, "t1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(domain.OutcomeError, outcome)
}

func (s *StoreTestSuite) TestWriteResult_Publishes() {
	sub := s.rdb.Subscribe(s.ctx, CompletionChannel("t1"))
	defer sub.Close()
	_, err := sub.Receive(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.WriteResult(s.ctx, "t1", domain.MustValue("ok")))

	select {
	case msg := <-sub.Channel():
		s.Equal("task:t1:complete", msg.Channel)
		s.Equal("completed", msg.Payload)
	case <-time.After(2 * time.Second):
		s.Fail("no completion notification")
	}
}

func (s *StoreTestSuite) TestAwaitOutcome_AlreadyWritten() {
	s.Require().NoError(s.store.WriteError(s.ctx, "t1", "bad input"))

	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()

	outcome, err := s.store.AwaitOutcome(ctx, "t1")
	s.Require().NoError(err)
	s.Equal(domain.OutcomeError, outcome)
}

func (s *StoreTestSuite) TestAwaitOutcome_Notified() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()

	done := make(chan domain.Outcome, 1)
	go func() {
		outcome, err := s.store.AwaitOutcome(ctx, "t1")
		s.NoError(err)
		done <- outcome
	}()

	time.Sleep(50 * time.Millisecond)
	s.Require().NoError(s.store.WriteResult(s.ctx, "t1", domain.MustValue(1)))

	select {
	case outcome := <-done:
		s.Equal(domain.OutcomeCompleted, outcome)
	case <-time.After(3 * time.Second):
		s.Fail("await did not return")
	}
}

func (s *StoreTestSuite) TestAwaitOutcome_ContextDeadline() {
	ctx, cancel := context.WithTimeout(s.ctx, 100*time.Millisecond)
	defer cancel()

	_, err := s.store.AwaitOutcome(ctx, "never")
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *StoreTestSuite) TestRetryCounter() {
	n, err := s.store.RetryCount(s.ctx, "wf-1", "task-1")
	s.Require().NoError(err)
	s.Zero(n)

	n, err = s.store.IncrementRetry(s.ctx, "wf-1", "task-1")
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = s.store.IncrementRetry(s.ctx, "wf-1", "task-1")
	s.Require().NoError(err)
	s.Equal(int64(2), n)

	// Счётчики разных task независимы
	n, err = s.store.IncrementRetry(s.ctx, "wf-1", "task-2")
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	s.Equal(DefaultTTL, s.mr.TTL("workflow:wf-1:retry:task-1"))

	s.mr.FastForward(DefaultTTL + time.Second)
	n, err = s.store.RetryCount(s.ctx, "wf-1", "task-1")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *StoreTestSuite) TestWithTTL() {
	st := New(s.rdb, WithTTL(time.Minute))
	s.Require().NoError(st.WriteResult(s.ctx, "t9", domain.MustValue(true)))
	s.Equal(time.Minute, s.mr.TTL("task:t9:result"))
}

func TestConnect_FromEnv(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())

	rdb, err := Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rdb.Close()

	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("expected v, got %q", got)
	}
}

func TestConnect_HostPort(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())

	rdb, err := Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = rdb.Close()
}

func TestConnect_BadURL(t *testing.T) {
	t.Setenv("REDIS_URL", "http://not-redis")
	if _, err := Connect(context.Background()); err == nil {
		t.Error("expected error for invalid REDIS_URL")
	}
}
