package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Flowkit/internal/domain"
	"github.com/shaiso/Flowkit/internal/store"
)

// newStore поднимает in-memory Redis для теста.
func newStore(t *testing.T) *store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return store.New(rdb)
}

// fakeProcessor успешно обрабатывает всё, кроме URL из fail.
func fakeProcessor(fail map[string]error) Processor {
	return ProcessorFunc(func(_ context.Context, item Item, _ int) (*PageStats, error) {
		if err, ok := fail[item.URL]; ok {
			return nil, err
		}
		count, top := CountWords("alpha beta alpha "+item.URL, topWordsPerPage)
		return &PageStats{WordCount: count, TopWords: top, StatusCode: 200, ContentLength: 100}, nil
	})
}

func mapTask(wf string, i int) *domain.Task {
	return &domain.Task{ID: fmt.Sprintf("task-%d", i), WorkflowID: wf, Type: "map"}
}

// --- LIST ---

func TestList_StaticConfigWins(t *testing.T) {
	st := newStore(t).State("wf")
	t.Setenv(DefaultItemsEnv, `["https://env"]`)

	items, err := List(context.Background(), st, Sources{Items: []string{"https://a", " ", "https://b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "https://b"}, items)

	raw, err := st.Get(context.Background(), KeyItems)
	require.NoError(t, err)
	var stored []string
	require.NoError(t, raw.Decode(&stored))
	assert.Equal(t, items, stored)

	total, err := st.Get(context.Background(), KeyTotalItems)
	require.NoError(t, err)
	assert.Equal(t, "2", total.String())
}

func TestList_EnvThenFile(t *testing.T) {
	st := newStore(t).State("wf")
	t.Setenv(DefaultItemsEnv, `["https://env-1","https://env-2"]`)

	items, err := List(context.Background(), st, Sources{File: "missing.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://env-1", "https://env-2"}, items)

	t.Setenv(DefaultItemsEnv, "")
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("# sources\nhttps://f1\n\nhttps://f2\n"), 0o644))

	items, err = List(context.Background(), st, Sources{File: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://f1", "https://f2"}, items)
}

func TestList_EmptyInput(t *testing.T) {
	st := newStore(t).State("wf")
	t.Setenv(DefaultItemsEnv, "")

	_, err := List(context.Background(), st, Sources{})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = st.Get(context.Background(), KeyItems)
	assert.ErrorIs(t, err, store.ErrKeyNotFound, "LIST must not write urls on empty input")
}

// --- Item resolution ---

func TestResolveItem_Precedence(t *testing.T) {
	ctx := context.Background()
	st := newStore(t).State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a", "https://b", "https://c"})))

	two := 2
	tests := []struct {
		name string
		task *domain.Task
		want string
	}{
		{
			name: "input field string",
			task: &domain.Task{ID: "task-0", Input: map[string]domain.Value{"current_url": domain.MustValue("https://x")}},
			want: "https://x",
		},
		{
			name: "input field object",
			task: &domain.Task{ID: "t", Input: map[string]domain.Value{"current_url": domain.MustValue(map[string]string{"url": "https://y"})}},
			want: "https://y",
		},
		{
			name: "task index",
			task: &domain.Task{ID: "t", Index: &two},
			want: "https://c",
		},
		{
			name: "index input",
			task: &domain.Task{ID: "t", Input: map[string]domain.Value{"_map_index": domain.MustValue(1)}},
			want: "https://b",
		},
		{
			name: "task id suffix",
			task: &domain.Task{ID: "task-1"},
			want: "https://b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := ResolveItem(ctx, tt.task, st, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, item.URL)
		})
	}
}

func TestResolveItem_Errors(t *testing.T) {
	ctx := context.Background()
	st := newStore(t).State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a"})))

	_, err := ResolveItem(ctx, &domain.Task{ID: "worker-7"}, st, "")
	assert.ErrorIs(t, err, ErrNoItem)

	_, err = ResolveItem(ctx, &domain.Task{ID: "task-5"}, st, "")
	assert.ErrorIs(t, err, ErrItemIndexOutOfRange)
}

func TestResolveItem_CompositeTaskIDIsNotAnIndex(t *testing.T) {
	ctx := context.Background()
	st := newStore(t).State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a", "https://b"})))

	for _, id := range []string{
		"task-map-1",
		"task-6f1c2a9e-000000000001",
		"task-wf-1-map-1-1700000000000000000",
		"task--1",
		"task-",
	} {
		t.Run(id, func(t *testing.T) {
			_, err := ResolveItem(ctx, &domain.Task{ID: id}, st, "")
			assert.ErrorIs(t, err, ErrNoItem)
		})
	}
}

// --- MAP ---

func TestMapper_SuccessAppendsOneResult(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	st := s.State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a"})))

	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	m := &Mapper{State: st, Retries: s, Processor: fakeProcessor(nil), Clock: clock}

	out, err := m.Run(ctx, mapTask("wf", 0))
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Nil(t, out.Error)
	assert.Equal(t, "https://a", out.Result.URL)
	assert.Equal(t, 4, out.Result.WordCount)
	assert.Equal(t, 2, out.Result.TopWords["alpha"])
	assert.Equal(t, float64(1700000000), out.Result.Timestamp)

	results, _ := st.List(ctx, ListResults)
	errs, _ := st.List(ctx, ListErrors)
	assert.Len(t, results, 1)
	assert.Len(t, errs, 0)
}

func TestMapper_FailureRecordedNotReturned(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	st := s.State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a"})))

	m := &Mapper{
		State:     st,
		Retries:   s,
		Processor: fakeProcessor(map[string]error{"https://a": fmt.Errorf("%w: HTTP 503", ErrRequest)}),
	}

	out, err := m.Run(ctx, mapTask("wf", 0))
	require.NoError(t, err, "item failure must not fail the task")
	require.NotNil(t, out.Error)
	assert.Equal(t, ErrorTypeRequest, out.Error.ErrorType)
	assert.Equal(t, 1, out.Error.Attempts)

	errs, _ := st.List(ctx, ListErrors)
	assert.Len(t, errs, 1)
}

func TestMapper_ProcessingErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeProcessing, classify(errors.New("parse failed")))
	assert.Equal(t, ErrorTypeRequest, classify(fmt.Errorf("%w: timeout", ErrRequest)))
}

func TestMapper_RetryWithFailFirstAttempt(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	st := s.State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a"})))

	policy := domain.RetryPolicy{MaxAttempts: 3, Backoff: domain.BackoffExponential, Delay: domain.Duration(time.Second)}
	var slept []time.Duration
	m := &Mapper{
		State:     st,
		Retries:   s,
		Processor: &FailFirstAttempt{Next: fakeProcessor(nil)},
		Policy:    &policy,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	out, err := m.Run(ctx, mapTask("wf", 0))
	require.NoError(t, err)
	require.NotNil(t, out.Result, "second attempt must succeed")
	assert.Equal(t, 2, out.Result.Attempts)
	assert.Equal(t, []time.Duration{time.Second}, slept)

	count, err := s.RetryCount(ctx, "wf", "task-0")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	errs, _ := st.List(ctx, ListErrors)
	assert.Empty(t, errs, "a recovered item must not leave an error record")
}

func TestMapper_RetriesExhausted(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	st := s.State("wf")
	require.NoError(t, st.Set(ctx, KeyItems, domain.MustValue([]string{"https://a"})))

	policy := domain.RetryPolicy{MaxAttempts: 2, Backoff: domain.BackoffConstant, Delay: domain.Duration(time.Millisecond)}
	m := &Mapper{
		State:     st,
		Retries:   s,
		Processor: fakeProcessor(map[string]error{"https://a": errors.New("boom")}),
		Policy:    &policy,
		Sleep:     func(context.Context, time.Duration) error { return nil },
	}

	out, err := m.Run(ctx, mapTask("wf", 0))
	require.NoError(t, err)
	require.NotNil(t, out.Error)
	assert.Equal(t, 2, out.Error.Attempts)
	assert.Equal(t, ErrorTypeProcessing, out.Error.ErrorType)

	results, _ := st.List(ctx, ListResults)
	errs, _ := st.List(ctx, ListErrors)
	assert.Len(t, results, 0)
	assert.Len(t, errs, 1, "exactly one record per item")
}

// --- REDUCE ---

func TestScenario_OneOfThreeFails(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	st := s.State("wf")

	_, err := List(ctx, st, Sources{Items: []string{"https://a", "https://b", "https://c"}})
	require.NoError(t, err)

	m := &Mapper{
		State:     st,
		Retries:   s,
		Processor: fakeProcessor(map[string]error{"https://b": errors.New("parse failed")}),
	}
	for i := 0; i < 3; i++ {
		_, err := m.Run(ctx, mapTask("wf", i))
		require.NoError(t, err)
	}

	results, _ := st.List(ctx, ListResults)
	errs, _ := st.List(ctx, ListErrors)
	assert.Len(t, results, 2)
	assert.Len(t, errs, 1)

	summary, err := Reduce(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalURLsProcessed)
	assert.Equal(t, 1, summary.TotalURLsFailed)
	assert.Equal(t, 66.67, summary.SuccessRate)
	assert.Equal(t, []string{"https://b"}, summary.FailedURLs)
	assert.Equal(t, 1, summary.ErrorsByType[ErrorTypeProcessing])

	raw, err := st.Get(ctx, KeyFinalSummary)
	require.NoError(t, err)
	var stored Summary
	require.NoError(t, raw.Decode(&stored))
	assert.Equal(t, 66.67, stored.SuccessRate)
}

func TestScenario_ConcurrentMappersAllSucceed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	st := s.State("wf")

	const n = 25
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf("https://site-%d", i)
	}
	_, err := List(ctx, st, Sources{Items: items})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := &Mapper{State: s.State("wf"), Retries: s, Processor: fakeProcessor(nil)}
			if _, err := m.Run(ctx, mapTask("wf", i)); err != nil {
				t.Errorf("map %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	summary, err := Reduce(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, n, summary.TotalURLsProcessed)
	assert.Equal(t, 100.0, summary.SuccessRate)
	assert.Len(t, summary.SuccessfulURLs, n)
}

func TestReduce_NoOutput(t *testing.T) {
	st := newStore(t).State("wf")

	_, err := Reduce(context.Background(), st)
	assert.ErrorIs(t, err, ErrNoMapOutput)

	_, err = st.Get(context.Background(), KeyFinalSummary)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestAggregate_OnlyErrors(t *testing.T) {
	s := Aggregate(nil, []MapError{{URL: "https://a", ErrorType: ErrorTypeRequest}})

	assert.Equal(t, 0.0, s.AverageWordsPerPage)
	assert.Equal(t, 0.0, s.SuccessRate)
	assert.Equal(t, 0, s.MinWordsPerPage)
	assert.Equal(t, 0, s.MaxWordsPerPage)
	assert.Equal(t, 1, s.ErrorsByType[ErrorTypeRequest])
}

func TestAggregate_StatsAndTopWords(t *testing.T) {
	results := []MapResult{
		{URL: "a", WordCount: 10, ContentLength: 50, TopWords: map[string]int{"x": 3, "y": 1}},
		{URL: "b", WordCount: 30, ContentLength: 70, TopWords: map[string]int{"x": 2, "z": 1}},
	}

	s := Aggregate(results, nil)
	assert.Equal(t, 40, s.TotalWords)
	assert.Equal(t, 120, s.TotalBytes)
	assert.Equal(t, 20.0, s.AverageWordsPerPage)
	assert.Equal(t, 10, s.MinWordsPerPage)
	assert.Equal(t, 30, s.MaxWordsPerPage)
	assert.Equal(t, 100.0, s.SuccessRate)
	assert.Equal(t, []WordCount{{"x", 5}, {"y", 1}, {"z", 1}}, s.TopWordsRanked)
	assert.Equal(t, 5, s.Top20Words["x"])
}

func TestAggregate_TopWordsCappedAt20(t *testing.T) {
	top := make(map[string]int)
	for i := 0; i < 30; i++ {
		top[fmt.Sprintf("w%02d", i)] = i + 1
	}
	s := Aggregate([]MapResult{{URL: "a", TopWords: top}}, nil)

	assert.Len(t, s.Top20Words, 20)
	assert.Equal(t, "w29", s.TopWordsRanked[0].Word)
}

// --- HTTPProcessor ---

func TestHTTPProcessor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("the cat and the hat"))
	}))
	defer server.Close()

	p := &HTTPProcessor{Timeout: 5 * time.Second}

	stats, err := p.Process(context.Background(), Item{URL: server.URL + "/page"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.WordCount)
	assert.Equal(t, 2, stats.TopWords["the"])
	assert.Equal(t, 19, stats.ContentLength)
	assert.Equal(t, http.StatusOK, stats.StatusCode)

	_, err = p.Process(context.Background(), Item{URL: server.URL + "/missing"}, 1)
	assert.ErrorIs(t, err, ErrRequest)
	assert.Equal(t, ErrorTypeRequest, classify(err))
}

func TestCountWords(t *testing.T) {
	count, top := CountWords("b a b\tc\n b a", 2)
	assert.Equal(t, 6, count)
	assert.Equal(t, map[string]int{"b": 3, "a": 2}, top)
}
