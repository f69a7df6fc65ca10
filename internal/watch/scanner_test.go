package watch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/store"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
)

type memStore struct {
	mu      sync.Mutex
	data    store.Data
	saves   int
	loadErr error
	onSave  func(store.Data)
}

func newMemStore(d store.Data) *memStore { return &memStore{data: d} }

func cloneData(d store.Data) store.Data {
	b, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	var out store.Data
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

func (m *memStore) Load(context.Context) (store.Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return store.Data{}, m.loadErr
	}
	return cloneData(m.data), nil
}

func (m *memStore) Save(_ context.Context, d store.Data) error {
	m.mu.Lock()
	m.data = cloneData(d)
	m.saves++
	cb := m.onSave
	m.mu.Unlock()
	if cb != nil {
		cb(d)
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot() store.Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneData(m.data)
}

type fakeFetcher struct {
	replies map[string][]reddit.Reply
	err     error
}

func (f *fakeFetcher) Comments(_ context.Context, threadURL string) ([]reddit.Reply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.replies[threadURL], nil
}

type gatewayCall struct {
	ServiceID int
	Link      string
	Quantity  int
}

type fakeGateway struct {
	mu     sync.Mutex
	calls  []gatewayCall
	nextID int64
	err    error
}

func (g *fakeGateway) AddOrder(_ context.Context, serviceID int, link string, quantity int) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{ServiceID: serviceID, Link: link, Quantity: quantity})
	if g.err != nil {
		return 0, g.err
	}
	g.nextID++
	return g.nextID, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func newTestScanner(t *testing.T, cfg Config) *Scanner {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}
	s.throttle = 0
	s.errorBackoff = 10 * time.Millisecond
	return s
}

const testThread = "https://www.reddit.com/r/golang/comments/abc123/thread"

func threadReplies(now time.Time) []reddit.Reply {
	return []reddit.Reply{
		{ID: "a1", Author: "mod1", Created: now.Add(-1 * time.Hour), Permalink: "/r/golang/comments/abc123/thread/a1/"},
		{ID: "b2", Author: "spammer", Created: now.Add(-2 * time.Hour), Permalink: "/r/golang/comments/abc123/thread/b2/"},
		{ID: "c3", Author: "spammer", Created: now.Add(-30 * time.Hour), Permalink: "/r/golang/comments/abc123/thread/c3/"},
	}
}

func TestPassDispatchesOnlyEligibleReplies(t *testing.T) {
	now := time.Now()
	data := store.Defaults()
	data.Posts = []string{testThread}
	data.Whitelist = []string{"mod1"}

	ms := newMemStore(data)
	ff := &fakeFetcher{replies: map[string][]reddit.Reply{testThread: threadReplies(now)}}
	fg := &fakeGateway{}
	q := NewQueue(8)

	s := newTestScanner(t, Config{Store: ms, Fetcher: ff, Gateway: fg, Queue: q, ChatID: 42, ServiceID: 8})

	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("pass: %v", err)
	}

	// a1 is trusted, c3 is stale, so only b2 gets an order.
	if fg.callCount() != 1 {
		t.Fatalf("order count mismatch: got %d want 1", fg.callCount())
	}
	call := fg.calls[0]
	if call.ServiceID != 8 {
		t.Fatalf("service mismatch: got %d want 8", call.ServiceID)
	}
	if want := "https://www.reddit.com/r/golang/comments/abc123/thread/b2/"; call.Link != want {
		t.Fatalf("link mismatch: got %q want %q", call.Link, want)
	}
	if call.Quantity != store.DefaultDownvotes {
		t.Fatalf("quantity mismatch: got %d want %d", call.Quantity, store.DefaultDownvotes)
	}

	got := ms.snapshot()
	if len(got.ProcessedComments) != 1 || got.ProcessedComments[0] != "b2" {
		t.Fatalf("ledger mismatch: got %v want [b2]", got.ProcessedComments)
	}
	if got.Stats.TotalOrders != 1 || got.Stats.OrdersToday != 1 || got.Stats.CommentsDownvoted != 1 {
		t.Fatalf("stats mismatch: %+v", got.Stats)
	}

	select {
	case n := <-q.Chan():
		if n.ChatID != 42 {
			t.Fatalf("chat id mismatch: got %d want 42", n.ChatID)
		}
		if !strings.HasPrefix(n.Text, "[DOWNVOTED] u/spammer") {
			t.Fatalf("notification mismatch: %q", n.Text)
		}
		if !strings.Contains(n.Text, "Order #1") || !strings.Contains(n.Text, "Downvotes: 5") {
			t.Fatalf("notification mismatch: %q", n.Text)
		}
	default:
		t.Fatal("expected a notification")
	}

	// Second pass over the same thread finds nothing new.
	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if fg.callCount() != 1 {
		t.Fatalf("order count after second pass: got %d want 1", fg.callCount())
	}
	if len(q.Chan()) != 0 {
		t.Fatalf("unexpected notification on second pass")
	}
}

func TestPassResetsDailyStatsOncePerDay(t *testing.T) {
	data := store.Defaults()
	data.Stats = store.Stats{
		TotalOrders: 10,
		OrdersToday: 7,
		LastReset:   time.Now().AddDate(0, 0, -1).Format("2006-01-02"),
	}
	ms := newMemStore(data)

	s := newTestScanner(t, Config{Store: ms, Fetcher: &fakeFetcher{}, Gateway: &fakeGateway{}})

	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got := ms.snapshot()
	if got.Stats.OrdersToday != 0 {
		t.Fatalf("ordersToday mismatch: got %d want 0", got.Stats.OrdersToday)
	}
	if got.Stats.TotalOrders != 10 {
		t.Fatalf("totalOrders mismatch: got %d want 10", got.Stats.TotalOrders)
	}
	if want := time.Now().Format("2006-01-02"); got.Stats.LastReset != want {
		t.Fatalf("lastReset mismatch: got %q want %q", got.Stats.LastReset, want)
	}
	if ms.saves != 1 {
		t.Fatalf("save count mismatch: got %d want 1", ms.saves)
	}

	// Same day again: no further reset, no further save.
	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if ms.saves != 1 {
		t.Fatalf("save count after second pass: got %d want 1", ms.saves)
	}
}

func TestOutcomePersistedBeforeNotification(t *testing.T) {
	now := time.Now()
	data := store.Defaults()
	data.Posts = []string{testThread}
	data.Stats.LastReset = now.Format("2006-01-02")

	ms := newMemStore(data)
	q := NewQueue(8)
	ms.onSave = func(saved store.Data) {
		if len(q.Chan()) != 0 {
			t.Error("notification enqueued before state was persisted")
		}
		if len(saved.ProcessedComments) != 1 || saved.ProcessedComments[0] != "b2" {
			t.Errorf("saved ledger mismatch: %v", saved.ProcessedComments)
		}
	}

	replies := []reddit.Reply{{ID: "b2", Author: "spammer", Created: now.Add(-time.Hour), Permalink: "/r/golang/comments/abc123/thread/b2/"}}
	ff := &fakeFetcher{replies: map[string][]reddit.Reply{testThread: replies}}

	s := newTestScanner(t, Config{Store: ms, Fetcher: ff, Gateway: &fakeGateway{}, Queue: q, ChatID: 1, ServiceID: 8})

	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if len(q.Chan()) != 1 {
		t.Fatalf("notification count mismatch: got %d want 1", len(q.Chan()))
	}
}

func TestFailedOrderStillMarksProcessed(t *testing.T) {
	now := time.Now()
	data := store.Defaults()
	data.Posts = []string{testThread}
	data.Stats.LastReset = now.Format("2006-01-02")

	ms := newMemStore(data)
	replies := []reddit.Reply{{ID: "b2", Author: "spammer", Created: now.Add(-time.Hour), Permalink: "/r/golang/comments/abc123/thread/b2/"}}
	ff := &fakeFetcher{replies: map[string][]reddit.Reply{testThread: replies}}
	fg := &fakeGateway{err: &upvote.APIError{Kind: upvote.KindRejection, Msg: "not_enough_funds"}}
	q := NewQueue(8)

	s := newTestScanner(t, Config{Store: ms, Fetcher: ff, Gateway: fg, Queue: q, ChatID: 1, ServiceID: 8})

	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("pass: %v", err)
	}

	got := ms.snapshot()
	if len(got.ProcessedComments) != 1 || got.ProcessedComments[0] != "b2" {
		t.Fatalf("ledger mismatch: got %v want [b2]", got.ProcessedComments)
	}
	if got.Stats.TotalOrders != 0 || got.Stats.CommentsDownvoted != 0 {
		t.Fatalf("stats must not count failures: %+v", got.Stats)
	}

	n := <-q.Chan()
	if want := "[FAILED] u/spammer\nnot_enough_funds"; n.Text != want {
		t.Fatalf("notification mismatch: got %q want %q", n.Text, want)
	}

	// The failed reply is processed; the next pass does not retry it.
	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if fg.callCount() != 1 {
		t.Fatalf("order attempts mismatch: got %d want 1", fg.callCount())
	}
}

func TestFetchFailureSkipsThreadAndContinues(t *testing.T) {
	data := store.Defaults()
	data.Posts = []string{testThread}
	data.Stats.LastReset = time.Now().Format("2006-01-02")

	ms := newMemStore(data)
	ff := &fakeFetcher{err: errors.New("status=403 blocked")}
	fg := &fakeGateway{}

	s := newTestScanner(t, Config{Store: ms, Fetcher: ff, Gateway: fg})

	if _, err := s.pass(make(chan struct{})); err != nil {
		t.Fatalf("pass: %v", err)
	}
	if fg.callCount() != 0 {
		t.Fatalf("order count mismatch: got %d want 0", fg.callCount())
	}
	if ms.saves != 0 {
		t.Fatalf("save count mismatch: got %d want 0", ms.saves)
	}
}

func TestPassReportsStoreFailure(t *testing.T) {
	ms := newMemStore(store.Defaults())
	ms.loadErr = errors.New("disk gone")

	s := newTestScanner(t, Config{Store: ms, Fetcher: &fakeFetcher{}, Gateway: &fakeGateway{}})

	if _, err := s.pass(make(chan struct{})); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestPassUsesIntervalFromSettings(t *testing.T) {
	data := store.Defaults()
	data.Settings.ScanIntervalSeconds = 45
	data.Stats.LastReset = time.Now().Format("2006-01-02")
	ms := newMemStore(data)

	s := newTestScanner(t, Config{Store: ms, Fetcher: &fakeFetcher{}, Gateway: &fakeGateway{}})

	interval, err := s.pass(make(chan struct{}))
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if interval != 45*time.Second {
		t.Fatalf("interval mismatch: got %s want 45s", interval)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	data := store.Defaults()
	data.Stats.LastReset = time.Now().Format("2006-01-02")
	ms := newMemStore(data)

	s := newTestScanner(t, Config{Store: ms, Fetcher: &fakeFetcher{}, Gateway: &fakeGateway{}})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Running() {
		t.Fatal("expected running")
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: got %v want ErrAlreadyRunning", err)
	}

	begin := time.Now()
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 3*time.Second {
		t.Fatalf("stop took %s, want prompt join", elapsed)
	}
	if s.Running() {
		t.Fatal("expected stopped")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop when stopped: %v", err)
	}

	// The scanner restarts cleanly after a stop.
	if err := s.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}
