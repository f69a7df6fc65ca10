package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/store"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/whitelist"
)

// ErrAlreadyRunning is returned by Start when the scanner is already running.
var ErrAlreadyRunning = errors.New("scanner already running")

// Fetcher pulls the current replies of one monitored thread.
type Fetcher interface {
	Comments(ctx context.Context, threadURL string) ([]reddit.Reply, error)
}

// Gateway submits orders against reply URLs.
type Gateway interface {
	AddOrder(ctx context.Context, serviceID int, link string, quantity int) (int64, error)
}

// Config wires a Scanner to its collaborators.
type Config struct {
	Store   store.Store
	Fetcher Fetcher
	Gateway Gateway

	// Queue receives one notification per order attempt. Optional.
	Queue *Queue
	// ChatID is the chat notifications are addressed to.
	ChatID int64

	// ServiceID is the ordering-service catalog id used for submissions.
	ServiceID int

	// Imported holds trusted author names from the read-only import,
	// lowercased. The store's editable whitelist is unioned in each pass.
	Imported map[string]struct{}

	// Orders receives an audit record per submission attempt. Optional.
	Orders *OrderLog
}

// Scanner is the background worker running the scan-and-dispatch loop.
// Exactly one loop runs per Scanner; Start on a running one reports
// ErrAlreadyRunning instead of spawning a second.
type Scanner struct {
	cfg Config

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	// Pause between reply submissions.
	throttle time.Duration
	// Pause after a failed pass. Longer than the default scan interval.
	errorBackoff time.Duration
	// How long Stop waits for the loop to finish its current step.
	joinTimeout time.Duration
}

// New validates cfg and returns a stopped Scanner.
func New(cfg Config) (*Scanner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("scanner: store required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("scanner: fetcher required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("scanner: gateway required")
	}
	return &Scanner{
		cfg:          cfg,
		throttle:     2 * time.Second,
		errorBackoff: 90 * time.Second,
		joinTimeout:  5 * time.Second,
	}, nil
}

// Running reports whether the loop is active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the background loop.
func (s *Scanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	return nil
}

// Stop signals the loop and waits for it to finish its current submission
// step. An in-flight network call is not preempted, so the wait is bounded by
// the join timeout.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-time.After(s.joinTimeout):
		return fmt.Errorf("scanner did not stop within %s", s.joinTimeout)
	}
}

func (s *Scanner) run(stop, done chan struct{}) {
	defer close(done)
	for {
		interval, err := s.pass(stop)
		if err != nil {
			log.Printf("[warn] scan pass: %v", err)
			if !sleepInterruptible(stop, s.errorBackoff) {
				return
			}
			continue
		}
		if !sleepInterruptible(stop, interval) {
			return
		}
	}
}

// pass runs one full scan over the monitored threads and returns the interval
// to sleep before the next one.
func (s *Scanner) pass(stop chan struct{}) (time.Duration, error) {
	ctx := context.Background()

	data, err := s.cfg.Store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	data.Normalize()

	if data.ResetDailyIfNeeded(time.Now()) {
		if err := s.cfg.Store.Save(ctx, data); err != nil {
			return 0, fmt.Errorf("save daily reset: %w", err)
		}
	}

	trusted := whitelist.Union(s.cfg.Imported, data.Whitelist)
	log.Printf("[scan] watching %d threads, %d trusted authors", len(data.Posts), len(trusted))

	interval := time.Duration(data.Settings.ScanIntervalSeconds) * time.Second
	quantity := data.Settings.DownvotesPerComment
	processed := data.ProcessedSet()

	for _, thread := range data.Posts {
		if stopRequested(stop) {
			break
		}

		replies, err := s.cfg.Fetcher.Comments(ctx, thread)
		if err != nil {
			log.Printf("[warn] fetch %s: %v", thread, err)
			continue
		}

		eligible := Eligible(replies, processed, trusted, time.Now())
		log.Printf("[scan] %s: %d replies, %d eligible", thread, len(replies), len(eligible))

		for _, reply := range eligible {
			if stopRequested(stop) {
				return interval, nil
			}
			if err := s.step(ctx, thread, reply, quantity); err != nil {
				return 0, err
			}
			processed[reply.ID] = struct{}{}
			if !sleepInterruptible(stop, s.throttle) {
				return interval, nil
			}
		}
	}
	return interval, nil
}

// step submits one order and records its outcome: reload a fresh state
// snapshot, update counters and the processed ledger, persist, and only then
// enqueue the notification. A crash after the save never re-submits the
// reply.
func (s *Scanner) step(ctx context.Context, thread string, reply reddit.Reply, quantity int) error {
	link := reply.URL()
	orderID, submitErr := s.cfg.Gateway.AddOrder(ctx, s.cfg.ServiceID, link, quantity)

	data, err := s.cfg.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload state: %w", err)
	}
	data.Normalize()

	var text string
	if submitErr == nil {
		data.Stats.TotalOrders++
		data.Stats.OrdersToday++
		data.Stats.CommentsDownvoted++
		text = fmt.Sprintf("[DOWNVOTED] u/%s\nOrder #%d\nDownvotes: %d", reply.Author, orderID, quantity)
		log.Printf("[order] #%d u/%s x%d (%s)", orderID, reply.Author, quantity, reply.ID)
	} else {
		text = fmt.Sprintf("[FAILED] u/%s\n%s", reply.Author, upvote.Cause(submitErr))
		log.Printf("[warn] order u/%s (%s): %v", reply.Author, reply.ID, submitErr)
	}

	data.AppendProcessed(reply.ID)
	if err := s.cfg.Store.Save(ctx, data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	if err := s.cfg.Orders.Record(OrderRecord{
		Thread:   thread,
		Comment:  reply.ID,
		Author:   reply.Author,
		Link:     link,
		Quantity: quantity,
		Order:    orderID,
		Error:    causeOrEmpty(submitErr),
	}); err != nil {
		log.Printf("[warn] order log: %v", err)
	}

	if s.cfg.Queue != nil {
		if !s.cfg.Queue.TryEnqueue(Notification{ChatID: s.cfg.ChatID, Text: text}) {
			log.Printf("[warn] notification queue full, dropped message for u/%s", reply.Author)
		}
	}
	return nil
}

func causeOrEmpty(err error) string {
	if err == nil {
		return ""
	}
	return upvote.Cause(err)
}

func stopRequested(stop chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// sleepInterruptible sleeps for d in one-second slices, returning false as
// soon as stop is closed.
func sleepInterruptible(stop chan struct{}, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		slice := time.Second
		if remaining < slice {
			slice = remaining
		}
		select {
		case <-stop:
			return false
		case <-time.After(slice):
		}
	}
}
