// Package store persists the bot's single state document: monitored posts,
// the operator-editable whitelist, settings, the processed-comment ledger and
// running stats. A JSON file backs it by default; a Postgres row can be used
// instead. The scan loop is the only periodic writer, so access is plain
// read-modify-write without transactions.
package store

import (
	"context"
	"strings"
	"time"
)

const (
	// The ledger keeps only the most recent ids; older ones are evicted.
	MaxProcessed = 1000

	// Floors enforced by the ordering service and by the scan loop.
	MinDownvotes    = 3
	MinScanInterval = 30

	DefaultDownvotes    = 5
	DefaultScanInterval = 60
)

type Settings struct {
	DownvotesPerComment int `json:"downvotesPerComment"`
	ScanIntervalSeconds int `json:"scanIntervalSeconds"`
}

type Stats struct {
	TotalOrders       int    `json:"totalOrders"`
	OrdersToday       int    `json:"ordersToday"`
	CommentsDownvoted int    `json:"commentsDownvoted"`
	LastReset         string `json:"lastReset"`
}

type Data struct {
	Posts             []string `json:"posts"`
	Whitelist         []string `json:"whitelist"`
	Settings          Settings `json:"settings"`
	ProcessedComments []string `json:"processedComments"`
	Stats             Stats    `json:"stats"`
}

// Store is the persistence contract shared by the file and Postgres backends.
// Load on a fresh backend returns Defaults(), not an error.
type Store interface {
	Load(ctx context.Context) (Data, error)
	Save(ctx context.Context, d Data) error
	Close() error
}

func Defaults() Data {
	return Data{
		Posts:             []string{},
		Whitelist:         []string{},
		Settings:          Settings{DownvotesPerComment: DefaultDownvotes, ScanIntervalSeconds: DefaultScanInterval},
		ProcessedComments: []string{},
		Stats:             Stats{},
	}
}

// Normalize repairs a loaded document: nil slices become empty, settings are
// clamped to their floors, and an over-long ledger is trimmed.
func (d *Data) Normalize() {
	if d.Posts == nil {
		d.Posts = []string{}
	}
	if d.Whitelist == nil {
		d.Whitelist = []string{}
	}
	if d.ProcessedComments == nil {
		d.ProcessedComments = []string{}
	}
	if d.Settings.DownvotesPerComment < MinDownvotes {
		d.Settings.DownvotesPerComment = DefaultDownvotes
	}
	if d.Settings.ScanIntervalSeconds < MinScanInterval {
		d.Settings.ScanIntervalSeconds = DefaultScanInterval
	}
	if len(d.ProcessedComments) > MaxProcessed {
		d.ProcessedComments = append([]string(nil), d.ProcessedComments[len(d.ProcessedComments)-MaxProcessed:]...)
	}
}

// AppendProcessed records a comment id in the ledger, newest last, evicting
// the oldest entries beyond the cap.
func (d *Data) AppendProcessed(id string) {
	d.ProcessedComments = append(d.ProcessedComments, id)
	if len(d.ProcessedComments) > MaxProcessed {
		d.ProcessedComments = append([]string(nil), d.ProcessedComments[len(d.ProcessedComments)-MaxProcessed:]...)
	}
}

func (d *Data) ProcessedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.ProcessedComments))
	for _, id := range d.ProcessedComments {
		set[id] = struct{}{}
	}
	return set
}

// ResetDailyIfNeeded zeroes the per-day counter once per calendar day. It
// reports whether the document changed and needs persisting.
func (d *Data) ResetDailyIfNeeded(now time.Time) bool {
	today := now.Format("2006-01-02")
	if d.Stats.LastReset == today {
		return false
	}
	d.Stats.OrdersToday = 0
	d.Stats.LastReset = today
	return true
}

// AddPost appends a monitored thread URL, rejecting duplicates.
func (d *Data) AddPost(url string) bool {
	url = strings.TrimSpace(url)
	for _, p := range d.Posts {
		if p == url {
			return false
		}
	}
	d.Posts = append(d.Posts, url)
	return true
}

// RemovePost deletes the thread at the given position and returns its URL.
func (d *Data) RemovePost(i int) (string, bool) {
	if i < 0 || i >= len(d.Posts) {
		return "", false
	}
	removed := d.Posts[i]
	d.Posts = append(d.Posts[:i], d.Posts[i+1:]...)
	return removed, true
}

// AddWhitelist adds a name to the editable whitelist. Names are stored
// lowercased; duplicates are rejected case-insensitively.
func (d *Data) AddWhitelist(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, w := range d.Whitelist {
		if strings.ToLower(w) == name {
			return false
		}
	}
	d.Whitelist = append(d.Whitelist, name)
	return true
}

// RemoveWhitelist removes a name case-insensitively. Only the editable list
// is affected; the imported list cannot be edited from here.
func (d *Data) RemoveWhitelist(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, w := range d.Whitelist {
		if strings.ToLower(w) == name {
			d.Whitelist = append(d.Whitelist[:i], d.Whitelist[i+1:]...)
			return true
		}
	}
	return false
}
