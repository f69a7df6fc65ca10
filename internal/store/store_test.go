package store

import (
	"fmt"
	"testing"
	"time"
)

func TestAppendProcessed_CapKeepsNewest(t *testing.T) {
	var d Data
	for i := 0; i < MaxProcessed+250; i++ {
		d.AppendProcessed(fmt.Sprintf("c%d", i))
		if len(d.ProcessedComments) > MaxProcessed {
			t.Fatalf("ledger grew past cap: %d entries after %d appends", len(d.ProcessedComments), i+1)
		}
	}

	if got := len(d.ProcessedComments); got != MaxProcessed {
		t.Fatalf("ledger length mismatch: got %d want %d", got, MaxProcessed)
	}
	if got, want := d.ProcessedComments[0], fmt.Sprintf("c%d", 250); got != want {
		t.Fatalf("oldest surviving entry mismatch: got %q want %q", got, want)
	}
	if got, want := d.ProcessedComments[MaxProcessed-1], fmt.Sprintf("c%d", MaxProcessed+249); got != want {
		t.Fatalf("newest entry mismatch: got %q want %q", got, want)
	}
}

func TestAppendProcessed_PreservesAppendOrder(t *testing.T) {
	var d Data
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		d.AppendProcessed(id)
	}
	for i, id := range ids {
		if d.ProcessedComments[i] != id {
			t.Fatalf("order mismatch at %d: got %q want %q", i, d.ProcessedComments[i], id)
		}
	}
}

func TestResetDailyIfNeeded_NewDay(t *testing.T) {
	now := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)

	d := Defaults()
	d.Stats.OrdersToday = 7
	d.Stats.TotalOrders = 40
	d.Stats.LastReset = "2025-06-11"

	if !d.ResetDailyIfNeeded(now) {
		t.Fatalf("expected reset on a new day")
	}
	if d.Stats.OrdersToday != 0 {
		t.Fatalf("ordersToday not zeroed: got %d", d.Stats.OrdersToday)
	}
	if d.Stats.TotalOrders != 40 {
		t.Fatalf("totalOrders must survive reset: got %d", d.Stats.TotalOrders)
	}
	if d.Stats.LastReset != "2025-06-12" {
		t.Fatalf("lastReset mismatch: got %q want %q", d.Stats.LastReset, "2025-06-12")
	}
}

func TestResetDailyIfNeeded_SameDayIsNoop(t *testing.T) {
	now := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)

	d := Defaults()
	d.Stats.LastReset = "2025-06-12"
	d.Stats.OrdersToday = 3

	if d.ResetDailyIfNeeded(now) {
		t.Fatalf("unexpected reset on the same day")
	}
	if d.Stats.OrdersToday != 3 {
		t.Fatalf("ordersToday changed on same-day pass: got %d want 3", d.Stats.OrdersToday)
	}

	// A later pass the same day must stay a no-op too.
	if d.ResetDailyIfNeeded(now.Add(5 * time.Hour)) {
		t.Fatalf("unexpected reset later the same day")
	}
}

func TestNormalize_ClampsAndRepairs(t *testing.T) {
	d := Data{
		Settings: Settings{DownvotesPerComment: 1, ScanIntervalSeconds: 5},
	}
	for i := 0; i < MaxProcessed+10; i++ {
		d.ProcessedComments = append(d.ProcessedComments, fmt.Sprintf("c%d", i))
	}

	d.Normalize()

	if d.Posts == nil || d.Whitelist == nil {
		t.Fatalf("nil slices must be repaired")
	}
	if d.Settings.DownvotesPerComment != DefaultDownvotes {
		t.Fatalf("downvotes not clamped: got %d", d.Settings.DownvotesPerComment)
	}
	if d.Settings.ScanIntervalSeconds != DefaultScanInterval {
		t.Fatalf("interval not clamped: got %d", d.Settings.ScanIntervalSeconds)
	}
	if len(d.ProcessedComments) != MaxProcessed {
		t.Fatalf("ledger not trimmed: got %d", len(d.ProcessedComments))
	}
	if d.ProcessedComments[0] != "c10" {
		t.Fatalf("trim kept wrong entries: got %q want %q", d.ProcessedComments[0], "c10")
	}
}

func TestAddPost_RejectsDuplicate(t *testing.T) {
	d := Defaults()
	url := "https://www.reddit.com/r/example/comments/abc123/title"
	if !d.AddPost(url) {
		t.Fatalf("first add rejected")
	}
	if d.AddPost(url) {
		t.Fatalf("duplicate add accepted")
	}
	if len(d.Posts) != 1 {
		t.Fatalf("posts length mismatch: got %d want 1", len(d.Posts))
	}
}

func TestRemovePost_Bounds(t *testing.T) {
	d := Defaults()
	d.AddPost("https://www.reddit.com/r/a/comments/one/t")
	d.AddPost("https://www.reddit.com/r/b/comments/two/t")

	if _, ok := d.RemovePost(5); ok {
		t.Fatalf("out-of-range remove accepted")
	}
	removed, ok := d.RemovePost(0)
	if !ok || removed != "https://www.reddit.com/r/a/comments/one/t" {
		t.Fatalf("remove mismatch: got %q ok=%v", removed, ok)
	}
	if len(d.Posts) != 1 || d.Posts[0] != "https://www.reddit.com/r/b/comments/two/t" {
		t.Fatalf("remaining posts wrong: %v", d.Posts)
	}
}

func TestWhitelist_CaseInsensitive(t *testing.T) {
	d := Defaults()
	if !d.AddWhitelist("ModUser") {
		t.Fatalf("first add rejected")
	}
	if d.AddWhitelist("moduser") {
		t.Fatalf("case-variant duplicate accepted")
	}
	if !d.RemoveWhitelist("MODUSER") {
		t.Fatalf("case-insensitive remove failed")
	}
	if d.RemoveWhitelist("moduser") {
		t.Fatalf("second remove should report missing")
	}
}
