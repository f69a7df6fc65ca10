// Package watch runs the monitoring loop: it scans each monitored thread for
// new replies, filters out already-processed and trusted ones, submits a
// downvote order per survivor, and persists the outcome before telling the
// operator about it.
package watch

import (
	"strings"
	"time"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
)

// FreshnessWindow bounds how old a reply may be and still receive an order.
// The ordering service rejects targets on older content, so stale replies are
// dropped before an order is ever attempted. A reply aged exactly at the
// window is already stale.
const FreshnessWindow = 24 * time.Hour

// Eligible returns the replies that are unseen, untrusted, and fresh, in
// their original order. Trusted names must already be lowercased. The
// function never mutates its inputs; the caller owns the processed-id
// lifecycle.
func Eligible(replies []reddit.Reply, processed, trusted map[string]struct{}, now time.Time) []reddit.Reply {
	eligible := make([]reddit.Reply, 0, len(replies))
	for _, r := range replies {
		if _, seen := processed[r.ID]; seen {
			continue
		}
		if _, ok := trusted[strings.ToLower(r.Author)]; ok {
			continue
		}
		if now.Sub(r.Created) >= FreshnessWindow {
			continue
		}
		eligible = append(eligible, r)
	}
	return eligible
}
