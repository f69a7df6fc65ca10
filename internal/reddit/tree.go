package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Thread trees are acyclic and shallow by construction; the cap only guards
// against a pathological payload.
const maxTreeDepth = 64

// thing is one element of the listing tree. The API tags every object with a
// kind: "Listing" containers hold children, "t1" is a comment, "t3" the post
// itself, "more" a collapsed-replies stub.
type thing struct {
	Kind string    `json:"kind"`
	Data thingData `json:"data"`
}

type thingData struct {
	// Comment fields (kind "t1").
	ID         string    `json:"id"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	Permalink  string    `json:"permalink"`
	CreatedUTC float64   `json:"created_utc"`
	Replies    replyTree `json:"replies"`

	// Container field (kind "Listing").
	Children []thing `json:"children"`
}

// replyTree tolerates the API emitting an empty string instead of a nested
// listing when a comment has no replies.
type replyTree struct {
	node *thing
}

func (rt *replyTree) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		rt.node = nil
		return nil
	}
	// "" marks a leaf, not an error.
	if b[0] == '"' {
		rt.node = nil
		return nil
	}
	var t thing
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	rt.node = &t
	return nil
}

// decodeThread accepts either the full thread payload, a two-element array of
// (post listing, comment listing), or a bare listing.
func decodeThread(b []byte) (*thing, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("empty thread payload")
	}
	if b[0] == '[' {
		var parts []thing
		if err := json.Unmarshal(b, &parts); err != nil {
			return nil, fmt.Errorf("decode thread payload: %w", err)
		}
		if len(parts) == 0 {
			return nil, fmt.Errorf("thread payload has no listings")
		}
		return &parts[len(parts)-1], nil
	}
	var t thing
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode thread payload: %w", err)
	}
	return &t, nil
}

func flattenTree(t *thing, depth int, out *[]Reply) {
	if t == nil || depth > maxTreeDepth {
		return
	}
	switch t.Kind {
	case "Listing":
		for i := range t.Data.Children {
			flattenTree(&t.Data.Children[i], depth+1, out)
		}
	case "t1":
		if id := strings.TrimSpace(t.Data.ID); id != "" && validAuthor(t.Data.Author) {
			*out = append(*out, Reply{
				ID:        id,
				Author:    t.Data.Author,
				Body:      t.Data.Body,
				Permalink: t.Data.Permalink,
				Created:   time.Unix(int64(t.Data.CreatedUTC), 0).UTC(),
			})
		}
		flattenTree(t.Data.Replies.node, depth+1, out)
	default:
		// "more" stubs and the post node carry no comment to record.
	}
}

func validAuthor(a string) bool {
	a = strings.TrimSpace(a)
	return a != "" && a != "[deleted]"
}
