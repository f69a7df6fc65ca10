package reddit

import (
	"fmt"
	"testing"
)

const threadFixture = `[
  {"kind": "Listing", "data": {"children": [
    {"kind": "t3", "data": {"id": "abc123", "author": "op_user"}}
  ]}},
  {"kind": "Listing", "data": {"children": [
    {"kind": "t1", "data": {"id": "c1", "author": "alice", "body": "top level", "permalink": "/r/test/comments/abc123/post/c1/", "created_utc": 1716200000, "replies": {"kind": "Listing", "data": {"children": [
      {"kind": "t1", "data": {"id": "c2", "author": "bob", "body": "nested", "permalink": "/r/test/comments/abc123/post/c2/", "created_utc": 1716203600, "replies": ""}},
      {"kind": "more", "data": {"count": 3}}
    ]}}}},
    {"kind": "t1", "data": {"id": "c3", "author": "[deleted]", "body": "[removed]", "permalink": "/r/test/comments/abc123/post/c3/", "created_utc": 1716207200, "replies": ""}},
    {"kind": "t1", "data": {"id": "", "author": "ghost", "body": "no id", "permalink": "/r/test/comments/abc123/post/x/", "created_utc": 1716207300, "replies": ""}},
    {"kind": "t1", "data": {"id": "c4", "author": "carol", "body": "later", "permalink": "/r/test/comments/abc123/post/c4/", "created_utc": 1716210800, "replies": ""}}
  ]}}
]`

func TestDecodeThread_TwoElementPayload(t *testing.T) {
	root, err := decodeThread([]byte(threadFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var replies []Reply
	flattenTree(root, 0, &replies)

	// Document order: deleted authors, id-less comments and "more" stubs are
	// skipped; nested replies are walked.
	wantIDs := []string{"c1", "c2", "c4"}
	if len(replies) != len(wantIDs) {
		t.Fatalf("reply count mismatch: got %d want %d (%v)", len(replies), len(wantIDs), replies)
	}
	for i, want := range wantIDs {
		if replies[i].ID != want {
			t.Fatalf("reply %d mismatch: got %q want %q", i, replies[i].ID, want)
		}
	}
	if replies[0].Author != "alice" || replies[1].Author != "bob" {
		t.Fatalf("author mismatch: %v", replies)
	}
	if got, want := replies[0].URL(), BaseURL+"/r/test/comments/abc123/post/c1/"; got != want {
		t.Fatalf("url mismatch: got %q want %q", got, want)
	}
}

func TestDecodeThread_BareListing(t *testing.T) {
	payload := `{"kind": "Listing", "data": {"children": [
		{"kind": "t1", "data": {"id": "z1", "author": "dan", "body": "only", "permalink": "/r/test/comments/abc/post/z1/", "created_utc": 1716200000, "replies": ""}}
	]}}`

	root, err := decodeThread([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var replies []Reply
	flattenTree(root, 0, &replies)
	if len(replies) != 1 || replies[0].ID != "z1" {
		t.Fatalf("reply mismatch: %v", replies)
	}
}

func TestDecodeThread_Malformed(t *testing.T) {
	for _, payload := range []string{"", "   ", "{not json", "[{]"} {
		if _, err := decodeThread([]byte(payload)); err == nil {
			t.Fatalf("expected error for payload %q", payload)
		}
	}
}

func TestFlattenTree_DepthCapTerminates(t *testing.T) {
	payload := `{"kind":"t1","data":{"id":"leaf","author":"a","body":"x","permalink":"/p/","created_utc":1,"replies":""}}`
	for i := 0; i < 200; i++ {
		payload = fmt.Sprintf(
			`{"kind":"t1","data":{"id":"n%d","author":"a","body":"x","permalink":"/p/","created_utc":1,"replies":{"kind":"Listing","data":{"children":[%s]}}}}`,
			i, payload)
	}
	payload = fmt.Sprintf(`{"kind":"Listing","data":{"children":[%s]}}`, payload)

	root, err := decodeThread([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var replies []Reply
	flattenTree(root, 0, &replies)
	if len(replies) == 0 {
		t.Fatalf("expected some replies before the cap")
	}
	if len(replies) > maxTreeDepth {
		t.Fatalf("depth cap not honored: walked %d levels", len(replies))
	}
}

func TestReplyTree_StringAndNullAreLeaves(t *testing.T) {
	for _, payload := range []string{`""`, `null`, `"   "`} {
		var rt replyTree
		if err := rt.UnmarshalJSON([]byte(payload)); err != nil {
			t.Fatalf("payload %q: unexpected error: %v", payload, err)
		}
		if rt.node != nil {
			t.Fatalf("payload %q: expected leaf, got node", payload)
		}
	}
}
