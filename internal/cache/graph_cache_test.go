package cache

import (
	"encoding/json"
	"testing"
	"time"
)

func TestKeysAreNamespacedPerDataKind(t *testing.T) {
	c := &GraphCache{prefix: "followgraph:graph"}

	if got := c.countsKey(42); got != "followgraph:graph:counts:42" {
		t.Fatalf("unexpected counts key %q", got)
	}
	if got := c.followersKey(42); got != "followgraph:graph:followers:42" {
		t.Fatalf("unexpected followers key %q", got)
	}
	if got := c.followingKey(42); got != "followgraph:graph:following:42" {
		t.Fatalf("unexpected following key %q", got)
	}
}

func TestStoredCountsRoundTrip(t *testing.T) {
	in := storedCounts{
		SubjectID:      7,
		FollowerCount:  50,
		FollowingCount: 12,
		LastUpdatedAt:  time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out storedCounts
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeIDList(t *testing.T) {
	ids, ok := decodeIDList(`[1,2,3]`)
	if !ok || len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("unexpected decode result: %v %v", ids, ok)
	}

	if _, ok := decodeIDList(`not json`); ok {
		t.Fatalf("expected corrupt payload to be rejected")
	}
	if _, ok := decodeIDList(nil); ok {
		t.Fatalf("expected absent value to be rejected")
	}
}
