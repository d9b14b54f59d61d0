package models

import "time"

// EdgeKind identifies the relationship type of an edge.
type EdgeKind string

// Known edge kinds.
const (
	KindFollow EdgeKind = "follow"
	KindLike   EdgeKind = "like"
	KindRecast EdgeKind = "recast"
)

// Direction selects which end of an edge the subject occupies.
type Direction string

const (
	// DirectionForward selects edges originating at the subject.
	DirectionForward Direction = "forward"
	// DirectionReverse selects edges targeting the subject.
	DirectionReverse Direction = "reverse"
)

// Edge is a directed relationship record from the upstream ledger.
// The ledger is append-only: removals arrive as tombstone entries
// rather than deletions, so Tombstone marks an edge that must not
// count toward any total.
type Edge struct {
	SourceID  uint64    `json:"source_id"`
	TargetID  uint64    `json:"target_id"`
	Kind      EdgeKind  `json:"kind"`
	AddedAt   time.Time `json:"added_at"`
	Tombstone bool      `json:"tombstone,omitempty"`
}

// EdgePage is one page of upstream edge records plus the continuation
// token for the next page. NextToken may be empty (no more data) or the
// upstream's end-of-stream sentinel, which also means no more data.
type EdgePage struct {
	Items     []Edge `json:"items"`
	NextToken string `json:"next_token,omitempty"`
}

// GraphSnapshot is the cached authoritative view of one subject's
// relationship counts and materialized edge-id lists. Written as a
// whole by the backfill pipeline; the online path treats it read-only.
type GraphSnapshot struct {
	SubjectID      uint64    `json:"subject_id"`
	FollowerCount  int       `json:"follower_count"`
	FollowingCount int       `json:"following_count"`
	Followers      []uint64  `json:"followers,omitempty"`
	Following      []uint64  `json:"following,omitempty"`
	LastUpdatedAt  time.Time `json:"last_updated_at"`
}

// FollowCounts is the caller-facing follow-count result. Exact is
// false when either number may be truncated (fast mode hit its cap, or
// full mode hit a safety limit or upstream error).
type FollowCounts struct {
	Followers int  `json:"followers"`
	Following int  `json:"following"`
	Exact     bool `json:"exact"`
}

// BackfillBatch is one immutable unit of backfill work: a contiguous
// slice of the subject identity range.
type BackfillBatch struct {
	BatchNumber  int      `json:"batch_number"`
	SubjectIDs   []uint64 `json:"subject_ids"`
	TotalBatches int      `json:"total_batches"`
}
