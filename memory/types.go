// Package memory implements the tenant/thread-partitioned semantic
// memory index: dedup-on-insert and embedding-distance semantic cache,
//.
//
// Grounded on the VectorStore port abstraction in
// other_examples/9b7f2b08_maximhq-bifrost__plugins-semanticcache-main.go.go
// (Add/Delete/GetAll over an opaque store, threshold/TTL config shape)
// and the item-shape conventions of
// other_examples/a183f311_ODSapper-CLIAIRMONITOR__internal-memory-interfaces.go.go
// and other_examples/f60eaf18_quantumlife-canon-core__internal-memory-interface.go.go
// (kind/category/metadata-bearing records partitioned by tenant and
// thread).
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Kind classifies a memory item's lifecycle and lookup semantics.
type Kind string

const (
	KindShortTerm    Kind = "short-term"
	KindLongTerm     Kind = "long-term"
	KindSemanticCache Kind = "semantic-cache"
)

// Item is one stored memory record.
type Item struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	ThreadID  string                 `json:"thread_id"`
	TurnIndex int                    `json:"turn_index"`
	Text      string                 `json:"text"`
	Content   string                 `json:"content"`
	Embedding []float32              `json:"embedding"`
	Timestamp time.Time              `json:"timestamp"`
	Kind      Kind                   `json:"kind"`
	Category  string                 `json:"category,omitempty"`
	TTLSec    int                    `json:"ttl_sec,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ContentHash returns sha256(content), the invariant value stored at
// Metadata["hash"] on insert.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// AddOptions configures a single add call.
type AddOptions struct {
	Dedup          bool
	DedupThreshold float64
}

// SearchOptions configures search/findSimilar.
type SearchOptions struct {
	TenantID string
	ThreadID string
	Category string
	Limit    int
}

// CacheOptions configures checkSemanticCache/addToCache.
type CacheOptions struct {
	CacheThreshold float64
	MaxAge         time.Duration // zero means no age limit beyond TTL
	TTLSec         int
}

// CacheResult is returned by checkSemanticCache on a hit.
type CacheResult struct {
	Response interface{}
	Age      time.Duration
	Metadata map[string]interface{}
}

func (i Item) expired(at time.Time) bool {
	if i.TTLSec <= 0 {
		return false
	}
	return at.After(i.Timestamp.Add(time.Duration(i.TTLSec) * time.Second))
}
