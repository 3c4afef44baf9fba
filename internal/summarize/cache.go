package summarize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/xfeed/xfeed/internal/llm"
	"github.com/xfeed/xfeed/internal/models"
)

// cachedResult is one in-process cache entry: the LLM response for both
// the summary and translation prompts, keyed by content hash.
type cachedResult struct {
	Summary     llm.Response
	Translation llm.Response
}

// cache is the volatile, process-local map from content_hash to the
// LLM responses already computed for it. Readers do not block each
// other; writers are serialised — a single sync.RWMutex, per §5. It is
// not bounded and resets on restart; the persisted content_hash column
// is the cross-restart side of the same key derivation.
type cache struct {
	mu      sync.RWMutex
	entries map[string]cachedResult
}

func newCache() *cache {
	return &cache{entries: make(map[string]cachedResult)}
}

func (c *cache) get(key string) (cachedResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *cache) put(key string, v cachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// ContentHash derives the cache key for a unit of summarisation work. A
// tweet that belongs to a Dedup Group shares its key with every other
// member of the group (keyed on the group's type + representative); a
// standalone tweet gets its own key. This is the one derivation rule used
// by both the in-process cache and the persisted content_hash column, so
// a process restart warms cleanly from the persisted side.
func ContentHash(tweet models.Tweet, group *models.DedupGroup) string {
	var canonical string
	if group != nil {
		canonical = fmt.Sprintf("%s:%s", group.DedupType, group.RepresentativeTweetID)
	} else {
		canonical = "standalone:" + tweet.TweetID
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
