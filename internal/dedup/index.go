// Package dedup resolves record identity across the whole run. The index is
// shared by every worker and guarded by a mutex; the check-and-insert is
// atomic so two workers can never both accept the same record.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/JakeFAU/registry-crawler/internal/registry"
)

// Fingerprint hashes the identifying fields of a record. Empty fields hash
// as empty strings so the shape of the input stays stable.
func Fingerprint(rec registry.Record) string {
	payload := strings.Join([]string{
		rec.Title,
		rec.DocumentNumber,
		rec.PublicationDate,
		rec.Content,
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Index is the run-wide seen-identity set. It lives for one run across all
// partitions and categories; cross-run persistence is the record store's
// concern, not the index's.
type Index struct {
	mu     sync.Mutex
	titles map[string]struct{}
	hashes map[string]struct{}
}

// NewIndex builds an empty Index.
func NewIndex() *Index {
	return &Index{
		titles: make(map[string]struct{}),
		hashes: make(map[string]struct{}),
	}
}

// Admit decides accepted vs duplicate for a validated record and updates the
// record in place: ContentHash and Identity are filled, Status becomes
// accepted or duplicate. A record is a duplicate when its non-empty title
// was already seen or its content hash was already seen.
func (i *Index) Admit(rec *registry.Record) bool {
	hash := Fingerprint(*rec)
	rec.ContentHash = hash

	i.mu.Lock()
	defer i.mu.Unlock()

	title := strings.TrimSpace(rec.Title)
	if title != "" {
		if _, seen := i.titles[title]; seen {
			rec.Status = registry.StatusDuplicate
			return false
		}
	}
	if _, seen := i.hashes[hash]; seen {
		rec.Status = registry.StatusDuplicate
		return false
	}

	if title != "" {
		i.titles[title] = struct{}{}
	}
	i.hashes[hash] = struct{}{}
	rec.Identity = hash
	rec.Status = registry.StatusAccepted
	return true
}

// Size returns the number of distinct identities admitted so far.
func (i *Index) Size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.hashes)
}
