package vfs

import (
	"sync"

	"github.com/Myriad-Dreamin/tinymist-core/internal/ferrors"
	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
)

// ParseFunc produces a parsed syntax tree from raw bytes. It is supplied by
// a higher layer (the syntax adapter) so the VFS itself stays agnostic of
// any concrete grammar, preserving the leaves-first dependency order: VFS
// does not import the syntax package, the syntax package imports VFS.
type ParseFunc func(id fileid.FileId, data []byte) (root any, err *ferrors.FileError)

// Source is a parsed syntactic representation keyed by (FileId, content
// hash). Root is opaque to this package; callers type-assert it back to
// their own concrete tree type.
type Source struct {
	Id    fileid.FileId
	Bytes Bytes
	Root  any
}

type sourceEntry struct {
	lastAccessedRev uint64
	source          *Source
	err             *ferrors.FileError
}

type sourceShard struct {
	lastAccessedRev uint64
	recent          *Source
	byHash          map[uint64]*sourceEntry
}

// SourceCache caches parsed sources per (FileId, content hash), with a
// fast path for repeated identical content (pointer-equal Source reuse) and
// LRU-by-revision-distance eviction.
type SourceCache struct {
	parse ParseFunc

	mu     sync.Mutex
	shards map[fileid.FileId]*sourceShard
}

// NewSourceCache builds an empty cache around parse.
func NewSourceCache(parse ParseFunc) *SourceCache {
	return &SourceCache{parse: parse, shards: make(map[fileid.FileId]*sourceShard)}
}

// GetOrParse returns the cached Source for id/bytes at the given revision,
// reusing a pointer-identical Source when bytes match a previous call.
func (c *SourceCache) GetOrParse(id fileid.FileId, b Bytes, rev uint64) (*Source, *ferrors.FileError) {
	c.mu.Lock()
	defer c.mu.Unlock()

	shard, ok := c.shards[id]
	if !ok {
		shard = &sourceShard{byHash: make(map[uint64]*sourceEntry)}
		c.shards[id] = shard
	}
	shard.lastAccessedRev = rev

	if shard.recent != nil && shard.recent.Bytes.Equal(b) {
		if entry, ok := shard.byHash[b.FastHash()]; ok {
			entry.lastAccessedRev = rev
		}
		return shard.recent, nil
	}

	if entry, ok := shard.byHash[b.FastHash()]; ok {
		entry.lastAccessedRev = rev
		if entry.source != nil {
			shard.recent = entry.source
			return entry.source, nil
		}
		return nil, entry.err
	}

	root, perr := c.parse(id, b.Data())
	entry := &sourceEntry{lastAccessedRev: rev}
	if perr != nil {
		entry.err = perr
		shard.byHash[b.FastHash()] = entry
		return nil, perr
	}

	src := &Source{Id: id, Bytes: b, Root: root}
	entry.source = src
	shard.byHash[b.FastHash()] = entry
	shard.recent = src
	return src, nil
}

// Invalidate drops every cached entry for id (used when the VFS observes a
// content change for that id).
func (c *SourceCache) Invalidate(id fileid.FileId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.shards, id)
}

// Evict removes shards whose last access is older than curr-threshold.
func (c *SourceCache) Evict(curr, threshold uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, shard := range c.shards {
		if curr > shard.lastAccessedRev && curr-shard.lastAccessedRev > threshold {
			delete(c.shards, id)
			continue
		}
		for hash, entry := range shard.byHash {
			if curr > entry.lastAccessedRev && curr-entry.lastAccessedRev > threshold {
				delete(shard.byHash, hash)
			}
		}
	}
}
