package store

import (
	"chunkstore/internal/chunk"
	"chunkstore/internal/eventbus"
	"chunkstore/internal/gcpolicy"
)

// GCRequest bundles one gc() call's options (§4.6). ProtectLatest is
// resolved against the live index (it needs the index to find each
// (entity, timeline, component)'s most recent rows); Protection and
// Everything pass straight through to gcpolicy.Options. ProtectLatest and
// Protection combine with OR semantics via gcpolicy.Composite.
type GCRequest struct {
	Target        gcpolicy.Target
	Protection    gcpolicy.Protection
	ProtectLatest int
	Everything    bool
}

func (s *Store) resolveOptions(req GCRequest) gcpolicy.Options {
	protection := req.Protection
	if req.ProtectLatest > 0 {
		latest := gcpolicy.ProtectedChunkIDs(s.protectedForLatest(req.ProtectLatest))
		if protection == nil {
			protection = latest
		} else {
			protection = gcpolicy.Composite{protection, latest}
		}
	}
	return gcpolicy.Options{Target: req.Target, Protection: protection, Everything: req.Everything}
}

// runGC implements §4.6's algorithm under the caller's write lock:
// ascend chunk_ids_per_min_row_id, skip static/protected chunks, remove the
// rest from the index and registry, stop once the target is satisfied.
func (s *Store) runGC(opts gcpolicy.Options) []eventbus.Event {
	protection := opts.Protection
	if protection == nil {
		protection = gcpolicy.None()
	}
	target := opts.Target
	if target == nil {
		target = gcpolicy.Never()
	}

	var totalTemporal int64
	for _, c := range s.reg.IterChunks() {
		if !c.IsStatic() {
			totalTemporal += c.HeapSizeBytes()
		}
	}

	var events []eventbus.Event
	var reclaimed int64
	for _, id := range s.reg.AscendingByMinRowID() {
		if !opts.Everything && target.Satisfied(reclaimed, totalTemporal) {
			break
		}
		c, ok := s.reg.Get(id)
		if !ok {
			continue
		}
		if c.IsStatic() {
			continue
		}
		if !opts.Everything && protection.Protects(c) {
			continue
		}

		s.ing.RemoveFromIndex(c)
		s.reg.Unregister(c.ID)
		reclaimed += c.HeapSizeBytes()
		if s.cfg.EnableChangelog {
			events = append(events, eventbus.Event{ID: s.bus.NextEventID(), Kind: eventbus.Deletion, Chunk: c})
		}
	}
	return events
}

func (s *Store) protectedForLatest(n int) map[chunk.ChunkID]struct{} {
	protected := make(map[chunk.ChunkID]struct{})
	if n <= 0 {
		return protected
	}
	for _, ent := range s.index.Entities() {
		for _, timeline := range s.index.TimelinesFor(ent) {
			for _, comp := range s.index.ComponentsFor(ent, timeline) {
				set, ok := s.index.FineSet(ent, timeline, comp)
				if !ok {
					continue
				}
				remaining := n
				for _, id := range set.DescendingByEnd() {
					if remaining <= 0 {
						break
					}
					c, ok := s.reg.Get(id)
					if !ok {
						continue
					}
					protected[id] = struct{}{}
					remaining -= rowsWithNonNull(c, comp)
				}
			}
		}
	}
	return protected
}

func rowsWithNonNull(c *chunk.Chunk, comp chunk.ComponentDescriptor) int {
	arr, ok := c.ComponentArray(comp)
	if !ok {
		return 0
	}
	n := 0
	for i := 0; i < arr.Len(); i++ {
		if !arr.IsNull(i) {
			n++
		}
	}
	return n
}
