package pattern

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"midi2nes/internal/config"
	"midi2nes/internal/types"
)

// windowHash is a content hash of a (length, window) pair. Grouping by
// this hash first, then verifying matches with a direct slice comparison,
// mirrors fast_pattern_detector.py's windowing approach without trusting
// the hash alone to rule out collisions.
func windowHash(seq []types.PatternEvent, start, length int) uint64 {
	h := fnv.New64a()
	var lenBuf [8]byte
	lenBuf[0] = byte(length)
	lenBuf[1] = byte(length >> 8)
	h.Write(lenBuf[:])
	for i := 0; i < length; i++ {
		e := seq[start+i]
		h.Write([]byte{e.Note, e.Volume})
	}
	return h.Sum64()
}

type position struct {
	start  int
	length int
}

// detectHashSharded runs hash-mode detection with one goroutine per
// candidate pattern length, each bounded by cfg.ShardTimeoutSeconds; a
// shard that exceeds its budget contributes no candidates rather than
// blocking the whole detect pass, per §4.8.
func detectHashSharded(seq []types.PatternEvent, cfg config.CompileConfig) []*candidate {
	maxLen := cfg.MaxPatternLengthHash
	if maxLen > len(seq) {
		maxLen = len(seq)
	}
	minLen := cfg.MinPatternLength
	if minLen > maxLen {
		return nil
	}

	timeout := time.Duration(cfg.ShardTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	results := make([][]*candidate, maxLen-minLen+1)
	var wg sync.WaitGroup

	for length := minLen; length <= maxLen; length++ {
		length := length
		idx := length - minLen
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			done := make(chan []*candidate, 1)
			go func() {
				done <- detectHashForLength(seq, length, cfg.MinOccurrences)
			}()

			select {
			case r := <-done:
				results[idx] = r
			case <-ctx.Done():
				results[idx] = nil
			}
		}()
	}

	wg.Wait()

	var all []*candidate
	for _, r := range results {
		all = append(all, r...)
	}
	// deterministic merge order regardless of goroutine completion order.
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].length != all[j].length {
			return all[i].length < all[j].length
		}
		return all[i].positions[0] < all[j].positions[0]
	})
	return all
}

// detectHashForLength groups every window of the given length by hash,
// verifies each bucket's members are byte-identical (splitting off any
// that merely collided), and keeps groups meeting the occurrence floor.
func detectHashForLength(seq []types.PatternEvent, length int, minOccurrences int) []*candidate {
	buckets := make(map[uint64][]position)
	for start := 0; start+length <= len(seq); start++ {
		h := windowHash(seq, start, length)
		buckets[h] = append(buckets[h], position{start, length})
	}

	var candidates []*candidate
	for _, positions := range buckets {
		groups := verifyGroups(seq, positions)
		for _, g := range groups {
			if len(g) < minOccurrences {
				continue
			}
			nonOverlapping := greedyNonOverlapping(g, length)
			if len(nonOverlapping) < minOccurrences {
				continue
			}
			window := seq[nonOverlapping[0] : nonOverlapping[0]+length]
			candidates = append(candidates, &candidate{
				events:    append([]types.PatternEvent(nil), window...),
				length:    length,
				positions: nonOverlapping,
			})
		}
	}
	return candidates
}

// verifyGroups splits a hash bucket into sub-groups of byte-identical
// windows, eliminating false matches from hash collisions.
func verifyGroups(seq []types.PatternEvent, positions []position) [][]int {
	var groups [][]int
	var canonicals [][]types.PatternEvent

	for _, p := range positions {
		window := seq[p.start : p.start+p.length]
		placed := false
		for gi, canon := range canonicals {
			if equalWindow(canon, window) {
				groups[gi] = append(groups[gi], p.start)
				placed = true
				break
			}
		}
		if !placed {
			canonicals = append(canonicals, window)
			groups = append(groups, []int{p.start})
		}
	}
	return groups
}

// greedyNonOverlapping keeps positions in ascending order, dropping any
// that would overlap the previously accepted one.
func greedyNonOverlapping(positions []int, length int) []int {
	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)

	var kept []int
	nextAllowed := -1
	for _, p := range sorted {
		if p < nextAllowed {
			continue
		}
		kept = append(kept, p)
		nextAllowed = p + length
	}
	return kept
}
