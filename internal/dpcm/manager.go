// Package dpcm implements C5: the DPCM sample bank. It tracks active
// samples under a byte budget and a sample-count budget, aliases
// near-duplicate requests onto an already-loaded sample, and evicts by a
// weighted usage/size/similarity score when either budget is exceeded.
// Grounded on
// original_source/dpcm_sampler/dpcm_sample_manager.py's DPCMSampleManager,
// with one deliberate behavior change: sample ids are a monotonic counter
// rather than len(active_samples), so an id is never reused after an
// eviction (spec.md §4.5's stability invariant; the original reassigns
// ids by table size and would violate it).
package dpcm

import (
	"sort"

	"midi2nes/internal/config"
	"midi2nes/internal/types"
)

const defaultSampleSize = 1024

// Manager is the DPCM sample bank for one compile. It is not safe for
// concurrent use; the pipeline stages that touch it (track mapper, drum
// mapper) run sequentially.
type Manager struct {
	maxSamples     int
	memoryBudget   int
	keepMinimum    int
	similarityHigh float64

	active       map[string]types.DPCMSample
	usage        map[string]int
	similarities map[string]map[string]float64
	aliasCache   map[string]string

	totalBytes int
	nextID     byte
}

// NewManager builds an empty sample bank from the compile config.
func NewManager(cfg config.CompileConfig) *Manager {
	return &Manager{
		maxSamples:     cfg.MaxSamples,
		memoryBudget:   cfg.MemoryBudget,
		keepMinimum:    cfg.KeepMinimum,
		similarityHigh: cfg.SimilarityHigh,
		active:         make(map[string]types.DPCMSample),
		usage:          make(map[string]int),
		similarities:   make(map[string]map[string]float64),
		aliasCache:     make(map[string]string),
	}
}

// Allocate assigns or reuses a DPCM sample slot for name, per §4.5's
// allocate algorithm.
func (m *Manager) Allocate(name string, data []byte, frequencyHz uint16) types.DPCMSample {
	m.usage[name]++

	if sample, ok := m.active[name]; ok {
		return sample
	}

	required := len(data)
	if required == 0 {
		required = defaultSampleSize
	}

	if m.totalBytes+required > m.memoryBudget {
		m.optimize(false, required)
	}

	if len(m.active) >= m.maxSamples {
		if aliased, ok := m.findSimilar(name, data); ok {
			return aliased
		}
		m.optimize(true, required)
	}

	sample := types.DPCMSample{
		Name:        name,
		Data:        data,
		Length:      uint16(len(data)),
		FrequencyHz: frequencyHz,
		ID:          m.nextID,
		SizeBytes:   uint16(required),
	}
	m.nextID++

	m.active[name] = sample
	m.totalBytes += required
	m.updateSimilarities(name, data)

	return sample
}

// findSimilar looks for an active sample whose similarity to (name, data)
// exceeds the configured high-similarity threshold, checking the alias
// cache first.
func (m *Manager) findSimilar(name string, data []byte) (types.DPCMSample, bool) {
	if cached, ok := m.aliasCache[name]; ok {
		if sample, ok := m.active[cached]; ok {
			return sample, true
		}
	}

	var best string
	var bestScore float64
	for activeName, activeSample := range m.active {
		score := similarity(data, activeSample.Data)
		if score > bestScore {
			bestScore = score
			best = activeName
		}
	}

	if best != "" && bestScore > m.similarityHigh {
		m.aliasCache[name] = best
		return m.active[best], true
	}
	return types.DPCMSample{}, false
}

// updateSimilarities records the pairwise similarity between the newly
// inserted sample and every other active sample.
func (m *Manager) updateSimilarities(name string, data []byte) {
	if len(m.active) <= 1 {
		return
	}
	if m.similarities[name] == nil {
		m.similarities[name] = make(map[string]float64)
	}
	for otherName, otherSample := range m.active {
		if otherName == name {
			continue
		}
		score := similarity(data, otherSample.Data)
		m.similarities[name][otherName] = score
		if m.similarities[otherName] == nil {
			m.similarities[otherName] = make(map[string]float64)
		}
		m.similarities[otherName][name] = score
	}
}

// similarity combines length similarity (weight 0.4) and byte-position
// waveform equality (weight 0.6), per §4.5.
func similarity(a, b []byte) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	lengthSim := 1.0
	if maxLen > 0 {
		diff := len(a) - len(b)
		if diff < 0 {
			diff = -diff
		}
		lengthSim = 1.0 - float64(diff)/float64(maxLen)
	}

	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	var waveformSim float64
	if minLen == 0 {
		if len(a) == 0 && len(b) == 0 {
			waveformSim = 1.0
		}
	} else {
		matches := 0
		for i := 0; i < minLen; i++ {
			if a[i] == b[i] {
				matches++
			}
		}
		waveformSim = float64(matches) / float64(minLen)
	}

	return lengthSim*0.4 + waveformSim*0.6
}

// optimize evicts the lowest-scoring active samples until both the
// sample-count budget and the byte budget (with extraBytes of headroom
// for an allocation about to be made) are satisfied, never evicting
// below keepMinimum active samples. force bypasses the "already under
// both budgets" early return the original performs.
func (m *Manager) optimize(force bool, extraBytes int) {
	if !force && len(m.active) < m.maxSamples && m.totalBytes+extraBytes <= m.memoryBudget {
		return
	}

	type scored struct {
		name  string
		score float64
	}
	scores := make([]scored, 0, len(m.active))
	for name := range m.active {
		usageScore := float64(m.usage[name])
		sizeScore := 1.0 / (float64(m.active[name].SizeBytes) + 1)
		similarityScore := float64(len(m.similarities[name]))
		scores = append(scores, scored{
			name:  name,
			score: usageScore*0.5 + sizeScore*0.3 + similarityScore*0.2,
		})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score < scores[j].score })

	for len(scores) > 0 && (len(m.active) >= m.maxSamples || m.totalBytes+extraBytes > m.memoryBudget) {
		if len(m.active) <= m.keepMinimum {
			break
		}
		victim := scores[0].name
		scores = scores[1:]
		m.remove(victim)
	}
}

func (m *Manager) remove(name string) {
	if sample, ok := m.active[name]; ok {
		m.totalBytes -= int(sample.SizeBytes)
		delete(m.active, name)
	}
	delete(m.similarities, name)
	for _, others := range m.similarities {
		delete(others, name)
	}
}

// ActiveCount returns the number of currently loaded samples.
func (m *Manager) ActiveCount() int {
	return len(m.active)
}

// TotalBytes returns the current total byte usage of active samples.
func (m *Manager) TotalBytes() int {
	return m.totalBytes
}
