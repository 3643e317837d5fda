package facematch

import (
	"image"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"go.uber.org/zap"
)

type template struct {
	uid  int64
	hist Histogram
}

// Matcher is the process-wide identity model. Reads take a shared lock,
// training swaps or extends the model under the exclusive lock so a
// concurrent Predict never sees a partial update.
type Matcher struct {
	log *zap.Logger

	mu        sync.RWMutex
	templates []template
	names     map[int64]string
	graph     *hnsw.Graph[int64] // nil while the exact scan is cheap enough
}

func NewMatcher(log *zap.Logger) *Matcher {
	return &Matcher{
		log:   log,
		names: make(map[int64]string),
	}
}

func encodeAll(samples []TrainingSample) ([]template, map[int64]string) {
	out := make([]template, 0, len(samples))
	names := make(map[int64]string)
	for _, s := range samples {
		if s.Crop == nil {
			continue
		}
		out = append(out, template{uid: s.UID, hist: Encode(s.Crop)})
		if s.Name != "" {
			names[s.UID] = s.Name
		}
	}
	return out, names
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors)
	g.Distance = ChiSquare
	return g
}

// buildGraphLocked indexes templates[from:]. Caller holds the write lock.
func (m *Matcher) buildGraphLocked(from int) {
	if m.graph == nil {
		if len(m.templates) <= constants.ExactScanLimit {
			return
		}
		m.graph = newGraph()
		from = 0
	}
	for i := from; i < len(m.templates); i++ {
		m.graph.Add(hnsw.MakeNode(int64(i), []float32(m.templates[i].hist)))
	}
}

// TrainBulk replaces the model with samples and rebuilds the name lookup.
// An empty slice leaves an untrained model that predicts nothing.
func (m *Matcher) TrainBulk(samples []TrainingSample) {
	templates, names := encodeAll(samples)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = templates
	m.names = names
	m.graph = nil
	m.buildGraphLocked(0)

	m.log.Info("identity model trained",
		zap.Int("samples", len(templates)),
		zap.Int("identities", len(names)),
		zap.Bool("indexed", m.graph != nil))
}

// UpdateIncremental appends samples to the model without dropping earlier ones.
// On an untrained model it acts as the first training.
func (m *Matcher) UpdateIncremental(samples []TrainingSample) {
	templates, names := encodeAll(samples)
	if len(templates) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	from := len(m.templates)
	m.templates = append(m.templates, templates...)
	for uid, name := range names {
		m.names[uid] = name
	}
	m.buildGraphLocked(from)

	m.log.Debug("identity model updated",
		zap.Int("added", len(templates)),
		zap.Int("samples", len(m.templates)))
}

// Predict returns the nearest template for crop.
// The second return value is false when the model is untrained.
func (m *Matcher) Predict(crop *image.Gray) (Prediction, bool) {
	if crop == nil {
		return Prediction{}, false
	}
	query := Encode(crop)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.templates) == 0 {
		return Prediction{}, false
	}

	best := -1
	var bestDist float32
	consider := func(i int) {
		d := ChiSquare(query, m.templates[i].hist)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}

	if m.graph != nil {
		for _, n := range m.graph.Search([]float32(query), constants.HNSWCandidates) {
			consider(int(n.Key))
		}
	}
	if best < 0 {
		for i := range m.templates {
			consider(i)
		}
	}

	uid := m.templates[best].uid
	return Prediction{UID: uid, Name: m.names[uid], Distance: float64(bestDist)}, true
}

// Identify accepts the prediction only if it is closer than threshold and the uid has a name.
func (m *Matcher) Identify(crop *image.Gray, threshold float64) (Prediction, bool) {
	p, ok := m.Predict(crop)
	if !ok || p.Distance >= threshold || p.Name == "" {
		return p, false
	}
	return p, true
}

// name looks up the display name of uid.
func (m *Matcher) name(uid int64) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[uid]
	return name, ok
}

func (m *Matcher) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Samples:    len(m.templates),
		Identities: len(m.names),
		Indexed:    m.graph != nil,
	}
}
