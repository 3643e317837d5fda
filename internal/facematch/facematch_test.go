package facematch

import (
	"image"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"go.uber.org/zap"
)

// noiseFace returns a reproducible textured 100x100 crop.
func noiseFace(seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, 0))
	img := image.NewGray(image.Rect(0, 0, constants.CropSize, constants.CropSize))
	for i := range img.Pix {
		img.Pix[i] = uint8(20 + r.IntN(200))
	}
	return img
}

// perturb changes a fraction of pixels of img.
func perturb(img *image.Gray, seed uint64, fraction float64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, 1))
	out := image.NewGray(img.Bounds())
	copy(out.Pix, img.Pix)
	for i := range out.Pix {
		if r.Float64() < fraction {
			out.Pix[i] = uint8(20 + r.IntN(200))
		}
	}
	return out
}

func brighten(img *image.Gray, delta uint8) *image.Gray {
	out := image.NewGray(img.Bounds())
	for i, v := range img.Pix {
		out.Pix[i] = v + delta
	}
	return out
}

func TestEncode_Shape(t *testing.T) {
	h := Encode(noiseFace(1))
	if len(h) != HistogramLen {
		t.Fatalf("expected %d bins, got %d", HistogramLen, len(h))
	}

	// Each cell is normalized to sum 1.
	for cell := range constants.LBPGridX * constants.LBPGridY {
		var sum float64
		for _, v := range h[cell*256 : (cell+1)*256] {
			sum += float64(v)
		}
		if math.Abs(sum-1) > 0.001 {
			t.Fatalf("cell %d sums to %v", cell, sum)
		}
	}
}

func TestEncode_ResizesArbitraryCrops(t *testing.T) {
	img := image.NewGray(image.Rect(10, 10, 250, 230))
	h := Encode(img)
	if len(h) != HistogramLen {
		t.Errorf("expected %d bins, got %d", HistogramLen, len(h))
	}
}

func TestChiSquare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"identical", []float32{0.5, 0.5}, []float32{0.5, 0.5}, 0},
		{"disjoint", []float32{1, 0}, []float32{0, 1}, 4},
		{"both empty bins", []float32{0, 0}, []float32{0, 0}, 0},
		{"partial", []float32{0.75, 0.25}, []float32{0.25, 0.75}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChiSquare(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 0.0001 {
				t.Errorf("ChiSquare(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestChiSquare_BrightnessInvariant(t *testing.T) {
	face := noiseFace(42)
	d := ChiSquare(Encode(face), Encode(brighten(face, 30)))
	if d > 1 {
		t.Errorf("expected near-zero distance for brightness shift, got %v", d)
	}
}

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     image.Rectangle
		expected float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1},
		{"no overlap", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0},
		{"partial overlap", image.Rect(0, 0, 10, 10), image.Rect(5, 5, 15, 15), 25.0 / 175.0},
		{"one inside other", image.Rect(0, 0, 20, 20), image.Rect(5, 5, 15, 15), 100.0 / 400.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestDedupeBoxes(t *testing.T) {
	tests := []struct {
		name  string
		boxes []image.Rectangle
		want  []image.Rectangle
	}{
		{"empty", nil, nil},
		{"single", []image.Rectangle{image.Rect(0, 0, 10, 10)}, []image.Rectangle{image.Rect(0, 0, 10, 10)}},
		{
			"nested hit dropped",
			[]image.Rectangle{image.Rect(5, 5, 15, 15), image.Rect(0, 0, 40, 40)},
			[]image.Rectangle{image.Rect(0, 0, 40, 40)},
		},
		{
			"heavy overlap keeps larger",
			[]image.Rectangle{image.Rect(0, 0, 100, 100), image.Rect(10, 10, 105, 105)},
			[]image.Rectangle{image.Rect(0, 0, 100, 100)},
		},
		{
			"separate faces keep order",
			[]image.Rectangle{image.Rect(200, 0, 250, 50), image.Rect(0, 0, 100, 100)},
			[]image.Rectangle{image.Rect(200, 0, 250, 50), image.Rect(0, 0, 100, 100)},
		},
		{
			"light overlap kept",
			[]image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(5, 5, 15, 15)},
			[]image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(5, 5, 15, 15)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeBoxes(tt.boxes)
			if len(got) != len(tt.want) {
				t.Fatalf("DedupeBoxes(%v) = %v, want %v", tt.boxes, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("DedupeBoxes(%v) = %v, want %v", tt.boxes, got, tt.want)
					break
				}
			}
		})
	}
}

func TestCropFace(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 640, 480))

	crop := CropFace(img, image.Rect(100, 100, 300, 300))
	if crop == nil {
		t.Fatal("expected crop")
	}
	if crop.Bounds() != image.Rect(0, 0, constants.CropSize, constants.CropSize) {
		t.Errorf("unexpected crop bounds %v", crop.Bounds())
	}

	if CropFace(img, image.Rect(700, 500, 800, 600)) != nil {
		t.Error("expected nil crop for box outside the image")
	}
}

func TestMatcher_UntrainedPredictsNothing(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	m.TrainBulk(nil)

	if _, ok := m.Predict(noiseFace(1)); ok {
		t.Error("expected no prediction from an untrained model")
	}
	if _, ok := m.Identify(noiseFace(1), constants.DefaultDistanceThreshold); ok {
		t.Error("expected unknown from an untrained model")
	}
	if _, ok := m.Predict(nil); ok {
		t.Error("expected no prediction for nil crop")
	}
}

func TestMatcher_TrainBulkAndIdentify(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	alice, bob := noiseFace(7), noiseFace(8)
	m.TrainBulk([]TrainingSample{
		{UID: 7, Name: "Alice", Crop: alice},
		{UID: 8, Name: "Bob", Crop: bob},
	})

	p, ok := m.Identify(brighten(alice, 10), constants.DefaultDistanceThreshold)
	if !ok {
		t.Fatalf("expected Alice to be identified, got %+v", p)
	}
	if p.UID != 7 || p.Name != "Alice" {
		t.Errorf("expected uid 7 Alice, got %+v", p)
	}

	p, ok = m.Predict(bob)
	if !ok || p.UID != 8 || p.Distance != 0 {
		t.Errorf("expected exact match for Bob, got %+v", p)
	}

	stats := m.Stats()
	if stats.Samples != 2 || stats.Identities != 2 || stats.Indexed {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMatcher_IdentifyRejects(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	m.TrainBulk([]TrainingSample{{UID: 1, Name: "Alice", Crop: noiseFace(1)}})

	// A zero threshold rejects even an exact match.
	if _, ok := m.Identify(noiseFace(1), 0); ok {
		t.Error("expected rejection with zero threshold")
	}

	// A sample without a name never identifies.
	m.UpdateIncremental([]TrainingSample{{UID: 2, Crop: noiseFace(2)}})
	p, ok := m.Identify(noiseFace(2), constants.DefaultDistanceThreshold)
	if ok {
		t.Errorf("expected nameless uid to stay unknown, got %+v", p)
	}
	if p.UID != 2 {
		t.Errorf("expected nearest uid 2, got %d", p.UID)
	}
}

func TestMatcher_UpdateIncrementalKeepsEarlierSamples(t *testing.T) {
	m := NewMatcher(zap.NewNop())

	// First update on an untrained model acts as training.
	m.UpdateIncremental([]TrainingSample{{UID: 1, Name: "Alice", Crop: noiseFace(1)}})
	m.UpdateIncremental([]TrainingSample{{UID: 2, Name: "Bob", Crop: noiseFace(2)}})

	for uid, seed := range map[int64]uint64{1: 1, 2: 2} {
		p, ok := m.Identify(noiseFace(seed), constants.DefaultDistanceThreshold)
		if !ok || p.UID != uid {
			t.Errorf("expected uid %d, got %+v (ok=%v)", uid, p, ok)
		}
	}

	if name, ok := m.name(2); !ok || name != "Bob" {
		t.Errorf("expected Bob in lookup, got %q", name)
	}

	m.UpdateIncremental(nil)
	if m.Stats().Samples != 2 {
		t.Errorf("empty update changed the model: %+v", m.Stats())
	}
}

func TestMatcher_TrainBulkReplaces(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	m.TrainBulk([]TrainingSample{{UID: 1, Name: "Alice", Crop: noiseFace(1)}})
	m.TrainBulk([]TrainingSample{{UID: 2, Name: "Bob", Crop: noiseFace(2)}})

	if _, ok := m.name(1); ok {
		t.Error("expected Alice to be gone after retrain")
	}
	if m.Stats().Samples != 1 {
		t.Errorf("expected 1 sample, got %d", m.Stats().Samples)
	}
}

func TestMatcher_ConcurrentPredictAndUpdate(t *testing.T) {
	m := NewMatcher(zap.NewNop())
	m.TrainBulk([]TrainingSample{{UID: 1, Name: "Alice", Crop: noiseFace(1)}})
	query := noiseFace(1)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, ok := m.Predict(query); !ok {
				t.Error("expected prediction")
			}
		}()
		go func(i int) {
			defer wg.Done()
			m.UpdateIncremental([]TrainingSample{{UID: int64(i + 10), Name: "x", Crop: noiseFace(uint64(i + 10))}})
		}(i)
	}
	wg.Wait()

	if m.Stats().Samples != 9 {
		t.Errorf("expected 9 samples, got %d", m.Stats().Samples)
	}
}

func TestMatcher_IndexedAboveExactScanLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("builds an HNSW graph over hundreds of descriptors")
	}

	const identities = 20
	bases := make([]*image.Gray, identities)
	for i := range bases {
		bases[i] = noiseFace(uint64(1000 + i))
	}

	var samples []TrainingSample
	for i := range constants.ExactScanLimit + 8 {
		uid := i % identities
		samples = append(samples, TrainingSample{
			UID:  int64(uid),
			Name: "person",
			Crop: perturb(bases[uid], uint64(i), 0.05),
		})
	}

	m := NewMatcher(zap.NewNop())
	m.TrainBulk(samples)
	if !m.Stats().Indexed {
		t.Fatal("expected HNSW index above the exact scan limit")
	}

	correct := 0
	for uid := range identities {
		p, ok := m.Predict(bases[uid])
		if ok && p.UID == int64(uid) {
			correct++
		}
	}
	if correct < identities*8/10 {
		t.Errorf("expected at least 80%% recall, got %d/%d", correct, identities)
	}
}
