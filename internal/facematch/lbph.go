package facematch

import (
	"image"
	"math"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// Histogram is a spatial LBP histogram: GridX*GridY cells of 256 normalized bins.
type Histogram []float32

const (
	lbpNeighbors = 8
	lbpRadius    = 1
	lbpBins      = 1 << lbpNeighbors
	lbpEpsilon   = 1.1920929e-07 // FLT_EPSILON
)

// HistogramLen is the length of every descriptor.
const HistogramLen = constants.LBPGridX * constants.LBPGridY * lbpBins

// Encode computes the LBPH descriptor of crop.
// The crop is resized to CropSize first if needed.
func Encode(crop *image.Gray) Histogram {
	crop = Normalize(crop)
	codes, w, h := circularLBP(crop)
	return spatialHistogram(codes, w, h)
}

// circularLBP computes the extended (circular, bilinear-interpolated) LBP
// codes of src. The result excludes a border of lbpRadius pixels.
func circularLBP(src *image.Gray) ([]uint8, int, int) {
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	w, h := cols-2*lbpRadius, rows-2*lbpRadius
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}
	px := func(row, col int) float64 {
		return float64(src.Pix[row*src.Stride+col])
	}

	codes := make([]uint8, w*h)
	for n := range lbpNeighbors {
		angle := 2 * math.Pi * float64(n) / lbpNeighbors
		x := lbpRadius * math.Cos(angle)
		y := -lbpRadius * math.Sin(angle)
		fx, fy := int(math.Floor(x)), int(math.Floor(y))
		cx, cy := int(math.Ceil(x)), int(math.Ceil(y))
		tx, ty := x-float64(fx), y-float64(fy)
		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for i := lbpRadius; i < rows-lbpRadius; i++ {
			for j := lbpRadius; j < cols-lbpRadius; j++ {
				t := w1*px(i+fy, j+fx) + w2*px(i+fy, j+cx) + w3*px(i+cy, j+fx) + w4*px(i+cy, j+cx)
				c := px(i, j)
				if t > c || math.Abs(t-c) < lbpEpsilon {
					codes[(i-lbpRadius)*w+(j-lbpRadius)] |= 1 << n
				}
			}
		}
	}
	return codes, w, h
}

func spatialHistogram(codes []uint8, w, h int) Histogram {
	hist := make(Histogram, HistogramLen)
	cellW := w / constants.LBPGridX
	cellH := h / constants.LBPGridY
	if cellW == 0 || cellH == 0 {
		return hist
	}
	norm := float32(cellW * cellH)

	cell := 0
	for gy := range constants.LBPGridY {
		for gx := range constants.LBPGridX {
			bins := hist[cell*lbpBins : (cell+1)*lbpBins]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				row := codes[y*w : y*w+w]
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					bins[row[x]]++
				}
			}
			for i := range bins {
				bins[i] /= norm
			}
			cell++
		}
	}
	return hist
}

// ChiSquare is the alternative chi-square distance sum(2*(a-b)^2/(a+b)).
// Identical histograms score 0; each disjoint cell adds up to 4.
func ChiSquare(a, b []float32) float32 {
	var d float32
	for i := range min(len(a), len(b)) {
		sum := a[i] + b[i]
		if sum > lbpEpsilon {
			diff := a[i] - b[i]
			d += 2 * diff * diff / sum
		}
	}
	return d
}
