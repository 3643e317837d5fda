package facematch

import (
	"image"
	"slices"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"golang.org/x/image/draw"
)

// CropFace cuts box out of img and resizes it to the matcher crop size.
// Returns nil if the box does not overlap the image.
func CropFace(img *image.Gray, box image.Rectangle) *image.Gray {
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return nil
	}
	sub, ok := img.SubImage(box).(*image.Gray)
	if !ok {
		return nil
	}
	return Normalize(sub)
}

// Normalize returns a CropSize x CropSize copy of crop anchored at the origin.
// Crops already in that shape are returned unchanged.
func Normalize(crop *image.Gray) *image.Gray {
	b := crop.Bounds()
	if b.Min == (image.Point{}) && b.Dx() == constants.CropSize && b.Dy() == constants.CropSize {
		return crop
	}
	dst := image.NewGray(image.Rect(0, 0, constants.CropSize, constants.CropSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), crop, b, draw.Src, nil)
	return dst
}

// ComputeIoU calculates Intersection over Union between two boxes.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ia := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// DedupeBoxes drops boxes that repeat a larger one: nested hits and boxes
// overlapping it by more than DuplicateBoxIoU. Survivors keep their input order.
func DedupeBoxes(boxes []image.Rectangle) []image.Rectangle {
	if len(boxes) < 2 {
		return boxes
	}
	area := func(r image.Rectangle) int { return r.Dx() * r.Dy() }
	order := make([]int, len(boxes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return area(boxes[b]) - area(boxes[a]) })

	keep := make([]bool, len(boxes))
	var kept []image.Rectangle
	for _, i := range order {
		box := boxes[i]
		dup := false
		for _, k := range kept {
			if box.In(k) || ComputeIoU(box, k) > constants.DuplicateBoxIoU {
				dup = true
				break
			}
		}
		if !dup {
			keep[i] = true
			kept = append(kept, box)
		}
	}

	out := make([]image.Rectangle, 0, len(kept))
	for i, box := range boxes {
		if keep[i] {
			out = append(out, box)
		}
	}
	return out
}
