// Package yolo decodes raw YOLOv8 detection heads into center-form boxes.
package yolo

import "sort"

type Box struct {
	CX, CY, W, H float64
	ClassID      int
	Score        float64
}

// Decode reads a channel-major [4+classes, anchors] output. Coordinates are
// scaled by sx, sy back to source image pixels.
func Decode(out []float32, channels, anchors int, conf, sx, sy float64) []Box {
	if channels <= 4 || anchors <= 0 || len(out) < channels*anchors {
		return nil
	}
	var boxes []Box
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < channels; c++ {
			if s := out[c*anchors+i]; s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 || float64(bestScore) < conf {
			continue
		}
		boxes = append(boxes, Box{
			CX:      float64(out[i]) * sx,
			CY:      float64(out[anchors+i]) * sy,
			W:       float64(out[2*anchors+i]) * sx,
			H:       float64(out[3*anchors+i]) * sy,
			ClassID: best,
			Score:   float64(bestScore),
		})
	}
	return boxes
}

// NMS is class-aware greedy suppression; survivors are returned by descending score.
func NMS(boxes []Box, iou float64) []Box {
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]Box, 0, len(sorted))
	for _, b := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == b.ClassID && IoU(k, b) > iou {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

func IoU(a, b Box) float64 {
	ax0, ay0, ax1, ay1 := a.CX-a.W/2, a.CY-a.H/2, a.CX+a.W/2, a.CY+a.H/2
	bx0, by0, bx1, by1 := b.CX-b.W/2, b.CY-b.H/2, b.CX+b.W/2, b.CY+b.H/2
	iw := min(ax1, bx1) - max(ax0, bx0)
	ih := min(ay1, by1) - max(ay0, by0)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
