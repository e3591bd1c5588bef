package detector

import "sort"

// nms greedily keeps the highest scoring face of every overlapping group.
// A face is dropped when its IoU with an already kept face exceeds
// iouThreshold. The input slice is not reordered; the result is sorted by
// score, highest first, with ties in input order.
func nms(faces []Face, iouThreshold float32) []Face {
	order := make([]int, len(faces))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return faces[order[a]].Score > faces[order[b]].Score
	})

	kept := make([]Face, 0, len(faces))
	for _, idx := range order {
		candidate := faces[idx]
		if overlapsAny(candidate.BoundingBox, kept, iouThreshold) {
			continue
		}
		kept = append(kept, candidate)
	}
	return kept
}

func overlapsAny(box BoundingBox, kept []Face, iouThreshold float32) bool {
	for _, k := range kept {
		if iou(box, k.BoundingBox) > iouThreshold {
			return true
		}
	}
	return false
}

// iou is the intersection area of a and b over their union; disjoint or
// degenerate boxes give 0
func iou(a, b BoundingBox) float32 {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
