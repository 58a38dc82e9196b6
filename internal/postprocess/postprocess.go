// Package postprocess implements the confidence filter, bbox
// normalization/clipping, greedy NMS, and detection cap that make up step 5
// of the inference handler's pipeline (§4.2 step 5, SPEC_FULL "Greedy NMS
// pass").
package postprocess

import "github.com/vasplatform/modelcontainer/internal/wire"

// RawDetection is one detection as emitted by a model runtime, before
// filtering or normalization. BBox is in the model's input pixel space
// (ModelWidth x ModelHeight), not yet normalized.
type RawDetection struct {
	ClassID    int
	ClassName  string
	Confidence float64
	BBox       [4]float64 // x_min, y_min, x_max, y_max, in model input pixels
	TrackID    *int64
}

// Options configures one postprocess pass.
type Options struct {
	ConfidenceThreshold float64
	ModelWidth          int
	ModelHeight         int
	// ApplyNMS runs greedy NMS using NMSIoUThreshold. Set only when the
	// model's own post-processing does not already de-duplicate boxes
	// (§4.2 step 5).
	ApplyNMS       bool
	NMSIoUThreshold float64
	MaxDetections   int
}

// Process filters raw detections by confidence, normalizes and clips boxes
// to [0,1], optionally runs greedy NMS, and caps the result at
// MaxDetections, preserving input order throughout (NMS only removes
// detections; the survivors keep their input order).
func Process(raw []RawDetection, opts Options) []wire.Detection {
	filtered := make([]RawDetection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence >= opts.ConfidenceThreshold {
			filtered = append(filtered, normalizeAndClip(d, opts.ModelWidth, opts.ModelHeight))
		}
	}

	if opts.ApplyNMS {
		filtered = greedyNMS(filtered, opts.NMSIoUThreshold)
	}

	max := opts.MaxDetections
	if max <= 0 || max > len(filtered) {
		max = len(filtered)
	}
	filtered = filtered[:max]

	out := make([]wire.Detection, len(filtered))
	for i, d := range filtered {
		out[i] = wire.Detection{
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			BBox:       d.BBox,
			TrackID:    d.TrackID,
		}
	}
	return out
}

func normalizeAndClip(d RawDetection, modelWidth, modelHeight int) RawDetection {
	if modelWidth <= 0 || modelHeight <= 0 {
		return d
	}
	w := float64(modelWidth)
	h := float64(modelHeight)

	xMin := clip01(d.BBox[0] / w)
	yMin := clip01(d.BBox[1] / h)
	xMax := clip01(d.BBox[2] / w)
	yMax := clip01(d.BBox[3] / h)

	if xMin > xMax {
		xMin, xMax = xMax, xMin
	}
	if yMin > yMax {
		yMin, yMax = yMax, yMin
	}

	d.BBox = [4]float64{xMin, yMin, xMax, yMax}
	return d
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// greedyNMS runs per-class greedy non-maximum suppression: boxes are
// considered highest-confidence first; a box is kept unless it overlaps a
// previously kept box of the same class with IoU above threshold.
func greedyNMS(detections []RawDetection, iouThreshold float64) []RawDetection {
	order := make([]int, len(detections))
	for i := range order {
		order[i] = i
	}
	// Stable sort by descending confidence, preserving original relative
	// order among ties so output order is deterministic.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && detections[order[j]].Confidence > detections[order[j-1]].Confidence; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	kept := make([]int, 0, len(detections))
	for _, idx := range order {
		suppressed := false
		for _, keptIdx := range kept {
			if detections[idx].ClassID != detections[keptIdx].ClassID {
				continue
			}
			if iou(detections[idx].BBox, detections[keptIdx].BBox) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, idx)
		}
	}

	// Restore original input order among the surviving detections.
	keptSet := make(map[int]bool, len(kept))
	for _, idx := range kept {
		keptSet[idx] = true
	}
	result := make([]RawDetection, 0, len(kept))
	for i, d := range detections {
		if keptSet[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float64) float64 {
	xMin := max(a[0], b[0])
	yMin := max(a[1], b[1])
	xMax := min(a[2], b[2])
	yMax := min(a[3], b[3])

	interW := max(0, xMax-xMin)
	interH := max(0, yMax-yMin)
	intersection := interW * interH

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
