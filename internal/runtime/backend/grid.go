package backend

import (
	"fmt"
	"hash/fnv"

	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// detectionStride is the number of float32 values packed per raw detection
// in a runtime's output tensor: class_id, confidence, x_min, y_min, x_max,
// y_max, all in model input pixel space (postprocess normalizes from there).
const detectionStride = 6

const gridCells = 4 // 4x4 grid over the model input

// GridDetector is a deterministic, weight-free stand-in for a loaded
// detection model: it buckets the input tensor into a grid, scores each
// cell by mean channel intensity, and reports a bounding box per
// above-floor cell. Seed perturbs scoring so distinct weights paths produce
// distinct (but still deterministic) outputs.
type GridDetector struct {
	Seed uint32
}

// Detect scores a CHW tensor and packs results into a flat
// [N, detectionStride] output tensor.
func (g GridDetector) Detect(input *interfaces.Tensor) (*interfaces.Tensor, error) {
	if input == nil || len(input.Shape) != 4 {
		return nil, fmt.Errorf("griddetector: expected a 4-d [1,C,H,W] tensor, got shape %v", shapeOf(input))
	}
	channels, height, width := input.Shape[1], input.Shape[2], input.Shape[3]
	if channels <= 0 || height <= 0 || width <= 0 {
		return nil, fmt.Errorf("griddetector: degenerate shape %v", input.Shape)
	}
	planeSize := height * width

	cellH := height / gridCells
	cellW := width / gridCells
	if cellH == 0 || cellW == 0 {
		return &interfaces.Tensor{Shape: []int{0, detectionStride}}, nil
	}

	var out []float32
	for row := 0; row < gridCells; row++ {
		for col := 0; col < gridCells; col++ {
			yStart, yEnd := row*cellH, (row+1)*cellH
			xStart, xEnd := col*cellW, (col+1)*cellW
			if row == gridCells-1 {
				yEnd = height
			}
			if col == gridCells-1 {
				xEnd = width
			}

			var sum float64
			var count int
			for c := 0; c < channels; c++ {
				base := c * planeSize
				for y := yStart; y < yEnd; y++ {
					for x := xStart; x < xEnd; x++ {
						sum += float64(input.Data[base+y*width+x])
						count++
					}
				}
			}
			if count == 0 {
				continue
			}
			mean := sum / float64(count)
			confidence := perturb(mean, g.Seed, row, col)
			if confidence < 0.05 {
				continue
			}

			classID := (row*gridCells + col + int(g.Seed)) % 4
			out = append(out,
				float32(classID),
				float32(confidence),
				float32(xStart), float32(yStart),
				float32(xEnd), float32(yEnd),
			)
		}
	}

	n := len(out) / detectionStride
	return &interfaces.Tensor{Data: out, Shape: []int{n, detectionStride}}, nil
}

// perturb folds the seed into the cell's mean intensity to get a
// reproducible pseudo-confidence in roughly [0,1].
func perturb(mean float64, seed uint32, row, col int) float64 {
	jitter := float64((seed+uint32(row*7+col*13))%97) / 97.0
	v := 0.7*mean + 0.3*jitter
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

func fnvSeed(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func shapeOf(t *interfaces.Tensor) []int {
	if t == nil {
		return nil
	}
	return t.Shape
}
