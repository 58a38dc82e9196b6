package postprocess

import "testing"

func TestProcessFiltersByConfidence(t *testing.T) {
	raw := []RawDetection{
		{ClassID: 0, Confidence: 0.9, BBox: [4]float64{0, 0, 10, 10}},
		{ClassID: 0, Confidence: 0.1, BBox: [4]float64{0, 0, 10, 10}},
	}
	out := Process(raw, Options{ConfidenceThreshold: 0.5, ModelWidth: 100, ModelHeight: 100, MaxDetections: 1000})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Confidence != 0.9 {
		t.Errorf("Confidence = %f, want 0.9", out[0].Confidence)
	}
}

func TestProcessThresholdZeroKeepsAll(t *testing.T) {
	raw := []RawDetection{
		{Confidence: 0.01, BBox: [4]float64{0, 0, 1, 1}},
		{Confidence: 0.99, BBox: [4]float64{0, 0, 1, 1}},
	}
	out := Process(raw, Options{ConfidenceThreshold: 0, ModelWidth: 10, ModelHeight: 10, MaxDetections: 1000})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestProcessThresholdOneKeepsOnlyPerfect(t *testing.T) {
	raw := []RawDetection{
		{Confidence: 0.999, BBox: [4]float64{0, 0, 1, 1}},
		{Confidence: 1.0, BBox: [4]float64{0, 0, 1, 1}},
	}
	out := Process(raw, Options{ConfidenceThreshold: 1.0, ModelWidth: 10, ModelHeight: 10, MaxDetections: 1000})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
}

func TestProcessNormalizesAndClipsBBox(t *testing.T) {
	raw := []RawDetection{
		{Confidence: 0.9, BBox: [4]float64{-10, -10, 200, 150}},
	}
	out := Process(raw, Options{ConfidenceThreshold: 0, ModelWidth: 100, ModelHeight: 100, MaxDetections: 10})
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	b := out[0].BBox
	for i, v := range b {
		if v < 0 || v > 1 {
			t.Errorf("BBox[%d] = %f, out of [0,1]", i, v)
		}
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 1 || b[3] != 1 {
		t.Errorf("BBox = %v, want [0,0,1,1] after clipping", b)
	}
}

func TestProcessCapsAtMaxDetections(t *testing.T) {
	raw := make([]RawDetection, 10)
	for i := range raw {
		raw[i] = RawDetection{Confidence: 0.9, BBox: [4]float64{0, 0, 1, 1}}
	}
	out := Process(raw, Options{ConfidenceThreshold: 0, ModelWidth: 10, ModelHeight: 10, MaxDetections: 3})
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
}

func TestProcessPreservesOrderWithoutNMS(t *testing.T) {
	raw := []RawDetection{
		{ClassID: 1, Confidence: 0.5, BBox: [4]float64{0, 0, 1, 1}},
		{ClassID: 2, Confidence: 0.9, BBox: [4]float64{0, 0, 1, 1}},
		{ClassID: 3, Confidence: 0.7, BBox: [4]float64{0, 0, 1, 1}},
	}
	out := Process(raw, Options{ConfidenceThreshold: 0, ModelWidth: 1, ModelHeight: 1, MaxDetections: 10})
	if len(out) != 3 || out[0].ClassID != 1 || out[1].ClassID != 2 || out[2].ClassID != 3 {
		t.Fatalf("order not preserved: %+v", out)
	}
}

func TestProcessGreedyNMSSuppressesOverlap(t *testing.T) {
	raw := []RawDetection{
		{ClassID: 0, Confidence: 0.95, BBox: [4]float64{0, 0, 50, 50}},
		{ClassID: 0, Confidence: 0.80, BBox: [4]float64{2, 2, 52, 52}}, // heavy overlap, should be suppressed
		{ClassID: 0, Confidence: 0.70, BBox: [4]float64{80, 80, 99, 99}}, // disjoint, should survive
	}
	out := Process(raw, Options{
		ConfidenceThreshold: 0,
		ModelWidth:          100,
		ModelHeight:         100,
		ApplyNMS:            true,
		NMSIoUThreshold:     0.5,
		MaxDetections:       10,
	})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 after NMS, got %+v", len(out), out)
	}
}

func TestProcessGreedyNMSKeepsDifferentClasses(t *testing.T) {
	raw := []RawDetection{
		{ClassID: 0, Confidence: 0.95, BBox: [4]float64{0, 0, 50, 50}},
		{ClassID: 1, Confidence: 0.90, BBox: [4]float64{0, 0, 50, 50}}, // same box, different class
	}
	out := Process(raw, Options{
		ConfidenceThreshold: 0,
		ModelWidth:          100,
		ModelHeight:         100,
		ApplyNMS:            true,
		NMSIoUThreshold:     0.5,
		MaxDetections:       10,
	})
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (different classes never suppress each other)", len(out))
	}
}

func TestIoU(t *testing.T) {
	a := [4]float64{0, 0, 10, 10}
	b := [4]float64{0, 0, 10, 10}
	if got := iou(a, b); got != 1.0 {
		t.Errorf("iou(identical) = %f, want 1.0", got)
	}

	c := [4]float64{20, 20, 30, 30}
	if got := iou(a, c); got != 0 {
		t.Errorf("iou(disjoint) = %f, want 0", got)
	}
}
