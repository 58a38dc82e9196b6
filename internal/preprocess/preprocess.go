// Package preprocess implements C2: NV12 -> RGB -> resize -> normalize ->
// CHW, producing the exact tensor shape a model's descriptor declares
// (§4.4).
package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"

	"github.com/vasplatform/modelcontainer/internal/interfaces"
)

// BT.601 YUV -> RGB coefficients (§4.4 step a).
const (
	coeffVToR = 1.402
	coeffUToG = -0.344136
	coeffVToG = -0.714136
	coeffUToB = 1.772
)

// ToTensor converts one NV12 frame of (width, height) into a batch-of-one,
// channels-first float32 tensor of spatial size (targetWidth, targetHeight).
func ToTensor(nv12 []byte, width, height, targetWidth, targetHeight int) (*interfaces.Tensor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("preprocess: invalid source dimensions %dx%d", width, height)
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, fmt.Errorf("preprocess: invalid target dimensions %dx%d", targetWidth, targetHeight)
	}
	lumaSize := width * height
	chromaSize := lumaSize / 2
	if len(nv12) < lumaSize+chromaSize {
		return nil, fmt.Errorf("preprocess: frame buffer too small: got %d bytes, need %d", len(nv12), lumaSize+chromaSize)
	}

	rgb := nv12ToRGBA(nv12, width, height)
	resized := transform.Resize(rgb, targetWidth, targetHeight, transform.Linear)

	return chwNormalize(resized, targetWidth, targetHeight), nil
}

// nv12ToRGBA converts one NV12 frame to an RGBA image using BT.601
// coefficients, with UV centered by subtracting 128 and output clipped to
// [0,255] (§4.4 step a).
func nv12ToRGBA(nv12 []byte, width, height int) *image.RGBA {
	yPlane := nv12[:width*height]
	uvPlane := nv12[width*height:]

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for row := 0; row < height; row++ {
		uvRow := row / 2
		for col := 0; col < width; col++ {
			y := float64(yPlane[row*width+col])

			uvCol := (col / 2) * 2
			uvIndex := uvRow*width + uvCol
			u := float64(uvPlane[uvIndex]) - 128
			v := float64(uvPlane[uvIndex+1]) - 128

			r := clip255(y + coeffVToR*v)
			g := clip255(y + coeffUToG*u + coeffVToG*v)
			b := clip255(y + coeffUToB*u)

			img.Set(col, row, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

func clip255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// chwNormalize scales pixel values to [0,1], reorders to channels-first
// (C×H×W), and prepends a batch dimension of 1 (§4.4 steps c-e).
func chwNormalize(img *image.RGBA, width, height int) *interfaces.Tensor {
	const channels = 3
	data := make([]float32, channels*height*width)
	planeSize := height * width

	bounds := img.Bounds()
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			r, g, b, _ := img.At(bounds.Min.X+col, bounds.Min.Y+row).RGBA()
			idx := row*width + col
			data[0*planeSize+idx] = float32(r>>8) / 255.0
			data[1*planeSize+idx] = float32(g>>8) / 255.0
			data[2*planeSize+idx] = float32(b>>8) / 255.0
		}
	}

	return &interfaces.Tensor{
		Data:  data,
		Shape: []int{1, channels, height, width},
	}
}
