package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// InputSize is the CLIP visual encoder input resolution (224x224).
const InputSize = 224

// Per-channel normalization constants used when CLIP was trained.
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// ToTensor resizes img to InputSize x InputSize and returns a normalized
// CHW float32 tensor of length 3*InputSize*InputSize, ready for the visual
// encoder. The shorter side is scaled to InputSize and the longer side is
// center-cropped.
func ToTensor(img image.Image) []float32 {
	resized := resizeCenterCrop(img, InputSize)

	tensor := make([]float32, 3*InputSize*InputSize)
	plane := InputSize * InputSize
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := y*InputSize + x
			tensor[i] = (float32(r)/65535.0 - clipMean[0]) / clipStd[0]
			tensor[plane+i] = (float32(g)/65535.0 - clipMean[1]) / clipStd[1]
			tensor[2*plane+i] = (float32(b)/65535.0 - clipMean[2]) / clipStd[2]
		}
	}
	return tensor
}

// resizeCenterCrop scales the shorter side of img to size and crops the
// center size x size region.
func resizeCenterCrop(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	scaledW, scaledH := size, size
	if w > h && h > 0 {
		scaledW = w * size / h
	} else if h > w && w > 0 {
		scaledH = h * size / w
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)

	offX := (scaledW - size) / 2
	offY := (scaledH - size) / 2
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), scaled, image.Pt(offX, offY), draw.Src)
	return out
}
