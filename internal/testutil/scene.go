// Package testutil draws synthetic ground scenes for pipeline tests.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"math/rand"

	"gocv.io/x/gocv"
)

// Frame size cut out of a scene, and the border around it that shifts may use.
const (
	Width  = 480
	Height = 360
	Margin = 20
)

// Scene draws a textured grayscale canvas with random blobs and boxes. The
// canvas is (Width+2*Margin) x (Height+2*Margin).
func Scene(seed int64) (gocv.Mat, error) {
	canvas := gocv.Zeros(Height+2*Margin, Width+2*Margin, gocv.MatTypeCV8U)
	defer canvas.Close()

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < 220; i++ {
		v := uint8(40 + rng.Intn(215))
		c := color.RGBA{R: v, G: v, B: v, A: 255}
		x, y := rng.Intn(canvas.Cols()), rng.Intn(canvas.Rows())
		var err error
		if i%2 == 0 {
			err = gocv.Circle(&canvas, image.Pt(x, y), 3+rng.Intn(14), c, -1)
		} else {
			w, h := 4+rng.Intn(30), 4+rng.Intn(30)
			err = gocv.Rectangle(&canvas, image.Rect(x, y, x+w, y+h), c, -1)
		}
		if err != nil {
			return gocv.NewMat(), err
		}
	}

	blurred := gocv.NewMat()
	if err := gocv.GaussianBlur(canvas, &blurred, image.Pt(3, 3), 0, 0, gocv.BorderDefault); err != nil {
		blurred.Close()
		return gocv.NewMat(), err
	}
	return blurred, nil
}

// Crop copies the Width x Height window whose top-left corner is (x, y).
func Crop(scene gocv.Mat, x, y int) gocv.Mat {
	region := scene.Region(image.Rect(x, y, x+Width, y+Height))
	defer region.Close()
	return region.Clone()
}

// Encode compresses img with the codec for ext (".png", ".jpg").
func Encode(img gocv.Mat, ext gocv.FileExt) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// ShiftedPair encodes two frames of one scene, the second moved dx pixels
// along the ground track.
func ShiftedPair(seed int64, dx int) (first, second []byte, err error) {
	if dx < 0 || dx > 2*Margin {
		return nil, nil, fmt.Errorf("shift %d outside [0, %d]", dx, 2*Margin)
	}
	scene, err := Scene(seed)
	if err != nil {
		return nil, nil, err
	}
	defer scene.Close()

	a := Crop(scene, dx, Margin)
	defer a.Close()
	b := Crop(scene, 0, Margin)
	defer b.Close()

	if first, err = Encode(a, gocv.PNGFileExt); err != nil {
		return nil, nil, err
	}
	if second, err = Encode(b, gocv.PNGFileExt); err != nil {
		return nil, nil, err
	}
	return first, second, nil
}
