package estimation

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Decode turns encoded image bytes (JPEG, PNG, ...) into a grayscale Mat.
// The caller owns the returned Mat.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), newImageError("", ErrEmptyImage, nil)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return mat, newImageError("", ErrDecodeFailure, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), newImageError("", ErrDecodeFailure, nil)
	}
	return mat, nil
}

// Load reads an image file as grayscale, optionally resizing it when size is non-zero.
func Load(path string, size image.Point) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), newImageError(path, ErrDecodeFailure, nil)
	}
	if size.X <= 0 || size.Y <= 0 {
		return mat, nil
	}

	resized := gocv.NewMat()
	if err := gocv.Resize(mat, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		mat.Close()
		resized.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize %s: %w", path, err)
	}
	mat.Close()
	return resized, nil
}

// toGray returns a single-channel copy of src. The caller owns the result.
func toGray(src gocv.Mat) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), newImageError("", ErrEmptyImage, nil)
	}

	var code gocv.ColorConversionCode
	switch src.Channels() {
	case 1:
		return src.Clone(), nil
	case 3:
		code = gocv.ColorBGRToGray
	case 4:
		code = gocv.ColorBGRAToGray
	default:
		return gocv.NewMat(), newImageError("", ErrDecodeFailure, fmt.Errorf("unsupported channel count %d", src.Channels()))
	}

	gray := gocv.NewMat()
	if err := gocv.CvtColor(src, &gray, code); err != nil {
		gray.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert image to grayscale: %w", err)
	}
	return gray, nil
}
