package estimation

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Keypoint is a detected feature location with its appearance descriptor.
type Keypoint struct {
	X, Y       float64
	Descriptor []float32
}

// Features holds the keypoints of one image and the descriptor matrix the
// OpenCV matchers consume. Close releases the matrix.
type Features struct {
	Keypoints   []Keypoint
	descriptors gocv.Mat
}

// Len returns the number of keypoints.
func (f *Features) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Keypoints)
}

// Descriptors returns the descriptor vectors in keypoint order.
func (f *Features) Descriptors() [][]float32 {
	out := make([][]float32, len(f.Keypoints))
	for i := range f.Keypoints {
		out[i] = f.Keypoints[i].Descriptor
	}
	return out
}

func (f *Features) Close() error {
	if f == nil {
		return nil
	}
	return f.descriptors.Close()
}

// DetectAndDescribe runs SIFT on img. Color images are converted to grayscale first.
// An image without detectable features yields an empty, non-nil Features.
func DetectAndDescribe(img gocv.Mat) (*Features, error) {
	gray, err := toGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	sift := gocv.NewSIFT()
	defer sift.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := sift.DetectAndCompute(gray, mask)
	features := &Features{descriptors: desc}
	if len(kps) == 0 || desc.Empty() {
		return features, nil
	}

	if desc.Rows() != len(kps) {
		desc.Close()
		return nil, fmt.Errorf("descriptor rows %d do not match %d keypoints", desc.Rows(), len(kps))
	}

	data, err := desc.DataPtrFloat32()
	if err != nil {
		desc.Close()
		return nil, fmt.Errorf("failed to read descriptors: %w", err)
	}

	dim := desc.Cols()
	features.Keypoints = make([]Keypoint, len(kps))
	for i, kp := range kps {
		descriptor := make([]float32, dim)
		copy(descriptor, data[i*dim:(i+1)*dim])
		features.Keypoints[i] = Keypoint{X: kp.X, Y: kp.Y, Descriptor: descriptor}
	}
	return features, nil
}
