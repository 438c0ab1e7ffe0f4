package estimation

import (
	"gocv.io/x/gocv"
)

// RANSAC parameters for the homography diagnostic.
const (
	ransacThreshold  = 3.0 // max reprojection error, in pixels, for an inlier
	ransacMaxIter    = 2000
	ransacConfidence = 0.995
)

// HomographyCheck summarises how well a single projective transform explains
// the kept matches. A low inlier ratio hints at rotation between frames or at
// wrong matches. It is informational only.
type HomographyCheck struct {
	Inliers     int        `json:"inliers"`
	Total       int        `json:"total"`
	InlierRatio float64    `json:"inlierRatio"`
	Matrix      [9]float64 `json:"matrix"`
}

// CheckHomography fits a RANSAC homography mapping A-side to B-side
// coordinates. It returns nil when fewer than four pairs are available or
// OpenCV cannot find a transform.
func CheckHomography(pairs []CoordinatePair) *HomographyCheck {
	if len(pairs) < 4 {
		return nil
	}

	src := gocv.NewMatWithSize(len(pairs), 2, gocv.MatTypeCV32F)
	defer src.Close()
	dst := gocv.NewMatWithSize(len(pairs), 2, gocv.MatTypeCV32F)
	defer dst.Close()
	for i, p := range pairs {
		src.SetFloatAt(i, 0, float32(p.X1))
		src.SetFloatAt(i, 1, float32(p.Y1))
		dst.SetFloatAt(i, 0, float32(p.X2))
		dst.SetFloatAt(i, 1, float32(p.Y2))
	}

	mask := gocv.NewMat()
	defer mask.Close()
	h := gocv.FindHomography(src, &dst, gocv.HomograpyMethodRANSAC, ransacThreshold, &mask, ransacMaxIter, ransacConfidence)
	defer h.Close()
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return nil
	}

	check := &HomographyCheck{Total: len(pairs)}
	if !mask.Empty() {
		check.Inliers = gocv.CountNonZero(mask)
	}
	check.InlierRatio = float64(check.Inliers) / float64(check.Total)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			check.Matrix[r*3+c] = h.GetDoubleAt(r, c)
		}
	}
	return check
}
