package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"orbitspeed/internal/dto"
	"orbitspeed/internal/estimation"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/series"
)

const maxEstimateRequest = 2*maxFrameBytes + 1<<20

func readPart(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

// EstimateHandler runs the pipeline synchronously on two uploaded images
// (multipart fields "first" and "second") taken "elapsed" seconds apart.
func EstimateHandler(estimator *estimation.Estimator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxEstimateRequest)
		if err := r.ParseMultipartForm(maxEstimateRequest); err != nil {
			http.Error(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}
		defer func(form *multipart.Form) { form.RemoveAll() }(r.MultipartForm)

		elapsed, err := strconv.ParseFloat(r.FormValue("elapsed"), 64)
		if err != nil {
			http.Error(w, "elapsed must be a number of seconds", http.StatusBadRequest)
			return
		}

		first, err := readPart(r, "first")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		second, err := readPart(r, "second")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		a, err := estimation.Decode(first)
		if err != nil {
			a.Close()
			writeError(w, logger, fmt.Errorf("first image: %w", err))
			return
		}
		defer a.Close()
		b, err := estimation.Decode(second)
		if err != nil {
			b.Close()
			writeError(w, logger, fmt.Errorf("second image: %w", err))
			return
		}
		defer b.Close()

		result, err := estimator.EstimatePair(a, b, elapsed)
		if err != nil {
			logger.Warning("Ad-hoc estimate failed: %v", err)
			writeError(w, logger, err)
			return
		}

		resp := dto.EstimateResponse{
			SpeedKmps:      result.SpeedKmps,
			Formatted:      series.FormatEstimate(result.SpeedKmps),
			DistanceKm:     result.DistanceKm,
			ElapsedSeconds: result.ElapsedSeconds,
			DisplacementPx: result.Displacement.Pixels,
			MedianPx:       result.Displacement.Median,
			ModePx:         result.Displacement.Mode,
			Matches:        result.Matches,
			KeypointsA:     result.KeypointsA,
			KeypointsB:     result.KeypointsB,
		}
		if result.Homography != nil {
			ratio := result.Homography.InlierRatio
			resp.InlierRatio = &ratio
		}
		writeJSON(w, logger, http.StatusOK, resp)
	}
}
