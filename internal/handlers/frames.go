package handlers

import (
	"net/http"
	"path/filepath"

	"orbitspeed/internal/dto"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/model"
	"orbitspeed/internal/repository"
)

// GetFramesHandler returns a page of stored frames, newest first.
func GetFramesHandler(repo repository.FrameRepository, imagesDir string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, limit, offset := pagination(q, 24)
		camera := q.Get("camera")

		frames, err := repo.GetAll(camera, limit, offset)
		if err != nil {
			logger.Error("Error querying frames: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if frames == nil {
			frames = []model.Frame{}
		}

		totalCount, err := repo.GetTotalCount(camera)
		if err != nil {
			logger.Error("Error counting frames: %v", err)
			totalCount = len(frames)
		}

		writeJSON(w, logger, http.StatusOK, dto.FramesData{
			Frames:      frames,
			ImagesDir:   imagesDir,
			Length:      totalCount,
			TotalPages:  totalPages(totalCount, limit),
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewFrameHandler serves a single stored frame named by the "name" query parameter.
func ViewFrameHandler(imagesDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" || name != filepath.Base(name) || name == ".." {
			http.Error(w, "name parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(imagesDir, name))
	}
}
