package handlers

import (
	"net/http"

	"orbitspeed/internal/dto"
	"orbitspeed/internal/logger"
	"orbitspeed/internal/model"
	"orbitspeed/internal/repository"
)

func sampleFilter(r *http.Request) *model.SampleFilter {
	q := r.URL.Query()
	return &model.SampleFilter{
		RunID:  q.Get("run"),
		Camera: q.Get("camera"),
		After:  parseTime(q.Get("after")),
		Before: parseTime(q.Get("before")),
	}
}

// GetSamplesHandler returns a page of stored speed samples in capture order.
func GetSamplesHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, offset := pagination(r.URL.Query(), 50)

		filter := sampleFilter(r)
		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting samples: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		filter.Limit = limit
		filter.Offset = offset
		samples, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying samples: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if samples == nil {
			samples = []model.Sample{}
		}

		writeJSON(w, logger, http.StatusOK, dto.SamplesData{
			Samples:     samples,
			Length:      totalCount,
			TotalPages:  totalPages(totalCount, limit),
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// GetSampleStatsHandler returns aggregate statistics of the filtered samples.
func GetSampleStatsHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.GetStats(sampleFilter(r))
		if err != nil {
			logger.Error("Error computing sample stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, stats)
	}
}

// GetRunsHandler lists run identifiers, most recent first.
func GetRunsHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := repo.GetRuns()
		if err != nil {
			logger.Error("Error listing runs: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []string{}
		}
		writeJSON(w, logger, http.StatusOK, map[string][]string{"runs": runs})
	}
}

// ClearSamplesHandler deletes one run (?run=) or every stored sample.
func ClearSamplesHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var err error
		if run := r.URL.Query().Get("run"); run != "" {
			err = repo.DeleteRun(run)
		} else {
			err = repo.DeleteAll()
		}
		if err != nil {
			logger.Error("Error clearing samples: %v", err)
			http.Error(w, "Unable to clear samples", http.StatusInternalServerError)
			return
		}
		logger.Info("Samples cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
