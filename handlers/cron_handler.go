package handlers

import (
	"errors"
	"net/http"
	"time"

	"repcirAPI/internal/logger"
	"repcirAPI/services"
)

type CronHandler struct {
	retention *services.RetentionService
}

func NewCronHandler(retention *services.RetentionService) *CronHandler {
	return &CronHandler{retention: retention}
}

// DataRetention runs the retention job. Partial failures still answer 200
// with the per-category errors in the body.
func (h *CronHandler) DataRetention(w http.ResponseWriter, r *http.Request) {
	// The server write timeout is shorter than the job budget.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(services.RetentionBudget + 10*time.Second)); err != nil {
		logger.Debug().Err(err).Msg("Could not extend write deadline")
	}

	report, err := h.retention.Run(r.Context())
	if errors.Is(err, services.ErrRetentionTooSoon) {
		respondWithError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
