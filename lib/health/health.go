package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"gorm.io/gorm"
)

// Status is the /healthz payload: overall state plus the database probe.
type Status struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DB        struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	} `json:"db"`
}

// Check reports ok when the database answers a ping within five seconds,
// degraded with a 503 otherwise.
func Check(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := Status{
			Service:   "shelfmark",
			Status:    "ok",
			Timestamp: time.Now(),
		}
		status.DB.Status = "ok"

		if err := ping(ctx, db); err != nil {
			status.Status = "degraded"
			status.DB.Status = "error"
			status.DB.Message = err.Error()
			writeStatus(w, status, http.StatusServiceUnavailable)
			return
		}
		writeStatus(w, status, http.StatusOK)
	}
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("no database connection: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func writeStatus(w http.ResponseWriter, status Status, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Error("Failed to encode health response", slog.Any("error", err))
	}
}
