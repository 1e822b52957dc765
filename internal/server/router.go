package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/handlers"
	"github.com/diewo77/medcrm/internal/logging"
	"github.com/diewo77/medcrm/internal/services"
)

// Pinger checks the backing store for /healthz. A nil Pinger always
// reports ok.
type Pinger func(ctx context.Context) error

// GormPinger runs SELECT 1 against db.
func GormPinger(db *gorm.DB) Pinger {
	return func(ctx context.Context) error {
		return db.WithContext(ctx).Exec("SELECT 1").Error
	}
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(svc *services.Services, ping Pinger, log *zap.Logger) http.Handler {
	log = logging.OrNop(log)
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				log.Warn("health check failed", zap.Error(err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handlers.NewCustomerHandler(svc.Customers).Register(mux)
	handlers.NewDealHandler(svc.Deals).Register(mux)
	handlers.NewProposalHandler(svc.Proposals).Register(mux)
	handlers.NewProductHandler(svc.Products).Register(mux)
	handlers.NewDashboardHandler(svc.Dashboard).Register(mux)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", map[string]string{"path": r.URL.Path})
	})

	return withRecover(log, withLogging(log, mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func withRecover(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic serving request", zap.Any("panic", rec), zap.String("path", r.URL.Path), zap.Stack("stack"))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
