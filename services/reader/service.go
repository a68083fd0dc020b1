package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/metervision/meter-reader/internal/logging"
	"github.com/metervision/meter-reader/internal/metrics"
	readersupabase "github.com/metervision/meter-reader/services/reader/supabase"
)

const (
	ServiceID   = "meter-reader"
	ServiceName = "Meter Reader Service"
	Version     = "1.0.0"
)

// Store captures the persistence surface needed by the reader service.
type Store interface {
	Save(ctx context.Context, token string, row *readersupabase.ReadingRow) (string, error)
	List(ctx context.Context, token, userID string, f readersupabase.Filter) ([]readersupabase.ReadingRow, error)
	Stats(ctx context.Context, token string) (json.RawMessage, error)
}

// MeterExtractor runs the image-to-reading pipeline for one uploaded file.
type MeterExtractor interface {
	ReadMeter(ctx context.Context, path string) (MeterReading, ProcessingMetrics, error)
}

// Config configures the reader service.
type Config struct {
	Store          Store
	Extractor      MeterExtractor
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
	UploadDir      string
	MaxUploadBytes int64
}

// Service is the meter reading service.
type Service struct {
	store          Store
	extractor      MeterExtractor
	logger         *logging.Logger
	metrics        *metrics.Metrics
	uploadDir      string
	maxUploadBytes int64
	startTime      time.Time
}

// New creates the reader service and ensures the upload directory exists.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	if err := os.MkdirAll(uploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}

	return &Service{
		store:          cfg.Store,
		extractor:      cfg.Extractor,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		uploadDir:      uploadDir,
		maxUploadBytes: maxUpload,
		startTime:      time.Now(),
	}, nil
}

// RegisterRoutes registers the service's endpoints on the router.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/meter-reading", s.handleCreateReading).Methods(http.MethodPost)
	r.HandleFunc("/readings", s.handleListReadings).Methods(http.MethodGet)
	r.HandleFunc("/readings/{meter_id}", s.handleMeterReadings).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
}
