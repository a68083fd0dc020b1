package reader

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/process"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
	"github.com/metervision/meter-reader/internal/httputil"
	"github.com/metervision/meter-reader/internal/middleware"
	readersupabase "github.com/metervision/meter-reader/services/reader/supabase"
)

const uploadField = "image"

// formOverheadBytes allows for multipart boundaries and headers on top of
// the configured file size limit.
const formOverheadBytes = 16 * 1024

// ReadingResult is the response payload for a processed upload.
type ReadingResult struct {
	MeterReading
	Metrics     ProcessingMetrics `json:"metrics"`
	PersistedID string            `json:"persisted_id,omitempty"`
}

func (s *Service) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFromContext(ctx)
	token := middleware.TokenFromContext(ctx)
	if user == nil || token == "" {
		httputil.WriteError(w, svcerrors.Unauthorized("authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+formOverheadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, svcerrors.Validation(s.tooLargeMessage()))
			return
		}
		httputil.WriteError(w, svcerrors.Validation("no image uploaded"))
		return
	}
	defer file.Close()

	if header.Size > s.maxUploadBytes {
		httputil.WriteError(w, svcerrors.Validation(s.tooLargeMessage()))
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		httputil.WriteError(w, svcerrors.Validation("only image files are allowed"))
		return
	}

	tmpPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to store upload")
		httputil.WriteErrorStatus(w, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	// The temp file is removed on every path out of this handler.
	defer os.Remove(tmpPath)

	if s.metrics != nil {
		s.metrics.ObserveUploadSize(int(header.Size))
	}

	start := time.Now()
	reading, procMetrics, err := s.extractor.ReadMeter(ctx, tmpPath)
	if s.metrics != nil {
		s.metrics.ObserveExtraction(time.Since(start))
	}
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("meter extraction failed")
		httputil.WriteError(w, err)
		return
	}

	result := ReadingResult{MeterReading: reading, Metrics: procMetrics}

	row := &readersupabase.ReadingRow{
		UserID:           user.ID,
		MeterID:          reading.MeterID,
		MeterType:        string(reading.MeterType),
		ReadingValue:     reading.ReadingValue,
		Unit:             reading.Unit,
		Confidence:       string(reading.Confidence),
		ConfidenceScore:  procMetrics.ConfidenceScore,
		ProcessingTimeMS: procMetrics.ProcessingTimeMS,
		ImageSizeBytes:   procMetrics.ImageSizeBytes,
		CreatedAt:        time.Now().UTC(),
	}
	id, err := s.store.Save(ctx, token, row)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to persist reading")
		httputil.WriteError(w, err)
		return
	}
	result.PersistedID = id

	s.logger.WithContext(ctx).WithField("meter_id", reading.MeterID).
		Infof("meter reading processed in %dms", procMetrics.ProcessingTimeMS)
	httputil.WriteSuccess(w, result)
}

func (s *Service) handleListReadings(w http.ResponseWriter, r *http.Request) {
	s.listReadings(w, r, r.URL.Query().Get("meter_id"))
}

func (s *Service) handleMeterReadings(w http.ResponseWriter, r *http.Request) {
	s.listReadings(w, r, mux.Vars(r)["meter_id"])
}

func (s *Service) listReadings(w http.ResponseWriter, r *http.Request, meterID string) {
	ctx := r.Context()
	user := middleware.UserFromContext(ctx)
	token := middleware.TokenFromContext(ctx)
	if user == nil || token == "" {
		httputil.WriteError(w, svcerrors.Unauthorized("authentication required"))
		return
	}

	f := readersupabase.Filter{
		MeterID: meterID,
		Limit:   parseIntParam(r, "limit"),
		Offset:  parseIntParam(r, "offset"),
	}
	rows, err := s.store.List(ctx, token, user.ID, f)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to list readings")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := middleware.TokenFromContext(ctx)
	if token == "" {
		httputil.WriteError(w, svcerrors.Unauthorized("authentication required"))
		return
	}

	stats, err := s.store.Stats(ctx, token)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("failed to load statistics")
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// handleHealth replies with a bare status object, not the envelope, so
// load balancer and uptime probes can match on a top-level status key.
func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) handleInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]interface{}{
		"service":        ServiceName,
		"version":        Version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			info["memory_rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			info["cpu_percent"] = cpu
		}
	}
	httputil.WriteSuccess(w, info)
}

// saveUpload copies the uploaded file into the upload directory under a
// random name, preserving the original extension for MIME detection.
func (s *Service) saveUpload(src io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(s.uploadDir, uuid.NewString()+ext)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Service) tooLargeMessage() string {
	return fmt.Sprintf("file too large. maximum size: %dMB", s.maxUploadBytes/(1024*1024))
}

func parseIntParam(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
