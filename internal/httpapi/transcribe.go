package httpapi

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/whisperpipe/transcribe-api/internal/apperr"
	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/modelcache"
	"github.com/whisperpipe/transcribe-api/internal/router"
	"github.com/whisperpipe/transcribe-api/internal/slicer"
	"github.com/whisperpipe/transcribe-api/internal/tempstore"
)

const maxUploadMemory = 32 << 20 // 32MiB held in memory before spilling to temp files

// handleTranscribe implements POST /api/fasterwhisper/transcribe (spec §6):
// parses the multipart upload, builds per-file metadata, and hands off to
// the StrategyRouter. Temp files are always cleaned up, on every return
// path (spec §4.7's cleanup contract, §8 property 1).
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set("X-Request-Id", requestID)
	log := s.logger().With(slog.String("request_id", requestID))

	store := tempstore.New()
	defer func() {
		if err := store.Cleanup(); err != nil {
			log.Error("failed to clean up temp files", slog.String("err", err.Error()))
		}
	}()

	opts, status, errMsg := s.parseTranscribeOptions(r)
	if errMsg != "" {
		writeError(w, status, errMsg)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}

	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	files, err := s.materializeUploads(uploads, store, opts.AutoSlice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info("processing transcription request", slog.Int("files", len(files)))

	resp, err := s.Router.Process(r.Context(), files, opts.Options, store)
	if err != nil {
		log.Error("request failed", slog.String("err", err.Error()))
		if appErr, ok := apperr.As(err); ok {
			writeError(w, appErr.Status(), appErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeOK(w, map[string]any{
		"processing_strategy": resp.Strategy,
		"processed_files":     resp.ProcessedFiles,
		"results":             resp.Files,
	})
}

type transcribeOptions struct {
	router.Options
	AutoSlice bool
}

// parseTranscribeOptions validates the query params from spec §6. Returns a
// non-empty errMsg (and the status to use) on validation failure.
func (s *Server) parseTranscribeOptions(r *http.Request) (transcribeOptions, int, string) {
	q := r.URL.Query()

	modelName := q.Get("model_name")
	if modelName == "" {
		modelName = s.Config.ModelName
	}
	if !config.IsSupportedModel(modelName) {
		return transcribeOptions{}, http.StatusBadRequest, "unsupported model_name: " + modelName
	}

	device := config.Device(q.Get("device"))
	if device == "" {
		device = s.Config.Device
	}
	if !device.IsValid() {
		return transcribeOptions{}, http.StatusBadRequest, "invalid device: " + string(device)
	}

	computeType := config.ComputeType(q.Get("compute_type"))
	if computeType == "" {
		computeType = s.Config.ComputeType
	}
	computeType, _ = config.CoerceComputeType(device, computeType)

	beamSize := s.Config.BeamSize
	if v := q.Get("beam_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return transcribeOptions{}, http.StatusBadRequest, "invalid beam_size"
		}
		beamSize = n
	}

	autoSlice := true
	if v := q.Get("auto_slice"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return transcribeOptions{}, http.StatusBadRequest, "invalid auto_slice"
		}
		autoSlice = b
	}

	considerSystemLoad := s.Config.ConsiderSystemLoad
	if v := q.Get("consider_system_load"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return transcribeOptions{}, http.StatusBadRequest, "invalid consider_system_load"
		}
		considerSystemLoad = b
	}

	maxConcurrent := 0
	if v := q.Get("max_concurrent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < s.Config.MinConcurrent || n > s.Config.MaxConcurrentLimit {
			return transcribeOptions{}, http.StatusBadRequest, "max_concurrent out of range"
		}
		maxConcurrent = n
	}

	return transcribeOptions{
		Options: router.Options{
			ModelKey:           modelcache.Key{RepoID: modelName, Device: device, ComputeType: computeType},
			BeamSize:           beamSize,
			Language:           q.Get("language"),
			AutoSlice:          autoSlice,
			MaxConcurrent:      maxConcurrent,
			ConsiderSystemLoad: considerSystemLoad,
		},
		AutoSlice: autoSlice,
	}, http.StatusOK, ""
}

// materializeUploads streams every multipart file header to a temp file,
// registers it with store, and decodes its duration/sample rate to build a
// router.FileInfo (spec §3).
func (s *Server) materializeUploads(headers []*multipart.FileHeader, store *tempstore.Store, autoSlice bool) ([]router.FileInfo, error) {
	files := make([]router.FileInfo, 0, len(headers))
	for _, fh := range headers {
		path, err := store.CreateTemp("", "upload-*.wav")
		if err != nil {
			return nil, err
		}

		if err := writeUpload(fh, path); err != nil {
			return nil, err
		}

		wave, err := slicer.LoadWAV(path)
		if err != nil {
			return nil, err
		}

		files = append(files, router.NewFileInfo(
			fh.Filename, path, fh.Header.Get("Content-Type"), wave.DurationSec(),
			autoSlice, s.Config.ShortKindSec, s.Config.SliceTriggerSec,
		))
	}
	return files, nil
}

func writeUpload(fh *multipart.FileHeader, dstPath string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
