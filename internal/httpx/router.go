package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/disparos-etl/internal/export"
	"github.com/AngelCh415/disparos-etl/internal/ingest"
	"github.com/AngelCh415/disparos-etl/internal/metrics"
	"github.com/AngelCh415/disparos-etl/internal/store"
	"github.com/AngelCh415/disparos-etl/internal/utils"
)

// partes mayores van a disco
const maxMemory = 32 << 20

type Options struct {
	MaxUploadBytes int64
	UploadRPS      float64
	UploadBurst    int
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

type handler struct {
	log  *slog.Logger
	etl  *ingest.ETL
	mSvc *metrics.Service
	st   *store.MemoryStore
	opts Options
}

func NewRouter(log *slog.Logger, etl *ingest.ETL, mSvc *metrics.Service, st *store.MemoryStore, opts Options) http.Handler {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{log: log, etl: etl, mSvc: mSvc, st: st, opts: opts}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	mux.Use(chimw.Recoverer)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", h.ready)
	mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	mux.Route("/datasets", func(r chi.Router) {
		r.With(utils.RateLimit(opts.UploadRPS, opts.UploadBurst)).Post("/", h.upload)
		r.With(utils.RateLimit(opts.UploadRPS, opts.UploadBurst)).Post("/fetch", h.fetch)
		r.Get("/current", h.current)
	})

	mux.Route("/views", func(r chi.Router) {
		r.Get("/", h.views)
		r.Get("/export.xlsx", h.exportXLSX)
	})

	return mux
}

// readyz answers 200 once a dataset is loaded.
func (h *handler) ready(w http.ResponseWriter, r *http.Request) {
	if !h.st.Loaded() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no dataset"))
		return
	}
	w.WriteHeader(200)
	w.Write([]byte("ready"))
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	files, err := h.readFiles(w, r)
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	ds, err := h.etl.Upload(r.Context(), files)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ds.Summary())
}

func (h *handler) fetch(w http.ResponseWriter, r *http.Request) {
	ds, err := h.etl.Fetch(r.Context())
	if err != nil {
		h.fail(w, r, err, http.StatusBadGateway)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ds.Summary())
}

func (h *handler) current(w http.ResponseWriter, r *http.Request) {
	info, err := h.mSvc.Info(r.Context())
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, info)
}

func (h *handler) views(w http.ResponseWriter, r *http.Request) {
	q, err := metrics.ParseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	rep, err := h.mSvc.Report(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, rep)
}

func (h *handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	q, err := metrics.ParseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err, http.StatusBadRequest)
		return
	}
	rep, err := h.mSvc.Report(r.Context(), q)
	if err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rep); err != nil {
		h.fail(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="report.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// readFiles takes every part of the multipart field "files".
func (h *handler) readFiles(w http.ResponseWriter, r *http.Request) ([]ingest.NamedFile, error) {
	if h.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &APIError{StatusCode: http.StatusRequestEntityTooLarge, ErrorCode: "too_large", Message: fmt.Sprintf("upload larger than %d bytes", mbe.Limit)}
		}
		return nil, &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "bad_upload", Message: "expected multipart/form-data with field \"files\": " + err.Error()}
	}
	defer r.MultipartForm.RemoveAll()

	out := make([]ingest.NamedFile, 0, len(r.MultipartForm.File["files"]))
	for _, fh := range r.MultipartForm.File["files"] {
		body, err := readPart(fh)
		if err != nil {
			return nil, &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "bad_upload", Message: err.Error()}
		}
		out = append(out, ingest.NamedFile{Name: fh.Filename, Body: body})
	}
	return out, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	ae := mapError(err, fallback)
	ae.RequestID = utils.RID(r.Context())
	if ae.StatusCode >= 500 {
		h.log.ErrorContext(r.Context(), "request failed", slog.String("rid", ae.RequestID), slog.String("err", err.Error()))
	} else {
		h.log.WarnContext(r.Context(), "request rejected", slog.String("rid", ae.RequestID), slog.String("code", ae.ErrorCode), slog.String("err", err.Error()))
	}
	render.Render(w, r, ae)
}
