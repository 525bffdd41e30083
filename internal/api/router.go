package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"playforge/internal/assembly"
	"playforge/internal/config"
	"playforge/internal/logger"
)

// API exposes the assembly manager over HTTP: prepare a sample's pipelines,
// poll the resulting track sets, list the catalog.
type API struct {
	manager *assembly.Manager
	catalog *config.Catalog
	logger  logger.Logger
}

// New builds the router with its middleware stack.
func New(log logger.Logger, catalog *config.Catalog, manager *assembly.Manager) http.Handler {
	a := &API{manager: manager, catalog: catalog, logger: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(httprate.LimitByIP(600, time.Minute))

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/samples", a.handleSamples)
	r.Route("/streams/{sampleID}", func(r chi.Router) {
		r.With(httprate.LimitByIP(60, time.Minute)).Post("/prepare", a.handlePrepare)
		r.Get("/tracks", a.handleTracks)
	})

	return r
}

// requestLogger logs one line per request with status and timing.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Infof("%s %s -> %d (%d bytes, %s)", r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start))
		})
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sampleJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	URI       string `json:"uri"`
	Protected bool   `json:"protected"`
}

func (a *API) handleSamples(w http.ResponseWriter, r *http.Request) {
	samples := a.catalog.Samples()
	out := make([]sampleJSON, 0, len(samples))
	for _, s := range samples {
		out = append(out, sampleJSON{
			ID:        s.ID,
			Name:      s.Name,
			Kind:      s.Kind,
			URI:       s.URI,
			Protected: s.DRM != nil,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handlePrepare(w http.ResponseWriter, r *http.Request) {
	sampleID := chi.URLParam(r, "sampleID")
	acq, err := a.manager.Prepare(sampleID)
	if err != nil {
		if errors.Is(err, assembly.ErrUnknownSample) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		a.logger.Errorf("Failed to prepare sample %s: %v", sampleID, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusOf(sampleID, acq))
}

func (a *API) handleTracks(w http.ResponseWriter, r *http.Request) {
	sampleID := chi.URLParam(r, "sampleID")
	acq, found := a.manager.Get(sampleID)
	if !found {
		writeError(w, http.StatusNotFound, errors.New("sample has no acquisition; prepare it first"))
		return
	}
	writeJSON(w, http.StatusOK, statusOf(sampleID, acq))
}

type trackJSON struct {
	Names []string `json:"names,omitempty"`
	Ready bool     `json:"ready"`
}

// slotsJSON mirrors the fixed per-kind result array: a slot is populated or
// null, never an empty list.
type slotsJSON struct {
	Video *trackJSON `json:"video"`
	Audio *trackJSON `json:"audio"`
	Text  *trackJSON `json:"text"`
	Debug *trackJSON `json:"debug"`
}

type sessionJSON struct {
	ID     string `json:"id"`
	Scheme string `json:"scheme"`
}

type statusJSON struct {
	Sample   string       `json:"sample"`
	Attempt  string       `json:"attempt"`
	Kind     string       `json:"kind"`
	State    string       `json:"state"`
	Error    string       `json:"error,omitempty"`
	OffsetMs int64        `json:"offsetMs,omitempty"`
	Session  *sessionJSON `json:"session,omitempty"`
	Tracks   *slotsJSON   `json:"tracks,omitempty"`
}

func statusOf(sampleID string, acq *assembly.Acquisition) statusJSON {
	status := statusJSON{
		Sample:  sampleID,
		Attempt: acq.ID().String(),
		Kind:    acq.Kind().String(),
		State:   acq.State().String(),
	}
	if err := acq.Err(); err != nil {
		status.Error = err.Error()
	}
	set := acq.TrackSet()
	if set == nil {
		return status
	}

	status.OffsetMs = set.Offset.Milliseconds()
	if set.Session != nil {
		status.Session = &sessionJSON{ID: set.Session.ID.String(), Scheme: set.Session.Scheme}
	}
	slots := &slotsJSON{}
	if t := set.Tracks[assembly.SlotVideo]; t != nil {
		slots.Video = &trackJSON{Names: t.Names, Ready: t.Renderer.Ready()}
	}
	if t := set.Tracks[assembly.SlotAudio]; t != nil {
		slots.Audio = &trackJSON{Names: t.Names, Ready: t.Renderer.Ready()}
	}
	if t := set.Tracks[assembly.SlotText]; t != nil {
		slots.Text = &trackJSON{Names: t.Names, Ready: t.Renderer.Ready()}
	}
	if t := set.Tracks[assembly.SlotDebug]; t != nil {
		slots.Debug = &trackJSON{Names: t.Names, Ready: t.Renderer.Ready()}
	}
	status.Tracks = slots
	return status
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
