// Package handler provides the HTTP API for maps, keypoints and stories.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fjperezpujalte/storiesviewer/metrics"
	"github.com/fjperezpujalte/storiesviewer/model"
	"github.com/fjperezpujalte/storiesviewer/store"
)

const maxBodyBytes = 1 << 20

// Options configures the optional parts of a Handler.
type Options struct {
	Logger *zap.Logger
	// Metrics enables request metrics and the /metrics endpoint when set.
	Metrics        *metrics.Collector
	AllowedOrigins []string
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	store  store.Store
	logger *zap.Logger
	router chi.Router
}

// New creates a Handler and wires up all routes.
func New(s store.Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{store: s, logger: logger, router: chi.NewRouter()}
	h.routes(opts)
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes(opts Options) {
	r := h.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(h.logger))
	if opts.Metrics != nil {
		r.Use(observeRequests(opts.Metrics))
	}
	r.Use(corsHandler(opts.AllowedOrigins))

	r.Get("/", h.root)
	r.Get("/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/maps", func(r chi.Router) {
		r.Post("/", h.createMap)
		r.Get("/", h.getAllMaps)

		r.Route("/{mapID}", func(r chi.Router) {
			r.Get("/", h.getMap)
			r.Delete("/", h.deleteMap)

			r.Post("/keypoints", h.addKeypoint)
			r.Delete("/keypoints/{keypointID}", h.deleteKeypoint)
			r.Post("/keypoints/{keypointID}/stories", h.addKeypointStory)
			r.Delete("/keypoints/{keypointID}/stories/{storyID}", h.deleteKeypointStory)

			r.Post("/stories", h.addStory)
			r.Delete("/stories/{storyID}", h.deleteStory)
		})
	})
}

// corsHandler allows any origin when origins is empty or "*". Credentials
// are only allowed for an explicit origin list.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0 || (len(origins) == 1 && origins[0] == "*")
	if allowAll {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !allowAll,
		MaxAge:           300,
	})
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg, id string) {
	body := map[string]string{"message": msg}
	if id != "" {
		body["id"] = id
	}
	writeJSON(w, status, body)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// decode reads the request body into v and runs validate on it. It writes a
// 400 and returns false when either step fails.
func decode[T any](w http.ResponseWriter, r *http.Request, v *T, validate func(T) error) bool {
	if err := readJSON(w, r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := validate(*v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// storeFailure logs a backend error and answers 500 without leaking it.
func (h *Handler) storeFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error("Storage operation failed",
		zap.String("operation", op),
		zap.String("requestID", chimiddleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal storage error")
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Maps API is running"})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- maps ----------

func (h *Handler) createMap(w http.ResponseWriter, r *http.Request) {
	var mc model.MapCreate
	if !decode(w, r, &mc, model.ValidateMapCreate) {
		return
	}
	m, err := h.store.CreateMap(r.Context(), mc)
	if err != nil {
		h.storeFailure(w, r, "create map", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) getAllMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := h.store.GetAllMaps(r.Context())
	if err != nil {
		h.storeFailure(w, r, "get all maps", err)
		return
	}
	if maps == nil {
		maps = []model.Map{}
	}
	writeJSON(w, http.StatusOK, maps)
}

func (h *Handler) getMap(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMap(r.Context(), chi.URLParam(r, "mapID"))
	if err != nil {
		h.storeFailure(w, r, "get map", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Map not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) deleteMap(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteMap(r.Context(), chi.URLParam(r, "mapID"))
	if err != nil {
		h.storeFailure(w, r, "delete map", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Map not found")
		return
	}
	writeMessage(w, http.StatusOK, "Map deleted successfully", "")
}

// ---------- keypoints ----------

func (h *Handler) addKeypoint(w http.ResponseWriter, r *http.Request) {
	var kc model.KeypointCreate
	if !decode(w, r, &kc, model.ValidateKeypointCreate) {
		return
	}
	kp := kc.ToKeypoint()
	ok, err := h.store.AddKeypoint(r.Context(), chi.URLParam(r, "mapID"), kp)
	switch {
	case errors.Is(err, store.ErrDuplicateKeypointName):
		writeError(w, http.StatusConflict, "Keypoint name already exists in this map")
		return
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, "Keypoint or story id already exists in this map")
		return
	case err != nil:
		h.storeFailure(w, r, "add keypoint", err)
		return
	case !ok:
		writeError(w, http.StatusNotFound, "Map not found")
		return
	}
	writeMessage(w, http.StatusCreated, "Keypoint added successfully", kp.ID)
}

func (h *Handler) deleteKeypoint(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteKeypoint(r.Context(), chi.URLParam(r, "mapID"), chi.URLParam(r, "keypointID"))
	if err != nil {
		h.storeFailure(w, r, "delete keypoint", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Map or keypoint not found")
		return
	}
	writeMessage(w, http.StatusOK, "Keypoint deleted successfully", "")
}

// ---------- stories ----------

func (h *Handler) addStory(w http.ResponseWriter, r *http.Request) {
	var sc model.StoryCreate
	if !decode(w, r, &sc, model.ValidateStoryCreate) {
		return
	}
	st := sc.ToStory()
	ok, err := h.store.AddStory(r.Context(), chi.URLParam(r, "mapID"), st)
	if errors.Is(err, store.ErrDuplicateID) {
		writeError(w, http.StatusConflict, "Story id already exists in this map")
		return
	}
	if err != nil {
		h.storeFailure(w, r, "add story", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Map not found")
		return
	}
	writeMessage(w, http.StatusCreated, "Story added successfully", st.ID)
}

func (h *Handler) deleteStory(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteStory(r.Context(), chi.URLParam(r, "mapID"), chi.URLParam(r, "storyID"))
	if err != nil {
		h.storeFailure(w, r, "delete story", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Map or story not found")
		return
	}
	writeMessage(w, http.StatusOK, "Story deleted successfully", "")
}

func (h *Handler) addKeypointStory(w http.ResponseWriter, r *http.Request) {
	var sc model.StoryCreate
	if !decode(w, r, &sc, model.ValidateStoryCreate) {
		return
	}
	st := sc.ToStory()
	ok, err := h.store.AddKeypointStory(r.Context(), chi.URLParam(r, "mapID"), chi.URLParam(r, "keypointID"), st)
	if errors.Is(err, store.ErrDuplicateID) {
		writeError(w, http.StatusConflict, "Story id already exists in this map")
		return
	}
	if err != nil {
		h.storeFailure(w, r, "add keypoint story", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Map or keypoint not found")
		return
	}
	writeMessage(w, http.StatusCreated, "Story added successfully", st.ID)
}

func (h *Handler) deleteKeypointStory(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.DeleteKeypointStory(r.Context(),
		chi.URLParam(r, "mapID"), chi.URLParam(r, "keypointID"), chi.URLParam(r, "storyID"))
	if err != nil {
		h.storeFailure(w, r, "delete keypoint story", err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Map, keypoint or story not found")
		return
	}
	writeMessage(w, http.StatusOK, "Story deleted successfully", "")
}
