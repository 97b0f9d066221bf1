// Package httpapi exposes the model manager, the assistant wrapper and the
// training store over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codebuddy/internal/manager"
	"codebuddy/internal/training"
	"codebuddy/pkg/types"
)

// Models defines the model manager methods required by the HTTP API layer.
type Models interface {
	Configs() []types.ModelConfig
	Status() types.StatusResponse
	Ready() bool
	DetectLanguage(prompt string) string
	Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error
	Ensure(ctx context.Context, language string) error
	Unload(language string) bool
	Switch(ctx context.Context, language string) (string, error)
	SetPerformanceMode(mode string) manager.PerformanceMode
}

// Assistant streams status and fenced code, and records feedback.
type Assistant interface {
	Generate(ctx context.Context, req types.GenerationRequest, emit func(types.Chunk) error) error
	Feedback(history []types.Turn, positive bool) (string, error)
}

// Training is the training example store.
type Training interface {
	SaveExample(task, solution, source string) (string, error)
	SaveComparison(question, codebuddyResponse, otherResponse, otherName, language string) (string, error)
	List(language string, source training.SourceFilter) ([]types.TrainingSummary, error)
	Get(name string) (types.TrainingRecord, error)
	SaveNotes(name, notes string) error
	Delete(name string) error
}

// Deps are the services behind the router. Files, when set, lists model
// artifacts found on disk.
type Deps struct {
	Models    Models
	Assistant Assistant
	Training  Training
	Files     func() []types.Model
	Validator *validator.Validate
}

type server struct {
	Deps
}

func NewMux(d Deps) http.Handler {
	if d.Validator == nil {
		d.Validator = validator.New(validator.WithRequiredStructEnabled())
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level", "X-Request-Id"}),
			MaxAge:         300,
		}))
	}

	// The websocket route stays outside compression.
	r.Get("/ws/generate", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))

		r.Get("/models", s.handleModels)
		r.Get("/status", s.handleStatus)
		r.Post("/detect", s.handleDetect)
		r.Post("/generate", s.handleGenerate)
		r.Post("/generate/stream", s.handleGenerateStream)
		r.Post("/models/{language}/load", s.handleLoad)
		r.Delete("/models/{language}", s.handleUnload)
		r.Post("/switch", s.handleSwitch)
		r.Put("/performance-mode", s.handlePerformanceMode)
		r.Post("/feedback", s.handleFeedback)

		r.Route("/training", func(r chi.Router) {
			r.Get("/", s.handleTrainingList)
			r.Post("/", s.handleTrainingSave)
			r.Post("/comparison", s.handleComparisonSave)
			r.Get("/{name}", s.handleTrainingGet)
			r.Put("/{name}/notes", s.handleTrainingNotes)
			r.Delete("/{name}", s.handleTrainingDelete)
		})

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if s.Models.Ready() {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ready"))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("loading"))
		})
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// decodeJSON enforces the content type and body limit, decodes into v and
// validates it. It writes the error response itself and returns false on
// failure.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// size errors stay 400 to avoid leaking the limit
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.Validator.Struct(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// handleModels godoc
//
//	@Summary	List configured language models and model files on disk
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	types.ModelsResponse
//	@Router		/models [get]
func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	resp := types.ModelsResponse{Models: s.Models.Configs(), Files: []types.Model{}}
	if s.Files != nil {
		resp.Files = s.Files()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus godoc
//
//	@Summary	Resident models, performance mode and host profile
//	@Tags		models
//	@Produce	json
//	@Success	200	{object}	types.StatusResponse
//	@Router		/status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Models.Status())
}

// handleDetect godoc
//
//	@Summary	Detect the target language of a prompt
//	@Tags		generation
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.DetectRequest	true	"Prompt"
//	@Success	200		{object}	types.DetectResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Router		/detect [post]
func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req types.DetectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, types.DetectResponse{Language: s.Models.DetectLanguage(req.Prompt)})
}

// handleLoad godoc
//
//	@Summary	Load a language model and wait until it is resident
//	@Tags		models
//	@Produce	json
//	@Param		language	path		string	true	"Language key"
//	@Success	200			{object}	types.ModelActionResponse
//	@Failure	400			{object}	types.ErrorResponse
//	@Failure	503			{object}	types.ErrorResponse
//	@Router		/models/{language}/load [post]
func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "language")
	ctx, cancel := requestContext(r.Context())
	defer cancel()
	if err := s.Models.Ensure(ctx, lang); err != nil {
		if canceled(r.Context()) {
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelActionResponse{Language: lang, OK: true})
}

// handleUnload godoc
//
//	@Summary	Unload a language model
//	@Tags		models
//	@Produce	json
//	@Param		language	path		string	true	"Language key"
//	@Success	200			{object}	types.ModelActionResponse
//	@Failure	404			{object}	types.ErrorResponse
//	@Router		/models/{language} [delete]
func (s *server) handleUnload(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "language")
	if !s.Models.Unload(lang) {
		writeJSONError(w, http.StatusNotFound, "model not loaded: "+lang)
		return
	}
	writeJSON(w, http.StatusOK, types.ModelActionResponse{Language: lang, OK: true})
}

// handleSwitch godoc
//
//	@Summary	Start loading a language model in the background
//	@Tags		models
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.SwitchRequest	true	"Language"
//	@Success	202		{object}	types.SwitchResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Router		/switch [post]
func (s *server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	op, err := s.Models.Switch(r.Context(), req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, types.SwitchResponse{OpID: op, Language: strings.ToLower(req.Language)})
}

// handlePerformanceMode godoc
//
//	@Summary		Set the performance mode
//	@Description	Unknown modes select balanced.
//	@Tags			models
//	@Accept			json
//	@Produce		json
//	@Param			body	body		types.PerformanceModeRequest	true	"Mode"
//	@Success		200		{object}	types.PerformanceModeResponse
//	@Router			/performance-mode [put]
func (s *server) handlePerformanceMode(w http.ResponseWriter, r *http.Request) {
	var req types.PerformanceModeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	mode := s.Models.SetPerformanceMode(req.Mode)
	writeJSON(w, http.StatusOK, types.PerformanceModeResponse{Mode: string(mode)})
}
