// Package api exposes the matching service over HTTP: a submission endpoint
// for authenticated users and read endpoints for similarity queries. All
// taste logic lives in internal/taste; this layer is routing, auth, and
// translation between HTTP and the service's error taxonomy.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/kalambet/tastetwin/internal/profile"
	"github.com/kalambet/tastetwin/internal/storage"
	"github.com/kalambet/tastetwin/internal/taste"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AppDeps holds what the HTTP layer needs.
type AppDeps struct {
	Service        *taste.Service
	JWTSecret      []byte
	AllowedOrigins []string
	MaxK           int // upper bound on requested neighbors; 0 = no bound
	RateLimit      int // requests per minute per IP; 0 disables
}

// SubmitRequest is the body of POST /api/data.
type SubmitRequest struct {
	Titles      []string `json:"titles"`
	ServiceType string   `json:"serviceType"`
	DisplayName string   `json:"displayName,omitempty"`
}

// NewAppHandler builds the full router.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))
	if deps.RateLimit > 0 {
		r.Use(httprate.LimitByIP(deps.RateLimit, time.Minute))
	}

	r.Get("/health", handleHealth)

	// Mutations require a verified identity.
	r.Group(func(r chi.Router) {
		r.Use(JWTAuth(deps.JWTSecret))
		r.Post("/api/data", handleSubmit(deps))
		r.Get("/api/submissions", handleListSubmissions(deps))
	})

	r.Get("/api/similar-users/{uid}/{k}", handleSimilarUsers(deps))
	r.Get("/api/similarity/{uid1}/{uid2}", handleSimilarity(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleSubmit(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		ident, ok := IdentityFrom(r.Context())
		if !ok {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no authenticated identity")
			return
		}

		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ServiceType == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "serviceType is required")
			return
		}

		result, err := deps.Service.SubmitTitles(r.Context(), ident, req.ServiceType, req.Titles, req.DisplayName)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		status := http.StatusOK
		message := "taste profile updated"
		switch result.Outcome {
		case profile.OutcomeCreated:
			status = http.StatusCreated
			message = "taste profile created"
		case profile.OutcomeCompleted:
			message = "taste profile complete: both sources obtained"
		case profile.OutcomeAlreadyComplete:
			message = "taste profile already complete"
		}

		writeJSON(w, status, map[string]any{
			"status":  string(result.Outcome),
			"message": message,
			"profile": result.Profile,
		})
	}
}

func handleSimilarUsers(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")
		k, err := strconv.Atoi(chi.URLParam(r, "k"))
		if err != nil || k <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid k value, must be a positive integer")
			return
		}
		if deps.MaxK > 0 && k > deps.MaxK {
			k = deps.MaxK
		}

		result, err := deps.Service.SimilarUsers(r.Context(), uid, k)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		message := fmt.Sprintf("top %d similar users found", k)
		if result.Truncated() {
			message = fmt.Sprintf("requested %d similar users, but only %d are available", result.Requested, result.Available)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": message,
			"users":   result.Matches,
		})
	}
}

func handleSimilarity(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid1 := chi.URLParam(r, "uid1")
		uid2 := chi.URLParam(r, "uid2")

		sim, err := deps.Service.SimilarityBetween(r.Context(), uid1, uid2)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"similarity": sim})
	}
}

func handleListSubmissions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFrom(r.Context())
		if !ok {
			httpError(w, http.StatusUnauthorized, "authentication_error", "no authenticated identity")
			return
		}

		limit := 20
		if s := r.URL.Query().Get("limit"); s != "" {
			if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
				limit = v
			}
		}

		subs, err := deps.Service.Submissions(r.Context(), ident.ID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if subs == nil {
			subs = []storage.Submission{}
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// invalid input 400, not found 404, provider failures 502, the rest 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, taste.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "user taste profile not found or incomplete: %v", err)
	case errors.Is(err, taste.ErrNoOtherProfiles):
		httpError(w, http.StatusNotFound, "not_found", "no other users found for comparison")
	case errors.Is(err, taste.ErrUpstream):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
