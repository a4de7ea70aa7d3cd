package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/unveil/unveil-bridge/internal/audit"
	"github.com/unveil/unveil-bridge/internal/namestore"
	"github.com/unveil/unveil-bridge/internal/scan"
	"golang.org/x/net/html"
)

// HTTPStatuser provides HTTP status information for errors
type HTTPStatuser interface {
	Status() (int, string)
}

// originFrom validates the origin a request operates on. Origins are host
// names (optionally with a port); anything with a path or scheme is
// rejected.
func originFrom(raw string) (string, error) {
	origin := strings.TrimSpace(raw)
	if origin == "" {
		return "", errors.New("origin must not be empty")
	}
	if strings.ContainsAny(origin, "/\\ ") || strings.Contains(origin, "://") {
		return "", errors.New("origin must be a bare host name")
	}
	return origin, nil
}

func handleAugment(driver *scan.Driver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		origin, err := originFrom(r.URL.Query().Get("origin"))
		if err != nil {
			log.Info().Msgf("invalid origin parameter: %v", err)
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		audit.Log(r.Context()).SetOrigin(origin)

		doc, err := html.Parse(r.Body)
		if err != nil {
			log.Info().Msgf("request body is not parseable HTML: %v", err)
			writeJSONError(w, http.StatusBadRequest, "request body is not parseable HTML")
			return
		}

		if err := driver.Document(r.Context(), origin, doc); err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("augmentation failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := html.Render(w, doc); err != nil {
			// headers are gone; all that remains is to record the failure
			log.Info().Msgf("failed to write response: %v", err)
		}
	})
}

func handleListNames(store *namestore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		origin, err := originFrom(r.PathValue("origin"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		audit.Log(r.Context()).SetOrigin(origin)

		entries, err := store.Entries(r.Context(), origin)
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("listing names failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Info().Msgf("failed to write response: %v", err)
		}
	})
}

// overrideRequest is the PUT /names body.
type overrideRequest struct {
	DisplayName string `json:"displayName"`
}

func handlePutName(store *namestore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		origin, err := originFrom(r.PathValue("origin"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		handle := r.PathValue("handle")

		entry := audit.Log(r.Context())
		entry.SetOrigin(origin)
		entry.AddHandle(handle)

		var req overrideRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "request body is not a valid override")
			return
		}

		if strings.TrimSpace(req.DisplayName) == "" {
			writeJSONError(w, http.StatusBadRequest, "displayName must not be empty")
			return
		}

		if err := store.Override(r.Context(), origin, handle, req.DisplayName); err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("override failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// pinRequest is the PATCH /names body: a pin-state change independent of
// the display name.
type pinRequest struct {
	Pinned *bool `json:"pinned"`
}

func handlePatchName(store *namestore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		origin, err := originFrom(r.PathValue("origin"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		handle := r.PathValue("handle")

		entry := audit.Log(r.Context())
		entry.SetOrigin(origin)
		entry.AddHandle(handle)

		var req pinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pinned == nil {
			writeJSONError(w, http.StatusBadRequest, "request body must set pinned")
			return
		}

		err = store.Pin(r.Context(), origin, handle, *req.Pinned)
		if errors.Is(err, namestore.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "no entry for handle")
			return
		}
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("pin change failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleDeleteName(store *namestore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		origin, err := originFrom(r.PathValue("origin"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		handle := r.PathValue("handle")

		entry := audit.Log(r.Context())
		entry.SetOrigin(origin)
		entry.AddHandle(handle)

		err = store.Remove(r.Context(), origin, handle)
		if errors.Is(err, namestore.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "no entry for handle")
			return
		}
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("removal failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func handleSweep(store *namestore.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		removed, err := store.Sweep(r.Context())
		if err != nil {
			status, message := errorStatus(err)
			log.Info().Msgf("sweep failed: %v", err)
			writeJSONError(w, status, message)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int{"removed": removed}); err != nil {
			log.Info().Msgf("failed to write response: %v", err)
		}
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer drainRequestBody(r)

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, limit)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSONError writes a JSON error response with the given status code and message.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// the status code is already on the wire, so only log
		log.Info().Msgf("failed to write JSON error response: %v", err)
	}
}

// errorStatus extracts HTTP status code and message from an error.
// Returns (StatusInternalServerError, StatusText) for errors that don't implement HTTPStatuser.
func errorStatus(err error) (int, string) {
	var statuser HTTPStatuser
	if errors.As(err, &statuser) {
		return statuser.Status()
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

// drainRequestBody ensures the request body is fully read and closed so the
// connection can be reused.
func drainRequestBody(r *http.Request) {
	if r.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, r.Body)
	_ = r.Body.Close()
}
