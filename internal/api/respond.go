package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amirk1998/daybook/pkg/errors"
)

const maxJSONBody = 1 << 20

// envelope is the shape of every JSON response.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{
		Success:   status < http.StatusBadRequest,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// fail writes err as an error envelope. Only messages meant for clients
// leave the process; anything unexpected is logged and reported as 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errors.StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
	}
	respond(w, status, message, nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.NewAppError(errors.ErrFileTooLarge, "request body too large", http.StatusRequestEntityTooLarge)
		}
		return errors.Validation("invalid JSON body")
	}
	return nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, errors.Validation("id must be a positive integer")
	}
	return id, nil
}

// queryInt returns 0 when key is absent.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Validation(key + " must be an integer")
	}
	return n, nil
}

// queryIntPtr returns nil when key is absent.
func queryIntPtr(r *http.Request, key string) (*int, error) {
	if r.URL.Query().Get(key) == "" {
		return nil, nil
	}
	n, err := queryInt(r, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func queryBoolPtr(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.Validation(key + " must be true or false")
	}
	return &b, nil
}
