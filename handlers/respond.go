package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/logger"
	"repcirAPI/middleware"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps err to its status. Internal errors are logged and
// answered with a generic message.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}

	body := map[string]any{"error": apperrors.PublicMessage(err)}
	if fields := apperrors.FieldErrors(err); len(fields) > 0 {
		body["fields"] = fields
	}
	respondWithJSON(w, code, body)
}

// clerkIDFrom returns the authenticated Clerk user or answers 401.
func clerkIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	clerkID, ok := middleware.GetClerkID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
	}
	return clerkID, ok
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("Request body is required", nil)
		}
		return apperrors.Validation("Invalid request body", nil)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("Invalid request body", nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.TrimPrefix(fe.Namespace(), reflect.Indirect(reflect.ValueOf(v)).Type().Name()+".")
		fields[name] = fe.Tag()
	}
	return apperrors.Validation("Validation failed", fields)
}

// pathUUID parses the named mux variable.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		return uuid.Nil, apperrors.Validation("Invalid "+name, map[string]string{name: "uuid"})
	}
	return id, nil
}

// queryLimit parses ?limit=, returning 0 when absent.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Validation("Invalid limit", map[string]string{"limit": "min=0"})
	}
	return n, nil
}
