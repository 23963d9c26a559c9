package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/diwise/iot-energy-mgmt/internal/pkg/application"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/application/validation"
	"github.com/diwise/iot-energy-mgmt/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/iot-energy-mgmt/pkg/types"
)

var errInvalidID = errors.New("invalid id")

func writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

// writeError maps err to a status code and writes it as an ErrorResponse.
func writeError(w http.ResponseWriter, logger zerolog.Logger, msg string, err error) {
	status := statusFromError(err)

	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
	} else {
		logger.Debug().Err(err).Int("status", status).Msg(msg)
	}

	response := types.ErrorResponse{Error: http.StatusText(status)}

	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		for _, f := range ve.Fields {
			response.Fields = append(response.Fields, types.FieldError{Field: f.Field, Message: f.Message})
		}
	}

	var ce *database.ConstraintError
	if errors.As(err, &ce) && ce.Constraint != "" {
		response.Error = fmt.Sprintf("%s: %s", response.Error, ce.Constraint)
	}

	writeJSON(w, status, response)
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, errInvalidID), errors.Is(err, validation.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrConstraintViolation):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func idParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %s", errInvalidID, name)
	}
	return uint(id), nil
}

// decode reads a json body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	if len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, v); err != nil {
		return validation.NewValidationError("body", err.Error())
	}

	return nil
}

func listOptions(r *http.Request) application.ListOptions {
	q := r.URL.Query()

	opts := application.ListOptions{
		Status: q.Get("status"),
	}

	opts.IncludeDeleted, _ = strconv.ParseBool(q.Get("includeDeleted"))
	opts.Offset, _ = strconv.Atoi(q.Get("offset"))
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))

	return opts
}

func softDelete(r *http.Request) bool {
	soft, _ := strconv.ParseBool(r.URL.Query().Get("soft"))
	return soft
}
