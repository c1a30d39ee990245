package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/dayboard/internal/journal"
)

// DetailedError is an API failure as reported to the client
type DetailedError struct {
	Status int `json:"-"`
	// ID is provided to the user so that we can better track down issues
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"error"`
	// InternalMessage is used only for logging
	InternalMessage string `json:"-"`
}

// SetInternalMessage sets the internal message that we will use for logging
func (d DetailedError) SetInternalMessage(internal error) DetailedError {
	d.InternalMessage = internal.Error()
	return d
}

var (
	errorMissingUser   = DetailedError{Status: http.StatusUnauthorized, Code: "missing_user", Message: "missing " + UserHeader + " header"}
	errorBadRequest    = DetailedError{Status: http.StatusBadRequest, Code: "bad_request", Message: "request body is not valid JSON"}
	errorUnknownSource = DetailedError{Status: http.StatusNotFound, Code: "unknown_source", Message: "unknown ingestion source"}
	errorStore         = DetailedError{Status: http.StatusInternalServerError, Code: "data_store_error", Message: "internal server error"}
	errorGeocode       = DetailedError{Status: http.StatusBadGateway, Code: "geocode_error", Message: "zip code lookup failed"}
	errorNotFound      = DetailedError{Status: http.StatusNotFound, Code: "not_found", Message: "no data for specified user"}
)

// invalidInput reports a journal validation error with its own message
func invalidInput(err error) DetailedError {
	return DetailedError{Status: http.StatusBadRequest, Code: "invalid_input", Message: err.Error()}
}

// classify maps a journal error to the response it deserves
func classify(err error, fallback DetailedError) DetailedError {
	if errors.Is(err, journal.ErrInvalid) {
		return invalidInput(err)
	}
	return fallback.SetInternalMessage(err)
}

// jsonError logs the error detail and writes it as application/json
func (s *Server) jsonError(w http.ResponseWriter, r *http.Request, err DetailedError) {
	err.ID = uuid.NewString()
	entry := s.log.WithFields(logrus.Fields{
		"id":     err.ID,
		"code":   err.Code,
		"method": r.Method,
		"path":   r.URL.Path,
	})
	if err.InternalMessage != "" {
		entry = entry.WithField("internal", err.InternalMessage)
	}
	if err.Status >= http.StatusInternalServerError {
		entry.Error(err.Message)
	} else {
		entry.Info(err.Message)
	}
	s.writeJSON(w, err.Status, err)
}
