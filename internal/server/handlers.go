package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jgoulah/dayboard/internal/fetcher"
	"github.com/jgoulah/dayboard/internal/ingest"
	"github.com/jgoulah/dayboard/internal/journal"
	"github.com/jgoulah/dayboard/internal/publisher"
	"github.com/jgoulah/dayboard/pkg/models"
)

type healthBody struct {
	Status string `json:"status"`
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.jsonError(w, r, errorStore.SetInternalMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, healthBody{Status: "OK"})
}

// triggerJob runs one ingestion job. The job runs to completion even if the
// caller disconnects.
func (s *Server) triggerJob(w http.ResponseWriter, r *http.Request) {
	source, err := models.ParseSource(mux.Vars(r)["source"])
	if err != nil {
		s.jsonError(w, r, errorUnknownSource.SetInternalMessage(err))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	summary := ingest.Trigger(ctx, source, s.deps)
	if summary.OK() && s.publisher != nil && len(summary.Rows) > 0 {
		res := publisher.PublishRows(ctx, s.store, s.publisher, summary.Rows, s.log)
		s.log.WithFields(logrus.Fields{"source": source, "published": res.Published, "failed": res.Failed}).Info("published ingested rows")
	}
	s.writeJSON(w, summary.HTTPStatus(), summary.Body())
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.dashboard.Load(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.jsonError(w, r, errorStore.SetInternalMessage(err))
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

type checkInRequest struct {
	MoodRating int                `json:"mood_rating"`
	Type       models.CheckInType `json:"type"`
}

func (s *Server) postCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	c, err := s.journal.RecordCheckIn(r.Context(), userFrom(r.Context()), req.MoodRating, req.Type)
	if err != nil {
		s.jsonError(w, r, classify(err, errorStore))
		return
	}
	s.writeJSON(w, http.StatusCreated, c)
}

type personalRequest struct {
	Value *bool `json:"value"`
}

func (s *Server) postPersonal(w http.ResponseWriter, r *http.Request) {
	var req personalRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Value == nil {
		s.jsonError(w, r, invalidInput(errors.New("value is required")))
		return
	}
	p, err := s.journal.SetPersonal(r.Context(), userFrom(r.Context()), *req.Value)
	if err != nil {
		s.jsonError(w, r, classify(err, errorStore))
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) getPersonalToday(w http.ResponseWriter, r *http.Request) {
	p, err := s.journal.TodayPersonal(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.jsonError(w, r, classify(err, errorStore))
		return
	}
	if p == nil {
		s.jsonError(w, r, errorNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) postScripture(w http.ResponseWriter, r *http.Request) {
	var req journal.Reading
	if !s.readJSON(w, r, &req) {
		return
	}
	reading, err := s.journal.RecordReading(r.Context(), userFrom(r.Context()), req)
	if err != nil {
		s.jsonError(w, r, classify(err, errorStore))
		return
	}
	s.writeJSON(w, http.StatusCreated, reading)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.journal.Settings(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.jsonError(w, r, classify(err, errorStore))
		return
	}
	if settings == nil {
		s.jsonError(w, r, errorNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

type settingsRequest struct {
	ZipCode string `json:"zip_code"`
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !s.readJSON(w, r, &req) {
		return
	}
	settings, err := s.journal.SaveLocation(r.Context(), userFrom(r.Context()), req.ZipCode)
	if err != nil {
		fallback := errorStore
		var statusErr *fetcher.StatusError
		if errors.As(err, &statusErr) {
			fallback = errorGeocode
		}
		s.jsonError(w, r, classify(err, fallback))
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}
