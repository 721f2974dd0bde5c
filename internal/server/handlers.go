package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

const maxRequestBytes = 64 << 10

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !s.configured() {
		s.respondUnconfigured(w)
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ans, err := s.engine.Answer(r.Context(), req.Question)
	if err != nil {
		s.respondAnswerError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.AskResponse{
		Answer:            ans.Text,
		Sources:           ans.Sources,
		Confidence:        ans.Confidence,
		ResponseTime:      time.Since(start).Milliseconds(),
		NoRelevantContent: ans.NoRelevantContent,
		RequestID:         ans.RequestID,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.configured() || s.cache == nil {
		s.respondUnconfigured(w)
		return
	}
	s.cache.Invalidate()
	s.cache.Warm()
	s.respondJSON(w, http.StatusOK, models.MessageResponse{Message: "Course cache invalidated; rebuilding in the background."})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.configured() {
		resp := models.StatusResponse{
			Status:         models.StatusConfigurationRequired,
			Model:          s.generationModel,
			EmbeddingModel: s.embeddingModel,
		}
		if s.configErr != nil {
			resp.Details = s.configErr.Error()
		}
		s.respondJSON(w, http.StatusOK, resp)
		return
	}
	resp := models.StatusResponse{
		Status:         models.StatusOperational,
		Model:          s.engine.GenerationModel(),
		EmbeddingModel: s.engine.EmbeddingModel(),
	}
	if s.cache != nil {
		st := s.cache.Stats()
		resp.Cache = &models.CacheStatus{
			State:        st.State.String(),
			GenerationID: st.GenerationID,
			Documents:    st.Documents,
			Chunks:       st.Chunks,
			Dimensions:   st.Dimensions,
			AgeSeconds:   math.Round(st.Age.Seconds()),
			Rebuilds:     st.Rebuilds,
			Failures:     st.Failures,
			LastError:    st.LastError,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondAnswerError maps an answer failure to a status code. Rate limiting and
// unavailable providers are 503 so clients retry; validation is 400; a request
// that ran out of time is 504; the rest is 500.
func (s *Server) respondAnswerError(w http.ResponseWriter, err error) {
	kind := models.Kind(err)
	switch kind {
	case "validation":
		var ve *models.ValidationError
		msg := err.Error()
		if errors.As(err, &ve) {
			msg = ve.Message
		}
		s.respondError(w, http.StatusBadRequest, msg, "")
	case "rate_limited":
		setRetryAfter(w, models.RetryAfter(err))
		s.logger.Warn("ask rate limited", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "The course assistant is busy. Please try again shortly.", err.Error())
	case "unavailable", "retrieval_unavailable":
		setRetryAfter(w, models.RetryAfter(err))
		s.logger.Warn("ask unavailable", zap.String("kind", kind), zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "The course assistant is temporarily unavailable.", err.Error())
	case "canceled":
		s.respondError(w, http.StatusGatewayTimeout, "The request timed out.", err.Error())
	default:
		s.logger.Error("ask failed", zap.String("kind", kind), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to generate an answer.", err.Error())
	}
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
}

func (s *Server) respondUnconfigured(w http.ResponseWriter) {
	details := ""
	if s.configErr != nil {
		details = s.configErr.Error()
	}
	s.respondError(w, http.StatusServiceUnavailable, models.StatusConfigurationRequired, details)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, details string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message, Details: details})
}
