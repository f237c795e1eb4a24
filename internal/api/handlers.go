package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/devintel/devgraph/internal/classify"
	apperrors "github.com/devintel/devgraph/internal/errors"
	"github.com/devintel/devgraph/internal/models"
	"github.com/devintel/devgraph/internal/recommend"
)

type healthResponse struct {
	Status   string `json:"status"`
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	Degraded bool   `json:"degraded,omitempty"`
}

type fetchRequest struct {
	GitHubUsername string `json:"github_username"`
	SOUserID       int    `json:"so_user_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := s.recommender.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Nodes:    snap.Graph.NodeCount(),
		Edges:    snap.Graph.EdgeCount(),
		Degraded: snap.Degraded,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node")

	limit := recommend.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, apperrors.Validation("limit must be a positive integer"))
			return
		}
		limit = n
	}

	recs, err := s.recommender.Recommend(r.Context(), nodeID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.recommender.Metrics(r.Context(), r.PathValue("node"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	user := r.PathValue("user")

	snap, err := s.recommender.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// accept either a full node id or a bare GitHub login
	nodeID := user
	if !snap.Graph.HasNode(nodeID) {
		nodeID = models.UserNodeID(user)
	}
	node := snap.Graph.Node(nodeID)
	if node == nil {
		s.writeError(w, r, apperrors.NotFound(user))
		return
	}

	s.writeJSON(w, http.StatusOK, classify.Predict(nodeID, node.Attrs.Corpus, node.Attrs.AIRole))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Validation("invalid JSON body"))
		return
	}
	s.runIngest(w, r, req.GitHubUsername, req.SOUserID)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	s.runIngest(w, r, r.PathValue("username"), 0)
}

func (s *Server) runIngest(w http.ResponseWriter, r *http.Request, login string, soUserID int) {
	if s.enricher == nil {
		s.writeError(w, r, apperrors.New(apperrors.KindStoreUnavailable, "ingestion is not configured"))
		return
	}
	login = strings.TrimSpace(login)
	if login == "" {
		s.writeError(w, r, apperrors.Validation("github_username is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ingestTimeout)
	defer cancel()

	profile, err := s.enricher.EnrichProfile(ctx, login, soUserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.recommender.Invalidate(r.Context())
	// warm the snapshot off the request path; embeddings recompute here
	// when the new nodes push coverage below threshold
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if _, err := s.recommender.Snapshot(ctx); err != nil {
			s.logger.Warn("snapshot rebuild after ingest failed", "error", err)
		}
	}()

	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(apperrors.GetKind(err))
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err, "request_id", RequestID(r.Context()))
	}
	s.writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": RequestID(r.Context()),
	})
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindExternalSearch, apperrors.KindEmbeddingProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
