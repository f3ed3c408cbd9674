package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/internal/store"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("type", query.Type),
		zap.String("category", query.Category),
		zap.Int("limit", query.Limit))
	response, err := s.searcher.Search(r.Context(), &query)
	if err != nil {
		if errors.Is(err, models.ErrInvalidQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type fetchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Category == "" {
		req.Category = s.config.Providers.DefaultCategory
	}
	if req.Limit <= 0 {
		req.Limit = s.config.Search.DefaultLimit
	}
	s.logger.Debug("fetch request", zap.String("query", req.Query), zap.Int("limit", req.Limit))
	ids, err := s.indexer.FetchAndIndex(r.Context(), req.Query, req.Category, req.Limit)
	if err != nil {
		s.logger.Error("fetch failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"indexed": len(ids),
		"ids":     ids,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.logger.Error("status: count failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"images":            count,
		"vector_index_size": s.store.IndexSize(),
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"threshold":            s.config.Search.Threshold,
			"default_limit":        s.config.Search.DefaultLimit,
			"database_path":        s.config.Storage.DatabasePath,
		},
	})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", s.config.Search.DefaultLimit)
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}

	if q := r.URL.Query().Get("q"); q != "" && s.keywords != nil {
		ids, err := s.keywords.Search(r.Context(), q, limit)
		if err != nil {
			s.logger.Error("keyword search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		records := make([]*models.ImageRecord, 0, len(ids))
		for _, id := range ids {
			rec, err := s.store.Get(r.Context(), id)
			if err != nil {
				continue
			}
			records = append(records, rec)
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"images": records, "total": len(records)})
		return
	}

	records, err := s.store.List(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*models.ImageRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"images": records, "total": len(records)})
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "image not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete image request", zap.String("id", id))
	if err := s.indexer.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "image not found")
			return
		}
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
