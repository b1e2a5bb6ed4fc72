package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/config"
	"github.com/hyperjump/bookshelf/internal/indexer"
	"github.com/hyperjump/bookshelf/internal/keyword"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/scoring"
	"github.com/hyperjump/bookshelf/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt reads an integer query parameter. Missing or malformed values read as 0
// and are clamped downstream.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleSearchBooks(w http.ResponseWriter, r *http.Request) {
	query := models.BookQuery{
		Query: r.URL.Query().Get("q"),
		Page:  queryInt(r, "page"),
		Limit: queryInt(r, "limit"),
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("page", query.Page), zap.Int("limit", query.Limit))
	page, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var input models.BookInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index book request", zap.String("id", input.ID), zap.String("title", input.Title))
	book, err := s.indexer.IndexBook(r.Context(), &input)
	if err != nil {
		if errors.Is(err, indexer.ErrInvalidBook) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, book)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.storage.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "book not found")
		return
	}
	s.respondJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete book request", zap.String("id", id))
	if err := s.indexer.DeleteBook(r.Context(), id); err != nil {
		s.respondStoreError(w, err, "book not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var input models.UserInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	ctx := r.Context()
	if _, err := s.storage.GetUser(ctx, input.ID); err == nil {
		s.respondError(w, http.StatusConflict, "user already exists")
		return
	} else if !storage.IsNotFound(err) {
		s.respondStoreError(w, err, "")
		return
	}
	user := &models.User{ID: input.ID, Name: input.Name, SavedBookIDs: []string{}}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.storage.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondStoreError(w, err, "user not found")
		return
	}
	if user.SavedBookIDs == nil {
		user.SavedBookIDs = []string{}
	}
	s.respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	books, err := s.storage.SavedBooks(r.Context(), userID)
	if err != nil {
		s.respondStoreError(w, err, "user not found")
		return
	}
	if books == nil {
		books = []*models.Book{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "books": books})
}

func (s *Server) handleSaveBook(w http.ResponseWriter, r *http.Request) {
	userID, bookID := chi.URLParam(r, "id"), chi.URLParam(r, "bookID")
	added, err := s.storage.SaveBook(r.Context(), userID, bookID)
	if err != nil {
		s.respondStoreError(w, err, "user or book not found")
		return
	}
	s.logger.Debug("save book", zap.String("user_id", userID), zap.String("book_id", bookID), zap.Bool("added", added))
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, map[string]interface{}{"user_id": userID, "book_id": bookID, "added": added})
}

func (s *Server) handleUnsaveBook(w http.ResponseWriter, r *http.Request) {
	userID, bookID := chi.URLParam(r, "id"), chi.URLParam(r, "bookID")
	removed, err := s.storage.UnsaveBook(r.Context(), userID, bookID)
	if err != nil {
		s.respondStoreError(w, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "book_id": bookID, "removed": removed})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	rec, err := s.recommender.Recommend(r.Context(), userID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		s.logger.Error("recommendation failed", zap.String("user_id", userID), zap.Error(err))
		s.respondStoreError(w, err, "")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAssignDenseIndexes(w http.ResponseWriter, r *http.Request) {
	assigned, err := s.indexer.AssignDenseIndexes(r.Context())
	if err != nil {
		s.logger.Error("dense index maintenance failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if assigned == nil {
		assigned = []storage.DenseAssignment{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"assigned": len(assigned), "assignments": assigned})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := CollectStatus(r.Context(), s.storage, s.keywordIndex, s.scorer, s.config)
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.watch != nil {
		st.Directories = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, st)
}

// CollectStatus gathers catalog counts, index size, disk usage, and scorer details.
// kw, scorer, and cfg may be nil.
func CollectStatus(ctx context.Context, store storage.Storage, kw keyword.Index, scorer scoring.Scorer, cfg *config.Config) (*models.Status, error) {
	var (
		st  models.Status
		err error
	)
	if st.Books, err = store.CountBooks(ctx, storage.BookFilter{}); err != nil {
		return nil, err
	}
	if st.BooksWithIndex, err = store.CountBooks(ctx, storage.BookFilter{HasDenseIndex: storage.BoolPtr(true)}); err != nil {
		return nil, err
	}
	if st.Users, err = store.CountUsers(ctx); err != nil {
		return nil, err
	}
	if kw != nil {
		if st.KeywordIndexSize, err = kw.DocCount(); err != nil {
			return nil, err
		}
	}
	if cfg == nil {
		return &st, nil
	}

	if usage, err := storage.DiskUsageByPath(map[string]string{
		"database":     cfg.Storage.DatabasePath,
		"bleve_index":  cfg.Storage.BleveIndexPath,
		"scorer_model": cfg.Model.ModelPath,
	}); err == nil {
		var total int64
		for _, n := range usage {
			total += n
		}
		st.DiskUsage = usage
		st.DiskUsageBytes = &total
	}
	st.Model = &models.ModelStatus{
		ModelPath:        cfg.Model.ModelPath,
		InputWidth:       cfg.Model.InputWidth,
		OutputWidth:      cfg.Model.OutputWidth,
		DirectIndexSlots: cfg.Model.DirectIndexSlots,
		TopK:             cfg.Model.TopK,
	}
	if stater, ok := scorer.(interface{ State() string }); ok {
		st.Model.BreakerState = stater.State()
	}
	return &st, nil
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistDirectories writes the current watch list back to the config file.
func (s *Server) persistDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Catalog.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondStoreError maps storage.ErrNotFound to 404 and anything else to 500.
func (s *Server) respondStoreError(w http.ResponseWriter, err error, notFound string) {
	if storage.IsNotFound(err) {
		if notFound == "" {
			notFound = err.Error()
		}
		s.respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
