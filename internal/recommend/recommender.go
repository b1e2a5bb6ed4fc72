// Package recommend builds recommendation pages from a user's saved books:
// profile encoding, a single scorer call, then category and random backfill.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/metrics"
	"github.com/hyperjump/bookshelf/internal/models"
	"github.com/hyperjump/bookshelf/internal/scoring"
	"github.com/hyperjump/bookshelf/internal/storage"
)

// Store is the subset of storage the recommender reads.
type Store interface {
	SavedBooks(ctx context.Context, userID string) ([]*models.Book, error)
	FindBooks(ctx context.Context, filter storage.BookFilter, sort storage.SortOrder, skip, limit int) ([]*models.Book, error)
	CountBooks(ctx context.Context, filter storage.BookFilter) (int, error)
	SampleBooks(ctx context.Context, filter storage.BookFilter, size int) ([]*models.Book, error)
}

// Config holds recommender tuning.
type Config struct {
	TopK         int
	DefaultLimit int
	MaxLimit     int
}

// Recommender produces recommendation pages. It holds no per-user state.
type Recommender struct {
	store   Store
	scorer  scoring.Scorer
	encoder *Encoder
	cfg     Config
	logger  *zap.Logger
}

// Option configures a Recommender.
type Option func(*Recommender)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recommender) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a recommender.
func New(store Store, scorer scoring.Scorer, encoder *Encoder, cfg Config, opts ...Option) *Recommender {
	if cfg.TopK <= 0 {
		cfg.TopK = 20
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = models.DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = models.MaxLimit
	}
	r := &Recommender{
		store:   store,
		scorer:  scorer,
		encoder: encoder,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend returns one page of recommendations for userID. Page and limit
// are clamped rather than rejected, and an unknown user is served as one with
// no history. Scorer failures degrade to a random page; store failures are returned.
func (r *Recommender) Recommend(ctx context.Context, userID string, page, limit int) (*models.Recommendation, error) {
	start := time.Now()
	page, limit = models.NormalizePage(page, limit, r.cfg.DefaultLimit, r.cfg.MaxLimit)

	saved, err := r.store.SavedBooks(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load saved books: %w", err)
		}
		r.logger.Debug("unknown user, serving empty history", zap.String("user_id", userID))
		saved = nil
	}

	req := newRequest(userID, saved, page, limit)
	var rec *models.Recommendation
	if len(saved) == 0 {
		rec, err = r.randomPage(ctx, req, models.ProvenanceRandom)
	} else {
		rec, err = r.personalizedPage(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	rec.QueryTime = time.Since(start).Milliseconds()
	r.record(rec)
	return rec, nil
}

// randomPage samples limit books outside the saved set.
func (r *Recommender) randomPage(ctx context.Context, req *request, label models.Provenance) (*models.Recommendation, error) {
	filter := storage.BookFilter{ExcludeIDs: req.savedIDs.IDs()}
	total, err := r.store.CountBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	window := Paginate(total, req.page, req.limit)
	if !window.Beyond(req.page) {
		books, err := r.store.SampleBooks(ctx, filter, req.limit)
		if err != nil {
			return nil, fmt.Errorf("sample books: %w", err)
		}
		req.add(tierRandom, books)
	}
	return r.result(req, label, total, window), nil
}

func (r *Recommender) personalizedPage(ctx context.Context, req *request) (*models.Recommendation, error) {
	total, err := r.store.CountBooks(ctx, storage.BookFilter{ExcludeIDs: req.savedIDs.IDs()})
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	window := Paginate(total, req.page, req.limit)
	if window.Beyond(req.page) {
		return r.result(req, provenanceFor(req.counts), total, window), nil
	}
	req.skip = window.Skip

	tiers := []tier{
		{name: tierCategory, run: r.categoryTier},
		{name: tierRandom, run: r.randomTier},
	}
	profile := r.encoder.Encode(req.saved)
	if profile.Diagnostics.ActiveFeatures == 0 {
		// The scorer's output for an empty profile carries no signal.
		r.logger.Debug("empty profile, skipping scorer", zap.String("user_id", req.userID))
	} else {
		ranked, err := r.scorer.Score(ctx, profile.Vector, r.cfg.TopK)
		if err != nil {
			r.logger.Warn("scorer failed, falling back to random sample",
				zap.String("user_id", req.userID),
				zap.Int("active_features", profile.Diagnostics.ActiveFeatures),
				zap.Error(err))
			return r.randomPage(ctx, req, models.ProvenanceRandomFallback)
		}
		tiers = append([]tier{{name: tierModel, run: r.modelTier(ranked)}}, tiers...)
	}

	reports, err := runTiers(ctx, req, tiers)
	if err != nil {
		return nil, err
	}
	for _, rep := range reports {
		r.logger.Debug("tier finished",
			zap.String("user_id", req.userID),
			zap.String("tier", rep.Tier),
			zap.Int("added", rep.Added),
			zap.Stringer("outcome", rep.Outcome))
	}
	return r.result(req, provenanceFor(req.counts), total, window), nil
}

// modelTier fetches the page window of scored books, sorted by title.
func (r *Recommender) modelTier(ranked []int) func(context.Context, *request) ([]*models.Book, error) {
	return func(ctx context.Context, req *request) ([]*models.Book, error) {
		if len(ranked) == 0 {
			return nil, nil
		}
		return r.store.FindBooks(ctx, storage.BookFilter{
			DenseIndexes: ranked,
			ExcludeIDs:   req.savedIDs.IDs(),
		}, storage.SortTitle, req.skip, req.limit)
	}
}

// categoryTier fetches the highest rated books sharing a saved category.
func (r *Recommender) categoryTier(ctx context.Context, req *request) ([]*models.Book, error) {
	categories := savedCategories(req.saved)
	if len(categories) == 0 {
		return nil, nil
	}
	return r.store.FindBooks(ctx, storage.BookFilter{
		Categories: categories,
		ExcludeIDs: req.excluded(),
	}, storage.SortRatingDesc, 0, req.shortfall())
}

// randomTier samples the remaining shortfall.
func (r *Recommender) randomTier(ctx context.Context, req *request) ([]*models.Book, error) {
	return r.store.SampleBooks(ctx, storage.BookFilter{ExcludeIDs: req.excluded()}, req.shortfall())
}

func (r *Recommender) result(req *request, label models.Provenance, total int, window Window) *models.Recommendation {
	return &models.Recommendation{
		UserID:     req.userID,
		Books:      req.books,
		Provenance: label,
		Page:       req.page,
		Limit:      req.limit,
		Total:      total,
		TotalPages: window.TotalPages,
		Tiers:      req.counts,
	}
}

func (r *Recommender) record(rec *models.Recommendation) {
	metrics.RecommendationsTotal.WithLabelValues(string(rec.Provenance)).Inc()
	if rec.Tiers.Model > 0 {
		metrics.TierBooksTotal.WithLabelValues(tierModel).Add(float64(rec.Tiers.Model))
	}
	if rec.Tiers.Category > 0 {
		metrics.TierBooksTotal.WithLabelValues(tierCategory).Add(float64(rec.Tiers.Category))
	}
	if rec.Tiers.Random > 0 {
		metrics.TierBooksTotal.WithLabelValues(tierRandom).Add(float64(rec.Tiers.Random))
	}
	r.logger.Info("recommendations served",
		zap.String("user_id", rec.UserID),
		zap.String("provenance", string(rec.Provenance)),
		zap.Int("page", rec.Page),
		zap.Int("returned", len(rec.Books)),
		zap.Int64("query_time_ms", rec.QueryTime))
}
