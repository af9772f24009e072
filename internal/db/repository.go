package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driftlab/skyfeed/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// Create inserts a post, ignoring the write if the uri already exists.
// Redelivered create events are no-ops.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uri"}},
			DoNothing: true,
		}).
		Create(post).Error
}

// DeleteByURI removes a post by its at-uri.
func (r *PostRepository) DeleteByURI(ctx context.Context, uri string) error {
	return r.db.WithContext(ctx).Where("uri = ?", uri).Delete(&models.Post{}).Error
}

// IncrementLikes atomically adds delta to the like counter of the post
// with the given subject uri. Returns the number of rows updated; a miss
// (post not indexed) updates nothing.
func (r *PostRepository) IncrementLikes(ctx context.Context, uri string, delta int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("uri = ?", uri).
		UpdateColumn("likes", gorm.Expr("likes + ?", delta))
	return res.RowsAffected, res.Error
}

// IncrementReplies atomically adds delta to the reply counter, which
// repost events feed.
func (r *PostRepository) IncrementReplies(ctx context.Context, uri string, delta int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("uri = ?", uri).
		UpdateColumn("replies", gorm.Expr("replies + ?", delta))
	return res.RowsAffected, res.Error
}

// PostFilter describes the static predicate of a recency feed.
type PostFilter struct {
	// Lang matches posts whose comma-joined langs contain this tag.
	Lang string
	// Authors restricts to an allow-list of author DIDs.
	Authors []string
	// TagContains matches posts whose tag list contains this substring.
	TagContains string
	// MissingAlt selects posts that carry an image but no alt text.
	MissingAlt bool
}

// ScanRecent retrieves posts matching the filter ordered by
// (indexed_at DESC, id DESC). A non-zero keyset (beforeTime, beforeID)
// restricts to rows strictly below it in that ordering.
func (r *PostRepository) ScanRecent(ctx context.Context, filter PostFilter, beforeTime time.Time, beforeID int64, limit int) ([]models.Post, error) {
	query := r.db.WithContext(ctx).Model(&models.Post{})
	query = applyFilter(query, filter)

	if !beforeTime.IsZero() {
		query = query.Where("(indexed_at, id) < (?, ?)", beforeTime, beforeID)
	}

	var posts []models.Post
	err := query.
		Order("indexed_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// TopByLikes retrieves the candidate set for decayed-score ranking:
// the top n posts by raw like count.
func (r *PostRepository) TopByLikes(ctx context.Context, n int) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Order("likes DESC").
		Order("id DESC").
		Limit(n).
		Find(&posts).Error
	return posts, err
}

// ScanForSnapshot retrieves up to limit posts matching the filter in
// (indexed_at DESC, id DESC) order for a snapshot refresh.
func (r *PostRepository) ScanForSnapshot(ctx context.Context, filter PostFilter, limit int) ([]models.Post, error) {
	return r.ScanRecent(ctx, filter, time.Time{}, 0, limit)
}

// DeleteOlderThan removes posts indexed before the cutoff. Returns the
// number of rows removed.
func (r *PostRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("indexed_at < ?", cutoff).Delete(&models.Post{})
	return res.RowsAffected, res.Error
}

func applyFilter(query *gorm.DB, filter PostFilter) *gorm.DB {
	if filter.Lang != "" {
		query = query.Where("langs LIKE ?", "%"+filter.Lang+"%")
	}
	if len(filter.Authors) > 0 {
		query = query.Where("author IN ?", filter.Authors)
	}
	if filter.TagContains != "" {
		query = query.Where("tags LIKE ?", "%"+filter.TagContains+"%")
	}
	if filter.MissingAlt {
		query = query.Where("has_image = ? AND alt_text = ?", true, "")
	}
	return query
}

// GraphRepository provides block/follow edge operations
type GraphRepository struct {
	*Repository
}

// NewGraphRepository creates a new graph repository
func NewGraphRepository(repo *Repository) *GraphRepository {
	return &GraphRepository{Repository: repo}
}

// CreateBlock inserts a block edge, ignoring redelivered records.
func (r *GraphRepository) CreateBlock(ctx context.Context, block *models.Block) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rkey"}},
			DoNothing: true,
		}).
		Create(block).Error
}

// DeleteBlock removes a block edge by record key.
func (r *GraphRepository) DeleteBlock(ctx context.Context, rkey string) error {
	return r.db.WithContext(ctx).Where("rkey = ?", rkey).Delete(&models.Block{}).Error
}

// CreateFollow inserts a follow edge, ignoring redelivered records.
func (r *GraphRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rkey"}},
			DoNothing: true,
		}).
		Create(follow).Error
}

// DeleteFollow removes a follow edge by record key.
func (r *GraphRepository) DeleteFollow(ctx context.Context, rkey string) error {
	return r.db.WithContext(ctx).Where("rkey = ?", rkey).Delete(&models.Follow{}).Error
}

// DeleteEdgesOlderThan removes block and follow edges created before the
// cutoff. Returns the total number of rows removed.
func (r *GraphRepository) DeleteEdgesOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	blocks := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Block{})
	if blocks.Error != nil {
		return blocks.RowsAffected, blocks.Error
	}
	follows := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.Follow{})
	return blocks.RowsAffected + follows.RowsAffected, follows.Error
}

// StatsRepository provides feed usage counter operations
type StatsRepository struct {
	*Repository
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(repo *Repository) *StatsRepository {
	return &StatsRepository{Repository: repo}
}

// IncrementFetchCount creates the (feed, requester) row on first fetch
// and atomically increments it thereafter.
func (r *StatsRepository) IncrementFetchCount(ctx context.Context, feed, requester string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "feed"}, {Name: "requester"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"fetch_count": gorm.Expr("feed_stats.fetch_count + 1"),
			}),
		}).
		Create(&models.FeedStats{Feed: feed, Requester: requester, FetchCount: 1}).Error
}

// StateRepository provides subscription cursor operations
type StateRepository struct {
	*Repository
}

// NewStateRepository creates a new state repository
func NewStateRepository(repo *Repository) *StateRepository {
	return &StateRepository{Repository: repo}
}

// GetCursor retrieves the last-applied event cursor for a service, or 0
// when no cursor has been persisted yet.
func (r *StateRepository) GetCursor(ctx context.Context, service string) (int64, error) {
	var state models.SubscriptionState
	if err := r.db.WithContext(ctx).Where("service = ?", service).First(&state).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return state.Cursor, nil
}

// SaveCursor upserts the event cursor for a service.
func (r *StateRepository) SaveCursor(ctx context.Context, service string, cursor int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service"}},
			DoUpdates: clause.AssignmentColumns([]string{"cursor"}),
		}).
		Create(&models.SubscriptionState{Service: service, Cursor: cursor}).Error
}
