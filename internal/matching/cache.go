package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aksharjobs/matchscore/internal/store"
	"github.com/google/uuid"
)

// Cache memoizes match results per (user, job) in a document collection. A
// unique index over the pair guarantees at most one stored result.
type Cache struct {
	coll store.Collection
	now  func() time.Time
}

func NewCache(coll store.Collection) *Cache {
	return &Cache{coll: coll, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureIndexes creates the unique (userId, jobId) index.
func (c *Cache) EnsureIndexes(ctx context.Context) error {
	return c.coll.EnsureUniqueIndex(ctx, fieldUserID, fieldJobID)
}

// Get returns the stored result for the pair or nil when there is none.
func (c *Cache) Get(ctx context.Context, userID, jobID string) (*MatchResult, error) {
	doc, err := c.coll.FindOne(ctx, pairFilter(userID, jobID))
	if errors.Is(err, store.ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(doc)
}

// Save inserts a new result. It fails with ErrCacheWriteConflict when a result
// for the pair already exists.
func (c *Cache) Save(ctx context.Context, result *MatchResult) (string, error) {
	now := c.now()
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	id, err := c.coll.InsertOne(ctx, result.document())
	if errors.Is(err, store.ErrDuplicateKey) {
		return "", fmt.Errorf("%w: %w", ErrCacheWriteConflict, err)
	}
	if err != nil {
		return "", err
	}

	result.ID = id
	return id, nil
}

// SaveOrGet inserts the result unless one exists for the pair. On conflict the
// already committed result is returned with created set to false.
func (c *Cache) SaveOrGet(ctx context.Context, result *MatchResult) (stored *MatchResult, created bool, err error) {
	if _, err := c.Save(ctx, result); err != nil {
		if !errors.Is(err, ErrCacheWriteConflict) {
			return nil, false, err
		}

		winner, getErr := c.Get(ctx, result.UserID, result.JobID)
		if getErr != nil {
			return nil, false, getErr
		}
		if winner == nil {
			return nil, false, err
		}
		return winner, false, nil
	}
	return result, true, nil
}

// Complete stores the computed scores on an existing record of the pair that
// has no final score yet, such as an application created before scoring ran.
// The status is updated only when result.Status is set. It reports false when
// no record without a score matched.
func (c *Cache) Complete(ctx context.Context, result *MatchResult) (bool, error) {
	set := result.scoreDocument()
	set[fieldUpdatedAt] = c.now()
	if result.Status != "" {
		set[fieldStatus] = result.Status
	}

	filter := pairFilter(result.UserID, result.JobID)
	filter[fieldFinalScore] = nil

	res, err := c.coll.UpdateOne(ctx, filter, set)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// UpdateStatus changes the status of the pair's record and, when given, its
// interview date and mode. Scores are never touched. It reports false when no
// record exists.
func (c *Cache) UpdateStatus(ctx context.Context, userID, jobID, status, interviewDate, interviewMode string) (bool, error) {
	set := store.Document{
		fieldStatus:    status,
		fieldUpdatedAt: c.now(),
	}
	if interviewDate != "" {
		set[fieldInterviewDate] = interviewDate
	}
	if interviewMode != "" {
		set[fieldInterviewMode] = interviewMode
	}

	res, err := c.coll.UpdateOne(ctx, pairFilter(userID, jobID), set)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func pairFilter(userID, jobID string) store.Filter {
	return store.Filter{fieldUserID: userID, fieldJobID: jobID}
}
