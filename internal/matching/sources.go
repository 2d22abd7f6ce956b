package matching

import (
	"context"
	"errors"

	"github.com/aksharjobs/matchscore/internal/records"
	"github.com/aksharjobs/matchscore/internal/store"
	"go.uber.org/zap"
)

// ResumeSource resolves the resumes of a user. Absence is reported as nil
// results, not as an error.
type ResumeSource interface {
	// ModernResume returns the resume embedded in the user profile.
	ModernResume(ctx context.Context, userID string) (*records.Resume, error)
	// LegacyResumes returns the standalone resume documents of the user.
	LegacyResumes(ctx context.Context, userID string) ([]records.Resume, error)
}

// JobSource resolves job postings.
type JobSource interface {
	Job(ctx context.Context, jobID string) (*records.Job, error)
}

const (
	profileResumeField = "resume"
	legacyUserField    = "userId"
)

// StoreSources reads resumes and jobs from document collections: the user
// profile keeps the modern resume under "resume", legacy resumes reference
// their owner by "userId".
type StoreSources struct {
	users   store.Collection
	resumes store.Collection
	jobs    store.Collection
	logger  *zap.Logger
}

var (
	_ ResumeSource = (*StoreSources)(nil)
	_ JobSource    = (*StoreSources)(nil)
)

func NewStoreSources(users, resumes, jobs store.Collection, logger *zap.Logger) *StoreSources {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSources{users: users, resumes: resumes, jobs: jobs, logger: logger}
}

func (s *StoreSources) ModernResume(ctx context.Context, userID string) (*records.Resume, error) {
	user, err := s.users.FindOne(ctx, store.Filter{store.IDField: userID})
	if errors.Is(err, store.ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	raw, ok := user[profileResumeField].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	resume, err := records.DecodeResume(raw)
	if err != nil {
		s.logger.Warn("profile resume is partially malformed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return &resume, nil
}

func (s *StoreSources) LegacyResumes(ctx context.Context, userID string) ([]records.Resume, error) {
	docs, err := s.resumes.Find(ctx, store.Filter{legacyUserField: userID})
	if err != nil {
		return nil, err
	}

	result := make([]records.Resume, 0, len(docs))
	for _, doc := range docs {
		resume, err := records.DecodeResume(doc)
		if err != nil {
			s.logger.Warn("legacy resume is partially malformed",
				zap.String("user_id", userID),
				zap.Any("resume_id", doc[store.IDField]),
				zap.Error(err),
			)
		}
		result = append(result, resume)
	}
	return result, nil
}

func (s *StoreSources) Job(ctx context.Context, jobID string) (*records.Job, error) {
	doc, err := s.jobs.FindOne(ctx, store.Filter{store.IDField: jobID})
	if errors.Is(err, store.ErrNoDocument) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job, err := records.DecodeJob(doc)
	if err != nil {
		s.logger.Warn("job is partially malformed", zap.String("job_id", jobID), zap.Error(err))
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}
