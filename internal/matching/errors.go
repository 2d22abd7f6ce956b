package matching

import "errors"

var (
	// ErrNoResumeFound means the user has neither a profile resume nor a legacy resume.
	ErrNoResumeFound = errors.New("no resume found, please upload a resume first")
	// ErrJobNotFound means the job id does not resolve to a job posting.
	ErrJobNotFound = errors.New("job not found")
	// ErrApplicationNotFound means there is no match record for the user and job.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrCacheWriteConflict means another writer stored a result for the same
	// user and job first.
	ErrCacheWriteConflict = errors.New("match result already stored for user and job")
	// ErrScoringFailed wraps unexpected failures while scoring.
	ErrScoringFailed = errors.New("match scoring failed")

	errNoInsight = errors.New("insight provider returned no result")
)

// IsNotFound reports whether err is one of the user-facing not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoResumeFound) ||
		errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrApplicationNotFound)
}
