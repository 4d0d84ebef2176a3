package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bentech3/online-board-api/internal/models"
	appErrors "github.com/bentech3/online-board-api/pkg/errors"
	"github.com/bentech3/online-board-api/pkg/jobs"
)

type viewRepository interface {
	Create(ctx context.Context, view *models.ViewEvent) error
	CountForNotice(ctx context.Context, noticeID string) (int, error)
}

// viewSession tracks which notices a browsing session has already counted.
// Sessions are identified by an opaque client-chosen token, not by user, so
// an anonymous reader gets the same dedup behaviour as a logged-in one.
type viewSession struct {
	mu   sync.Mutex
	seen map[string]struct{}
	last time.Time
}

// markNew atomically filters out notice IDs this session has already seen
// and marks the remainder as seen. Concurrent calls with the same IDs agree
// on a single winner per notice.
func (s *viewSession) markNew(noticeIDs []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = time.Now()
	var fresh []string
	for _, id := range noticeIDs {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

// ViewService counts at most one view per notice per session and persists
// the events in the background. Persistence is best effort: a failed write
// is retried by the queue and never surfaces to the reader.
type ViewService struct {
	repo   viewRepository
	queue  *jobs.Queue
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*viewSession
}

type viewJobPayload struct {
	NoticeID  string
	ViewerID  *string
	SessionID string
	ViewedAt  time.Time
}

// NewViewService constructs the service and its persistence queue. Call
// Start before recording views and Stop on shutdown.
func NewViewService(repo viewRepository, workers, retries int, logger *zap.Logger) *ViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ViewService{
		repo:     repo,
		logger:   logger,
		sessions: make(map[string]*viewSession),
	}
	s.queue = jobs.NewQueue("notice-views", s.persistView, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// Start launches the persistence workers.
func (s *ViewService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the persistence workers.
func (s *ViewService) Stop() {
	s.queue.Stop()
}

// RecordViews registers views of the given notices for a session, returning
// the notice IDs that were counted for the first time. Repeats within the
// same session are silently skipped.
func (s *ViewService) RecordViews(ctx context.Context, sessionID string, viewerID *string, noticeIDs []string) ([]string, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session id is required")
	}
	if len(noticeIDs) == 0 {
		return nil, nil
	}

	session := s.session(sessionID)
	fresh := session.markNew(noticeIDs)
	if len(fresh) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	for _, noticeID := range fresh {
		err := s.queue.Enqueue(jobs.Job{
			ID:   uuid.NewString(),
			Type: "notice_view",
			Payload: viewJobPayload{
				NoticeID:  noticeID,
				ViewerID:  viewerID,
				SessionID: sessionID,
				ViewedAt:  now,
			},
		})
		if err != nil {
			s.logger.Warn("failed to enqueue view event",
				zap.String("notice_id", noticeID),
				zap.Error(err),
			)
		}
	}
	return fresh, nil
}

// Count returns the persisted distinct view count for a notice.
func (s *ViewService) Count(ctx context.Context, noticeID string) (int, error) {
	total, err := s.repo.CountForNotice(ctx, noticeID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count views")
	}
	return total, nil
}

// PruneSessions drops sessions idle longer than maxIdle and returns how many
// were removed. Intended to run on a timer from main.
func (s *ViewService) PruneSessions(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.last.Before(cutoff)
		session.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *ViewService) session(id string) *viewSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		session = &viewSession{seen: make(map[string]struct{})}
		s.sessions[id] = session
	}
	return session
}

func (s *ViewService) persistView(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(viewJobPayload)
	if !ok {
		s.logger.Error("unexpected view job payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, &models.ViewEvent{
		NoticeID:  payload.NoticeID,
		ViewerID:  payload.ViewerID,
		SessionID: payload.SessionID,
		ViewedAt:  payload.ViewedAt,
	})
}
