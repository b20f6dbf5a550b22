package audit

import (
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

type Repository interface {
	Append(entry *Entry) error
	List(limit, offset int) ([]*Entry, error)
	ListByEntity(entityID string, limit, offset int) ([]*Entry, error)
}

// Service is the append-only audit logger. Log is called after the mutation
// it records has committed, never before, so the log only reflects committed
// history.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log appends one entry. Append failures are logged and swallowed: the
// business mutation has already committed and must not be rolled back for a
// missing audit row, but the gap is loud in the logs.
func (s *Service) Log(action Action, entityID, details, userID string) *Entry {
	entry := &Entry{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		Action:    action,
		EntityID:  entityID,
		Details:   details,
		UserID:    userID,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Append(entry); err != nil {
		s.logger.Error("audit append failed",
			"action", string(action),
			"entity_id", entityID,
			"error", err)
		return entry
	}

	s.logger.Debug("audit entry written",
		"action", string(action),
		"entity_id", entityID,
		"user_id", userID)
	return entry
}

// List returns entries newest first for dashboard consumption.
func (s *Service) List(limit, offset int) ([]*Entry, error) {
	return s.repo.List(limit, offset)
}

func (s *Service) ListByEntity(entityID string, limit, offset int) ([]*Entry, error) {
	return s.repo.ListByEntity(entityID, limit, offset)
}
