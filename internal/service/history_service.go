package service

import (
	"context"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/session"
	pkgEvents "prawnik-web/pkg/events"
)

type IHistoryService interface {
	First(ctx context.Context, s *session.State) (dto.HistoryPage, error)
	More(ctx context.Context, s *session.State) (dto.HistoryPage, error)
	Detail(ctx context.Context, s *session.State, queryID string) (*dto.QueryDetail, error)
	Delete(ctx context.Context, s *session.State, queryID string) error
}

type historyService struct {
	publisher SessionPublisher
	logger    logger.ILogger
}

func NewHistoryService(publisher SessionPublisher, log logger.ILogger) IHistoryService {
	return &historyService{publisher: publisher, logger: log}
}

func (h *historyService) First(ctx context.Context, s *session.State) (dto.HistoryPage, error) {
	return s.History.LoadFirst(ctx)
}

func (h *historyService) More(ctx context.Context, s *session.State) (dto.HistoryPage, error) {
	return s.History.LoadMore(ctx)
}

func (h *historyService) Detail(ctx context.Context, s *session.State, queryID string) (*dto.QueryDetail, error) {
	detail, err := s.History.Details(ctx, queryID)
	if err != nil {
		return nil, err
	}
	s.Ratings.Seed(detail)
	return detail, nil
}

func (h *historyService) Delete(ctx context.Context, s *session.State, queryID string) error {
	if err := s.History.Delete(ctx, queryID); err != nil {
		h.logger.Warn("HistoryService", "Delete rolled back", map[string]interface{}{
			"session_id": s.ID,
			"query_id":   queryID,
			"error":      err.Error(),
		})
		return err
	}
	s.ForgetQuery(queryID)
	h.publisher.PublishAnalytics(pkgEvents.QueryDeleted, map[string]interface{}{"query_id": queryID})
	return nil
}
