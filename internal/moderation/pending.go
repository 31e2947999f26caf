package moderation

import (
	"context"

	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

// PendingCounts is the administrator workload: self-registrations awaiting review
// (solicitudes) and pending claims (reclamaciones).
type PendingCounts struct {
	Solicitudes   int `json:"solicitudes"`
	Reclamaciones int `json:"reclamaciones"`
}

// PendingQueue lists what PendingCounts counts.
type PendingQueue struct {
	Entities []*models.Entity `json:"entities"`
	Claims   []*models.Claim  `json:"claims"`
}

// PendingCounts aggregates the moderation queue. It never fails: a count that cannot
// be read degrades to zero and is logged.
func (s *Service) PendingCounts(ctx context.Context) PendingCounts {
	var out PendingCounts
	for _, kind := range models.EntityKinds {
		n, err := s.entities.CountAwaitingReview(ctx, kind)
		if err != nil {
			s.logger.Warn("pending count degraded", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		out.Solicitudes += n
	}
	n, err := s.claims.CountPending(ctx)
	if err != nil {
		s.logger.Warn("pending claim count degraded", zap.Error(err))
	} else {
		out.Reclamaciones = n
	}
	return out
}

// ListPendingQueue returns every entity awaiting review and every pending claim.
func (s *Service) ListPendingQueue(ctx context.Context) (*PendingQueue, error) {
	q := &PendingQueue{Entities: []*models.Entity{}, Claims: []*models.Claim{}}
	for _, kind := range models.EntityKinds {
		list, err := s.entities.ListAwaitingReview(ctx, kind)
		if err != nil {
			return nil, s.storeErr("list awaiting review", err)
		}
		q.Entities = append(q.Entities, list...)
	}
	claims, err := s.claims.ListPending(ctx)
	if err != nil {
		return nil, s.storeErr("list pending claims", err)
	}
	q.Claims = append(q.Claims, claims...)
	return q, nil
}
