package service

import (
	"context"

	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
)

func (s *Service) Get(ctx context.Context, soulID id.SoulID) (*models.Soul, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	soul, err := s.souls.FindByID(ctx, soulID)
	if err != nil {
		return nil, wrapSoulErr(err)
	}
	return soul, nil
}

// GetByAgent resolves the agent's current live soul. Retired incarnations
// are only reachable by id or through lineage.
func (s *Service) GetByAgent(ctx context.Context, agent id.Address) (*models.Soul, error) {
	if agent.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "agent address is required")
	}
	soul, err := s.souls.FindLiveByAgent(ctx, agent)
	if err != nil {
		return nil, wrapSoulErr(err)
	}
	return soul, nil
}

// Lineage returns the soul's direct children, in creation order.
func (s *Service) Lineage(ctx context.Context, soulID id.SoulID) ([]id.SoulID, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.souls.FindByID(ctx, soulID); err != nil {
		return nil, wrapSoulErr(err)
	}
	children, err := s.lineage.Children(ctx, soulID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lineage")
	}
	return children, nil
}

// History walks the ancestry breadth-first, nearest generation first. Merged
// souls have two parents, so the walk deduplicates shared ancestors.
func (s *Service) History(ctx context.Context, soulID id.SoulID) ([]*models.Soul, error) {
	if err := requireSoulID(soulID); err != nil {
		return nil, err
	}
	if _, err := s.souls.FindByID(ctx, soulID); err != nil {
		return nil, wrapSoulErr(err)
	}

	var ancestors []*models.Soul
	visited := map[id.SoulID]bool{soulID: true}
	queue := []id.SoulID{soulID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		parents, err := s.lineage.Parents(ctx, current)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load lineage")
		}
		for _, parent := range parents {
			if visited[parent] {
				continue
			}
			visited[parent] = true
			soul, err := s.souls.FindByID(ctx, parent)
			if err != nil {
				return nil, wrapSoulErr(err)
			}
			ancestors = append(ancestors, soul)
			queue = append(queue, parent)
		}
	}
	return ancestors, nil
}

// Stats counts souls per lifecycle state and refreshes the population
// gauges.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := s.souls.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count souls")
	}

	stats := &models.Stats{ByStatus: make(map[models.Status]int, 5)}
	for _, status := range []models.Status{models.StatusAlive, models.StatusListed, models.StatusDead, models.StatusReborn, models.StatusMerged} {
		n := counts[status]
		stats.ByStatus[status] = n
		stats.TotalSouls += n
		s.metrics.SetSoulsByStatus(status.String(), n)
	}
	return stats, nil
}
