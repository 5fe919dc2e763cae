package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/voicenotes-backend/internal/apierr"
	"github.com/yungbote/voicenotes-backend/internal/extraction"
	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/repos"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

type StickyService interface {
	// Generate produces stickies for a learning request and persists them
	// under a domain label deduplicated against the owner's existing
	// labels.
	Generate(ctx context.Context, ownerID uuid.UUID, text string) (string, []*types.LearningSticky, error)
	List(ctx context.Context, ownerID uuid.UUID, domain string) ([]*types.LearningSticky, error)
	Domains(ctx context.Context, ownerID uuid.UUID) ([]string, error)
	// CombineDomains relabels every sticky under the from labels to the to
	// label and returns how many rows moved.
	CombineDomains(ctx context.Context, ownerID uuid.UUID, from []string, to string) (int64, error)
}

type stickyService struct {
	log    *logger.Logger
	repo   repos.StickyRepo
	engine *extraction.Engine
}

func NewStickyService(log *logger.Logger, repo repos.StickyRepo, engine *extraction.Engine) StickyService {
	return &stickyService{
		log:    log.With("service", "StickyService"),
		repo:   repo,
		engine: engine,
	}
}

func (s *stickyService) Generate(ctx context.Context, ownerID uuid.UUID, text string) (string, []*types.LearningSticky, error) {
	if ownerID == uuid.Nil {
		return "", nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}

	existing, err := s.repo.DistinctDomains(ctx, nil, ownerID)
	if err != nil {
		return "", nil, fmt.Errorf("list existing domains: %w", err)
	}

	domain, generated, err := s.engine.GenerateStickies(ctx, text, existing)
	if err != nil {
		var serr *extraction.ServiceError
		if errors.As(err, &serr) {
			return "", nil, apierr.New(http.StatusUnprocessableEntity, "generation_failed", err)
		}
		return "", nil, err
	}

	stickies := make([]*types.LearningSticky, 0, len(generated))
	for _, g := range generated {
		sticky := &types.LearningSticky{
			OwnerID:    ownerID,
			Domain:     &domain,
			Concept:    g.Concept,
			Definition: g.Definition,
			Example:    g.Example,
		}
		if len(g.RelatedTerms) > 0 {
			terms, err := json.Marshal(g.RelatedTerms)
			if err != nil {
				return "", nil, fmt.Errorf("encode related terms: %w", err)
			}
			sticky.RelatedTerms = terms
		}
		stickies = append(stickies, sticky)
	}

	created, err := s.repo.CreateBatch(ctx, nil, stickies)
	if err != nil {
		return "", nil, fmt.Errorf("persist stickies: %w", err)
	}
	s.log.Info("Stickies generated", "domain", domain, "count", len(created))
	return domain, created, nil
}

func (s *stickyService) List(ctx context.Context, ownerID uuid.UUID, domain string) ([]*types.LearningSticky, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	return s.repo.ListByOwner(ctx, nil, ownerID, strings.TrimSpace(domain))
}

func (s *stickyService) Domains(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	return s.repo.DistinctDomains(ctx, nil, ownerID)
}

func (s *stickyService) CombineDomains(ctx context.Context, ownerID uuid.UUID, from []string, to string) (int64, error) {
	if ownerID == uuid.Nil {
		return 0, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}

	to = strings.TrimSpace(to)
	cleaned := make([]string, 0, len(from))
	for _, f := range from {
		f = strings.TrimSpace(f)
		if f == "" || strings.EqualFold(f, to) {
			continue
		}
		cleaned = append(cleaned, f)
	}
	if to == "" || len(cleaned) == 0 {
		return 0, apierr.New(http.StatusBadRequest, "invalid_combine", fmt.Errorf("combine needs a target label and at least one distinct source label"))
	}

	moved, err := s.repo.CombineDomains(ctx, nil, ownerID, cleaned, to)
	if err != nil {
		return 0, fmt.Errorf("combine domains: %w", err)
	}
	s.log.Info("Domains combined", "to", to, "from_count", len(cleaned), "stickies_moved", moved)
	return moved, nil
}
