package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/voicenotes-backend/internal/apierr"
	"github.com/yungbote/voicenotes-backend/internal/extraction"
	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/repos"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

// TaskUpdate carries the editable fields of a task; nil means unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Type        *string
	Priority    *string
	DueDate     *string
	Completed   *bool
}

type TaskService interface {
	// ExtractFromText runs extraction over free text and persists the
	// resulting tasks. ingestionID links them to their source record when
	// the text came through the pipeline; empty for ad-hoc extraction.
	ExtractFromText(ctx context.Context, ownerID uuid.UUID, ingestionID, text string) ([]*types.TaskItem, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*types.TaskItem, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*types.TaskItem, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, upd TaskUpdate) (*types.TaskItem, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// timeNow exists so tests can pin "today" for due-date parsing.
var timeNow = time.Now

type taskService struct {
	log    *logger.Logger
	repo   repos.TaskRepo
	engine *extraction.Engine
}

func NewTaskService(log *logger.Logger, repo repos.TaskRepo, engine *extraction.Engine) TaskService {
	return &taskService{
		log:    log.With("service", "TaskService"),
		repo:   repo,
		engine: engine,
	}
}

func (s *taskService) ExtractFromText(ctx context.Context, ownerID uuid.UUID, ingestionID, text string) ([]*types.TaskItem, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}

	extracted, err := s.engine.ExtractTasks(ctx, text)
	if err != nil {
		var serr *extraction.ServiceError
		if errors.As(err, &serr) {
			return nil, apierr.New(http.StatusUnprocessableEntity, "extraction_failed", err)
		}
		return nil, err
	}

	tasks := make([]*types.TaskItem, 0, len(extracted))
	for _, e := range extracted {
		tasks = append(tasks, &types.TaskItem{
			OwnerID:     ownerID,
			IngestionID: ingestionID,
			Title:       e.Title,
			Description: e.Description,
			Type:        e.Type,
			Priority:    e.Priority,
			DueDate:     e.DueDate,
		})
	}

	created, err := s.repo.CreateBatch(ctx, nil, tasks)
	if err != nil {
		return nil, fmt.Errorf("persist extracted tasks: %w", err)
	}
	s.log.Info("Tasks extracted", "count", len(created), "ingestion_id", ingestionID)
	return created, nil
}

func (s *taskService) List(ctx context.Context, ownerID uuid.UUID) ([]*types.TaskItem, error) {
	if ownerID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "missing_owner", fmt.Errorf("request carries no owner identity"))
	}
	return s.repo.ListByOwner(ctx, nil, ownerID)
}

func (s *taskService) Get(ctx context.Context, ownerID, id uuid.UUID) (*types.TaskItem, error) {
	task, err := s.repo.GetByID(ctx, nil, ownerID, id)
	if errors.Is(err, repos.ErrTaskNotFound) {
		return nil, apierr.New(http.StatusNotFound, "not_found", err)
	}
	return task, err
}

func (s *taskService) Update(ctx context.Context, ownerID, id uuid.UUID, upd TaskUpdate) (*types.TaskItem, error) {
	// Completion toggles through SetCompleted so completed_at stays
	// consistent with the flag.
	if upd.Completed != nil {
		task, err := s.repo.SetCompleted(ctx, nil, ownerID, id, *upd.Completed)
		if errors.Is(err, repos.ErrTaskNotFound) {
			return nil, apierr.New(http.StatusNotFound, "not_found", err)
		}
		if err != nil {
			return nil, err
		}
		if !hasFieldEdits(upd) {
			return task, nil
		}
	}

	updates := map[string]any{}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return nil, apierr.New(http.StatusBadRequest, "empty_title", fmt.Errorf("title cannot be blank"))
		}
		updates["title"] = title
	}
	if upd.Description != nil {
		updates["description"] = strings.TrimSpace(*upd.Description)
	}
	if upd.Type != nil {
		t := strings.ToLower(strings.TrimSpace(*upd.Type))
		if !types.ValidTaskType(t) {
			return nil, apierr.New(http.StatusBadRequest, "invalid_type", fmt.Errorf("invalid task type %q", t))
		}
		updates["type"] = t
	}
	if upd.Priority != nil {
		p := strings.ToLower(strings.TrimSpace(*upd.Priority))
		if !types.ValidTaskPriority(p) {
			return nil, apierr.New(http.StatusBadRequest, "invalid_priority", fmt.Errorf("invalid task priority %q", p))
		}
		if p == "" {
			updates["priority"] = nil
		} else {
			updates["priority"] = p
		}
	}
	if upd.DueDate != nil {
		raw := strings.TrimSpace(*upd.DueDate)
		if raw == "" {
			updates["due_date"] = nil
		} else {
			due, _ := extraction.ParseDueDate(raw, timeNow())
			if due == nil {
				return nil, apierr.New(http.StatusBadRequest, "invalid_due_date", fmt.Errorf("unparseable due date %q", raw))
			}
			updates["due_date"] = due
		}
	}

	if len(updates) == 0 {
		return s.Get(ctx, ownerID, id)
	}

	task, err := s.repo.Update(ctx, nil, ownerID, id, updates)
	if errors.Is(err, repos.ErrTaskNotFound) {
		return nil, apierr.New(http.StatusNotFound, "not_found", err)
	}
	return task, err
}

func (s *taskService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.Delete(ctx, nil, ownerID, id)
	if errors.Is(err, repos.ErrTaskNotFound) {
		return apierr.New(http.StatusNotFound, "not_found", err)
	}
	return err
}

func hasFieldEdits(upd TaskUpdate) bool {
	return upd.Title != nil || upd.Description != nil || upd.Type != nil ||
		upd.Priority != nil || upd.DueDate != nil
}
