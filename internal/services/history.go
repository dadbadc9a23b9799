package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/moodlocation/apiserver/types"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HistoryRepository defines persistence operations for history entries.
type HistoryRepository interface {
	Create(ctx context.Context, entry types.HistoryEntry) (types.HistoryEntry, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]types.HistoryEntry, error)
}

// HistoryInput carries the fields accepted when recording a visit.
// Type, Date and Time are optional; Type falls back to "forest".
type HistoryInput struct {
	UserID     string `json:"userId" validate:"required,mongodb"`
	LocationID string `json:"locationId" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Type       string `json:"type"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

// HistoryService encapsulates visit history use-cases.
type HistoryService struct {
	repo   HistoryRepository
	events events
}

func NewHistoryService(repo HistoryRepository, publisher EventPublisher, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		repo:   repo,
		events: newEvents(publisher, logger),
	}
}

// Record stores a new visit. The owning account is not looked up.
func (s *HistoryService) Record(ctx context.Context, input HistoryInput) (types.HistoryEntry, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	if err := validateInput(input); err != nil {
		return types.HistoryEntry{}, err
	}

	userID, err := primitive.ObjectIDFromHex(input.UserID)
	if err != nil {
		return types.HistoryEntry{}, newValidationError("userId", "userId is not a valid id")
	}

	created, err := s.repo.Create(ctx, types.HistoryEntry{
		UserID:     userID,
		LocationID: input.LocationID,
		Name:       input.Name,
		Type:       lo.CoalesceOrEmpty(input.Type, types.HistoryTypeForest),
		Date:       input.Date,
		Time:       input.Time,
	})
	if err != nil {
		return types.HistoryEntry{}, err
	}

	s.events.publish(ctx, EventHistoryRecorded, created)
	return created, nil
}

// ListByUser returns the user's visits, most recent first. An id that
// cannot match any entry yields an empty list.
func (s *HistoryService) ListByUser(ctx context.Context, userID string) ([]types.HistoryEntry, error) {
	oid, err := parseObjectID(userID)
	if err != nil {
		return []types.HistoryEntry{}, nil
	}

	entries, err := s.repo.ListByUser(ctx, oid)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	return entries, nil
}
