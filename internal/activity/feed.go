package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

type feedRepository interface {
	List(ctx context.Context, filter Filter, cursor *pagination.Cursor, limit int) ([]models.ActivityLog, error)
}

// Entry is an activity record with its description decoded.
type Entry struct {
	ID            uuid.UUID           `json:"id"`
	ActivityGroup enums.ActivityGroup `json:"activityGroup"`
	GroupLabel    string              `json:"groupLabel"`
	ActivityType  enums.ActivityType  `json:"activityType"`
	TypeLabel     string              `json:"typeLabel"`
	ExecutionTime time.Time           `json:"executionTime"`
	Username      string              `json:"username"`
	Description   []Descriptor        `json:"description"`
}

// Page is one page of the activity feed.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// Feed reads the activity trail for the admin console.
type Feed struct {
	repo feedRepository
}

func NewFeed(repo feedRepository) (*Feed, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &Feed{repo: repo}, nil
}

func (f *Feed) List(ctx context.Context, filter Filter, params pagination.Params) (*Page, error) {
	if filter.Group != "" && !filter.Group.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid activity group")
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid activity type")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	records, err := f.repo.List(ctx, filter, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list activity")
	}

	page := &Page{Entries: make([]Entry, 0, len(records))}
	if len(records) > limit {
		records = records[:limit]
		last := records[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.ExecutionTime, ID: last.ID})
	}
	for _, record := range records {
		descriptors, err := DecodeDescription(record.Description)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode activity description")
		}
		page.Entries = append(page.Entries, Entry{
			ID:            record.ID,
			ActivityGroup: record.ActivityGroup,
			GroupLabel:    record.ActivityGroup.Label(),
			ActivityType:  record.ActivityType,
			TypeLabel:     record.ActivityType.Label(),
			ExecutionTime: record.ExecutionTime,
			Username:      record.Username,
			Description:   descriptors,
		})
	}
	return page, nil
}
