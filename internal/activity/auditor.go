package activity

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Descriptor is one entry of an activity record's description.
type Descriptor struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// Store is the append-only sink for activity records.
type Store interface {
	Append(ctx context.Context, record *models.ActivityLog) error
}

// Auditor writes the activity trail for book and user mutations.
//
// Recording is best effort. Errors are logged and counted, never returned, so
// a failing audit write cannot undo the operation that triggered it. Callers
// record after their own transaction has committed.
type Auditor struct {
	store   Store
	metrics *metrics.AuditMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewAuditor builds an auditor. metrics may be nil.
func NewAuditor(store Store, auditMetrics *metrics.AuditMetrics, logg *logger.Logger) (*Auditor, error) {
	if store == nil {
		return nil, fmt.Errorf("activity store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Auditor{
		store:   store,
		metrics: auditMetrics,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// RecordCreate stores the populated fields of a new entity, identity first.
func (a *Auditor) RecordCreate(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, snap Snapshot, actor string) {
	descriptors := []Descriptor{describe(snap.Identity, snap.Identity.Value)}
	for _, f := range snap.Fields {
		if f.omitOnCreate() {
			continue
		}
		descriptors = append(descriptors, describe(f, f.Value))
	}
	a.persist(ctx, group, kind, descriptors, actor)
}

// RecordUpdate stores "old → new" for every tracked field whose value changed.
// Nothing is stored when no field changed.
func (a *Auditor) RecordUpdate(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, before, after Snapshot, actor string) {
	descriptors := Diff(before, after)
	if len(descriptors) <= 1 {
		return
	}
	a.persist(ctx, group, kind, descriptors, actor)
}

// RecordDelete stores a single "<id> → none" descriptor.
func (a *Auditor) RecordDelete(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, identity Field, actor string) {
	a.persist(ctx, group, kind, []Descriptor{describe(identity, identity.Value+arrow+noneValue)}, actor)
}

// Diff returns the identity descriptor of after followed by one descriptor per
// changed field. Blank values render as "none".
func Diff(before, after Snapshot) []Descriptor {
	descriptors := []Descriptor{describe(after.Identity, after.Identity.Value)}
	for _, next := range after.Fields {
		prev, _ := before.field(next.Key)
		if prev.Value == next.Value {
			continue
		}
		descriptors = append(descriptors, describe(next, prev.display()+arrow+next.display()))
	}
	return descriptors
}

func describe(f Field, value string) Descriptor {
	return Descriptor{Key: f.Key, Value: value, Label: f.Label}
}

func (a *Auditor) persist(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, descriptors []Descriptor, actor string) {
	if err := a.write(ctx, group, kind, descriptors, actor); err != nil {
		a.metrics.IncFailure(kind.String())
		logCtx := a.logg.WithFields(ctx, map[string]any{
			"activity_group": group.String(),
			"activity_type":  kind.String(),
		})
		a.logg.Error(logCtx, "logging activity error", err)
		return
	}
	a.metrics.IncRecorded(kind.String())
}

func (a *Auditor) write(ctx context.Context, group enums.ActivityGroup, kind enums.ActivityType, descriptors []Descriptor, actor string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.New(pkgerrors.CodeAuditFailure, fmt.Sprintf("panic while recording activity: %v", r))
		}
	}()

	if strings.TrimSpace(actor) == "" {
		return pkgerrors.New(pkgerrors.CodeAuditFailure, "actor identity required")
	}
	if !group.IsValid() || !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeAuditFailure, "unknown activity group or type")
	}
	description, err := json.MarshalToString(descriptors)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeAuditFailure, err, "encode activity description")
	}
	record := &models.ActivityLog{
		ActivityGroup: group,
		ActivityType:  kind,
		ExecutionTime: a.now(),
		Description:   description,
		Username:      actor,
	}
	if err := a.store.Append(ctx, record); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeAuditFailure, err, "persist activity record")
	}
	return nil
}

// DecodeDescription parses a stored description back into descriptors.
func DecodeDescription(raw string) ([]Descriptor, error) {
	var descriptors []Descriptor
	if err := json.UnmarshalFromString(raw, &descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}
