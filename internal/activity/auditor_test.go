package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/readcycle-backend/pkg/db/dbtest"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/enums"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
	"github.com/angelmondragon/readcycle-backend/pkg/metrics"
	"github.com/angelmondragon/readcycle-backend/pkg/pagination"
)

const admin = "admin@example.com"

func newAuditor(t *testing.T) (*Auditor, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	auditor, err := NewAuditor(NewRepository(db), nil, logger.Nop())
	require.NoError(t, err)
	return auditor, db
}

func records(t *testing.T, db *gorm.DB) []models.ActivityLog {
	t.Helper()
	var out []models.ActivityLog
	require.NoError(t, db.Order("execution_time ASC").Find(&out).Error)
	return out
}

func decode(t *testing.T, record models.ActivityLog) []Descriptor {
	t.Helper()
	descriptors, err := DecodeDescription(record.Description)
	require.NoError(t, err)
	return descriptors
}

func sampleBook() models.Book {
	return models.Book{
		ID:       uuid.New(),
		Category: "Fiction",
		Title:    "Dune",
		Author:   "Frank Herbert",
		Quantity: 3,
		IsActive: true,
	}
}

func TestRecordCreateOmitsBlankFields(t *testing.T) {
	auditor, db := newAuditor(t)
	book := sampleBook()

	auditor.RecordCreate(context.Background(), enums.ActivityGroupBook, enums.ActivityCreateBook, BookSnapshot(book), admin)

	rows := records(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, admin, rows[0].Username)
	assert.Equal(t, enums.ActivityCreateBook, rows[0].ActivityType)

	got := decode(t, rows[0])
	keys := make([]string, 0, len(got))
	for _, d := range got {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"bookId", "category", "title", "author", "quantity", "status", "isActive"}, keys)
	assert.Equal(t, book.ID.String(), got[0].Value)
	assert.Equal(t, "Book id", got[0].Label)
	assert.Equal(t, "True", got[len(got)-1].Value)
}

func TestRecordCreateKeepsInactiveFlagAndDropsZeroQuantity(t *testing.T) {
	auditor, db := newAuditor(t)
	book := sampleBook()
	book.Quantity = 0
	book.IsActive = false

	auditor.RecordCreate(context.Background(), enums.ActivityGroupBook, enums.ActivityCreateBook, BookSnapshot(book), admin)

	got := decode(t, records(t, db)[0])
	for _, d := range got {
		assert.NotEqual(t, "quantity", d.Key)
	}
	assert.Equal(t, Descriptor{Key: "isActive", Value: "False", Label: "Active"}, got[len(got)-1])
}

func TestRecordUpdateWithoutChangesWritesNothing(t *testing.T) {
	auditor, db := newAuditor(t)
	book := sampleBook()

	auditor.RecordUpdate(context.Background(), enums.ActivityGroupBook, enums.ActivityUpdateBook, BookSnapshot(book), BookSnapshot(book), admin)

	assert.Empty(t, records(t, db))
}

func TestRecordUpdateSingleChange(t *testing.T) {
	auditor, db := newAuditor(t)
	before := sampleBook()
	after := before
	after.Author = "F. Herbert"

	auditor.RecordUpdate(context.Background(), enums.ActivityGroupBook, enums.ActivityUpdateBook, BookSnapshot(before), BookSnapshot(after), admin)

	rows := records(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, []Descriptor{
		{Key: "bookId", Value: before.ID.String(), Label: "Book id"},
		{Key: "author", Value: "Frank Herbert → F. Herbert", Label: "Author"},
	}, decode(t, rows[0]))
}

func TestDiffRendersBlankAsNone(t *testing.T) {
	before := sampleBook()
	after := before
	after.Thumb = "cover.png"
	after.Quantity = 0

	got := Diff(BookSnapshot(before), BookSnapshot(after))
	require.Len(t, got, 4)
	assert.Equal(t, "none → cover.png", got[1].Value)
	assert.Equal(t, "3 → 0", got[2].Value)
	assert.Equal(t, "AVAILABLE → UNAVAILABLE", got[3].Value)
}

func TestSnapshotIsAValueCopy(t *testing.T) {
	book := sampleBook()
	before := BookSnapshot(book)
	book.Title = "Dune Messiah"
	after := BookSnapshot(book)

	got := Diff(before, after)
	require.Len(t, got, 2)
	assert.Equal(t, "Dune → Dune Messiah", got[1].Value)
}

func TestRecordDelete(t *testing.T) {
	auditor, db := newAuditor(t)
	id := uuid.New()

	auditor.RecordDelete(context.Background(), enums.ActivityGroupUser, enums.ActivityDeleteUser, UserIdentity(id), admin)

	rows := records(t, db)
	require.Len(t, rows, 1)
	assert.Equal(t, []Descriptor{{Key: "userId", Value: id.String() + " → none", Label: "User id"}}, decode(t, rows[0]))
}

func TestUserSnapshotFields(t *testing.T) {
	dob := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	snap := UserSnapshot(models.User{ID: uuid.New(), Name: "Ann", Email: "ann@example.com", DateOfBirth: &dob, Role: enums.UserRoleUser})

	values := map[string]string{}
	for _, f := range snap.Fields {
		values[f.Key] = f.Value
	}
	assert.Equal(t, "1990-04-02", values["dateOfBirth"])
	assert.Equal(t, "USER", values["role"])
	assert.NotContains(t, values, "password")
}

type failingStore struct{}

func (failingStore) Append(context.Context, *models.ActivityLog) error {
	return errors.New("disk full")
}

func TestAuditFailureIsSwallowedAndCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	auditor, err := NewAuditor(failingStore{}, metrics.NewAuditMetrics(reg), logger.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		auditor.RecordDelete(context.Background(), enums.ActivityGroupBook, enums.ActivityDeleteBook, BookIdentity(uuid.New()), admin)
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	var failures float64
	for _, family := range families {
		if family.GetName() != "audit_failures_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			failures += metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), failures)
}

func TestMissingActorIsSwallowed(t *testing.T) {
	auditor, db := newAuditor(t)
	auditor.RecordCreate(context.Background(), enums.ActivityGroupBook, enums.ActivityCreateBook, BookSnapshot(sampleBook()), " ")
	assert.Empty(t, records(t, db))
}

func TestFeedPagesNewestFirst(t *testing.T) {
	auditor, db := newAuditor(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	auditor.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i := 0; i < 3; i++ {
		auditor.RecordDelete(context.Background(), enums.ActivityGroupBook, enums.ActivityDeleteBook, BookIdentity(uuid.New()), admin)
	}
	auditor.RecordDelete(context.Background(), enums.ActivityGroupUser, enums.ActivityDeleteUser, UserIdentity(uuid.New()), admin)

	feed, err := NewFeed(NewRepository(db))
	require.NoError(t, err)

	first, err := feed.List(context.Background(), Filter{Group: enums.ActivityGroupBook}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.True(t, first.Entries[0].ExecutionTime.After(first.Entries[1].ExecutionTime))
	assert.Equal(t, "Book", first.Entries[0].GroupLabel)
	assert.Equal(t, "Delete book", first.Entries[0].TypeLabel)

	second, err := feed.List(context.Background(), Filter{Group: enums.ActivityGroupBook}, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Empty(t, second.NextCursor)
}

func TestFeedRejectsUnknownType(t *testing.T) {
	_, db := newAuditor(t)
	feed, err := NewFeed(NewRepository(db))
	require.NoError(t, err)
	_, err = feed.List(context.Background(), Filter{Type: "DROP_TABLE"}, pagination.Params{})
	require.Error(t, err)
}
