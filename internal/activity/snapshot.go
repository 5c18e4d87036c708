package activity

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
)

const (
	noneValue = "none"
	arrow     = " → "
)

// Field is one tracked attribute of an audited entity.
type Field struct {
	Key   string
	Label string
	Value string
	// Zero marks a value that is present but zero valued, such as a quantity
	// of 0. Zero fields are left out of create records.
	Zero bool
	// Always keeps the field in create records even when blank.
	Always bool
}

func (f Field) omitOnCreate() bool {
	if f.Always {
		return false
	}
	return f.Value == "" || f.Zero
}

func (f Field) display() string {
	if f.Value == "" {
		return noneValue
	}
	return f.Value
}

// Snapshot is a value copy of an entity taken before or after a mutation. It
// holds strings only, so it never aliases the entity it was taken from.
type Snapshot struct {
	Identity Field
	Fields   []Field
}

func (s Snapshot) field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// BookIdentity is the identity descriptor of a book.
func BookIdentity(id uuid.UUID) Field {
	return Field{Key: "bookId", Label: "Book id", Value: id.String()}
}

// UserIdentity is the identity descriptor of a user.
func UserIdentity(id uuid.UUID) Field {
	return Field{Key: "userId", Label: "User id", Value: id.String()}
}

// BookSnapshot captures the audited fields of a book.
func BookSnapshot(book models.Book) Snapshot {
	return Snapshot{
		Identity: BookIdentity(book.ID),
		Fields: []Field{
			{Key: "category", Label: "Category", Value: book.Category},
			{Key: "title", Label: "Title", Value: book.Title},
			{Key: "author", Label: "Author", Value: book.Author},
			{Key: "publisher", Label: "Publisher", Value: book.Publisher},
			{Key: "thumb", Label: "Thumb", Value: book.Thumb},
			{Key: "description", Label: "Description", Value: book.Description},
			{Key: "quantity", Label: "Quantity", Value: strconv.Itoa(book.Quantity), Zero: book.Quantity == 0},
			{Key: "status", Label: "Status", Value: book.Status().String()},
			{Key: "isActive", Label: "Active", Value: boolLabel(book.IsActive), Always: true},
		},
	}
}

// UserSnapshot captures the audited fields of a user. The password hash is
// never part of the trail.
func UserSnapshot(user models.User) Snapshot {
	dob := ""
	if user.DateOfBirth != nil {
		dob = user.DateOfBirth.UTC().Format("2006-01-02")
	}
	return Snapshot{
		Identity: UserIdentity(user.ID),
		Fields: []Field{
			{Key: "name", Label: "Name", Value: user.Name},
			{Key: "email", Label: "Email", Value: user.Email},
			{Key: "dateOfBirth", Label: "Date of birth", Value: dob},
			{Key: "role", Label: "Role", Value: user.Role.String()},
		},
	}
}

func boolLabel(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
