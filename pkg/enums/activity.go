package enums

import "fmt"

// ActivityGroup is the entity family an activity record belongs to.
type ActivityGroup string

const (
	ActivityGroupBook ActivityGroup = "BOOK"
	ActivityGroupUser ActivityGroup = "USER"
)

var activityGroupLabels = map[ActivityGroup]string{
	ActivityGroupBook: "Book",
	ActivityGroupUser: "User",
}

// String implements fmt.Stringer.
func (g ActivityGroup) String() string {
	return string(g)
}

// Label is the display name shown in the admin activity feed.
func (g ActivityGroup) Label() string {
	return activityGroupLabels[g]
}

// IsValid reports whether the value is a known ActivityGroup.
func (g ActivityGroup) IsValid() bool {
	_, ok := activityGroupLabels[g]
	return ok
}

// ParseActivityGroup converts raw input into an ActivityGroup.
func ParseActivityGroup(value string) (ActivityGroup, error) {
	group := ActivityGroup(value)
	if !group.IsValid() {
		return "", fmt.Errorf("invalid activity group %q", value)
	}
	return group, nil
}

// ActivityType is the closed set of audited actions.
type ActivityType string

const (
	ActivityCreateUser     ActivityType = "CREATE_USER"
	ActivityUpdateUser     ActivityType = "UPDATE_USER"
	ActivityDeleteUser     ActivityType = "DELETE_USER"
	ActivityCreateBook     ActivityType = "CREATE_BOOK"
	ActivityUpdateBook     ActivityType = "UPDATE_BOOK"
	ActivityDeleteBook     ActivityType = "DELETE_BOOK"
	ActivitySoftDeleteBook ActivityType = "SOFT_DELETE_BOOK"
)

var activityTypeLabels = map[ActivityType]string{
	ActivityCreateUser:     "Create user",
	ActivityUpdateUser:     "Update user",
	ActivityDeleteUser:     "Delete user",
	ActivityCreateBook:     "Create book",
	ActivityUpdateBook:     "Update book",
	ActivityDeleteBook:     "Delete book",
	ActivitySoftDeleteBook: "Toggle soft delete book",
}

// String implements fmt.Stringer.
func (t ActivityType) String() string {
	return string(t)
}

// Label is the display name shown in the admin activity feed.
func (t ActivityType) Label() string {
	return activityTypeLabels[t]
}

// IsValid reports whether the value is a known ActivityType.
func (t ActivityType) IsValid() bool {
	_, ok := activityTypeLabels[t]
	return ok
}

// ParseActivityType converts raw input into an ActivityType.
func ParseActivityType(value string) (ActivityType, error) {
	kind := ActivityType(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid activity type %q", value)
	}
	return kind, nil
}
