package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile is the role bound to an access code.
type Profile string

const (
	ProfileAdmin   Profile = "admin"
	ProfileTeacher Profile = "teacher"
	ProfileParent  Profile = "parent"
	ProfilePartner Profile = "partner"
)

// Profiles lists every profile in display order.
var Profiles = []Profile{ProfileAdmin, ProfileTeacher, ProfileParent, ProfilePartner}

// ParseProfile parses a profile name case-insensitively.
func ParseProfile(s string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown profile %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the four known profiles.
func (p Profile) Valid() bool {
	switch p {
	case ProfileAdmin, ProfileTeacher, ProfileParent, ProfilePartner:
		return true
	}
	return false
}

// ProfileVisitor has one case per profile. Code that branches on a profile
// implements it so that adding a profile breaks every call site at compile time.
type ProfileVisitor[T any] interface {
	Admin() T
	Teacher() T
	Parent() T
	Partner() T
}

// VisitProfile dispatches p to the matching visitor case.
func VisitProfile[T any](p Profile, v ProfileVisitor[T]) (T, error) {
	switch p {
	case ProfileAdmin:
		return v.Admin(), nil
	case ProfileTeacher:
		return v.Teacher(), nil
	case ProfileParent:
		return v.Parent(), nil
	case ProfilePartner:
		return v.Partner(), nil
	}
	var zero T
	return zero, fmt.Errorf("unknown profile %q", p)
}

// AccessCode is the identity record behind a login code.
type AccessCode struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Profile     Profile   `json:"profile"`
	DisplayName string    `json:"display_name"`
	ClassName   *string   `json:"class_name"` // только для teacher/parent
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeCode trims and uppercases a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Actor returns the identity passed to the engines for this code.
func (c *AccessCode) Actor() Actor {
	return Actor{
		CodeID:      c.ID,
		Profile:     c.Profile,
		DisplayName: c.DisplayName,
		ClassName:   c.ClassName,
	}
}

// Label returns the display name, falling back to the code itself.
func (c *AccessCode) Label() string {
	if c == nil {
		return ""
	}
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Code
}

// Actor is the caller of an engine operation.
type Actor struct {
	CodeID      uuid.UUID `json:"code_id"`
	Profile     Profile   `json:"profile"`
	DisplayName string    `json:"display_name"`
	ClassName   *string   `json:"class_name,omitempty"`
}

// Is reports whether the actor holds any of the given profiles.
func (a Actor) Is(profiles ...Profile) bool {
	for _, p := range profiles {
		if a.Profile == p {
			return true
		}
	}
	return false
}
