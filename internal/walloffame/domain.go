package walloffame

import (
	"time"

	"github.com/google/uuid"
)

// Member is a Wall-of-Fame entry together with its ordered achievements.
type Member struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"nombre"`
	Image        *string       `json:"imagen"`
	Description  string        `json:"descripcion"`
	DisplayOrder int           `json:"orden"`
	Active       bool          `json:"activo"`
	CreatedAt    time.Time     `json:"fecha_creacion"`
	UpdatedAt    time.Time     `json:"ultima_actualizacion"`
	Achievements []Achievement `json:"logros"`
}

// ImageName returns the stored filename, or "" when the member has no image.
func (m *Member) ImageName() string {
	if m == nil || m.Image == nil {
		return ""
	}
	return *m.Image
}

// Achievement is owned by exactly one Member. Position is 1-based and
// derived from list order at write time.
type Achievement struct {
	ID       uuid.UUID `json:"id"`
	MemberID uuid.UUID `json:"-"`
	Text     string    `json:"logro"`
	Position int       `json:"orden"`
}

// MemberInput describes a member to create. Achievements are plain texts
// in display order; blank entries are skipped.
type MemberInput struct {
	Name         string
	Image        *string
	Description  string
	DisplayOrder int
	// Active defaults to true when nil.
	Active       *bool
	Achievements []string
}

// Optional marks a patch field as present or absent.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

// MemberPatch is a sparse update: only set fields are written.
// A set Image holding nil clears the stored image. A set Achievements
// replaces the whole list.
type MemberPatch struct {
	Name         Optional[string]
	Image        Optional[*string]
	Description  Optional[string]
	DisplayOrder Optional[int]
	Active       Optional[bool]
	Achievements Optional[[]string]
}

// ReorderAssignment sets the display order of one member.
type ReorderAssignment struct {
	ID           uuid.UUID `json:"id"`
	DisplayOrder int       `json:"orden"`
}
