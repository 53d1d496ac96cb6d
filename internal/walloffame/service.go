package walloffame

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence operations of the Wall-of-Fame aggregate.
type Store interface {
	ListMembers(ctx context.Context, activeOnly bool) ([]*Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	CreateMember(ctx context.Context, in MemberInput) (*Member, error)
	UpdateMember(ctx context.Context, id uuid.UUID, patch MemberPatch) (*Member, error)
	DeleteMember(ctx context.Context, id uuid.UUID) error
	ToggleActive(ctx context.Context, id uuid.UUID) (*Member, error)
	Reorder(ctx context.Context, assignments []ReorderAssignment) error
	ListAchievements(ctx context.Context, memberID uuid.UUID) ([]Achievement, error)
}
