package walloffame

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "deligma/pkg/errors"
	"deligma/pkg/persistence"
)

const memberColumns = `id, name, image, description, display_order, active, created_at, updated_at`

var errMemberNotFound = pkgerrors.NotFound("Miembro no encontrado")

// store implements the Store interface on top of a persistence.Gateway.
type store struct {
	gateway persistence.Gateway
	tracer  trace.Tracer
}

// NewStore creates the Wall-of-Fame store.
func NewStore(gateway persistence.Gateway) Store {
	return &store{
		gateway: gateway,
		tracer:  otel.Tracer("deligma/walloffame"),
	}
}

// ListMembers returns members ordered by (display_order, created_at). The
// achievements are loaded by a second query outside any transaction.
func (s *store) ListMembers(ctx context.Context, activeOnly bool) ([]*Member, error) {
	ctx, span := s.tracer.Start(ctx, "walloffame.list",
		trace.WithAttributes(attribute.Bool("active_only", activeOnly)))
	defer span.End()

	query := `SELECT ` + memberColumns + ` FROM fame_members`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY display_order ASC, created_at ASC`

	rows, err := s.gateway.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]*Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	span.SetAttributes(attribute.Int("member.count", len(members)))
	if len(members) == 0 {
		return members, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID.String()
	}
	byMember, err := loadAchievements(ctx, s.gateway, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if list, ok := byMember[m.ID]; ok {
			m.Achievements = list
		}
	}
	return members, nil
}

// GetMember retrieves a member and its achievements by ID.
func (s *store) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "walloffame.get",
		trace.WithAttributes(attribute.String("member.id", id.String())))
	defer span.End()

	return readAggregate(ctx, s.gateway, id)
}

// CreateMember inserts the member and its non-blank achievements atomically.
func (s *store) CreateMember(ctx context.Context, in MemberInput) (*Member, error) {
	name, err := checkName(in.Name)
	if err != nil {
		return nil, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	texts := normalizeNewAchievements(in.Achievements)

	id := uuid.New()
	ctx, span := s.tracer.Start(ctx, "walloffame.create",
		trace.WithAttributes(
			attribute.String("member.id", id.String()),
			attribute.Int("achievement.count", len(texts)),
		))
	defer span.End()

	var created *Member
	err = s.gateway.WithSession(ctx, func(tx persistence.Session) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO fame_members (id, name, image, description, display_order, active)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, name, in.Image, in.Description, in.DisplayOrder, active)
		if err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
		if err := insertAchievements(ctx, tx, id, texts); err != nil {
			return err
		}
		created, err = readAggregate(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateMember applies a sparse patch. When the patch carries achievements
// the existing list is deleted and the new one inserted with positions 1..N.
func (s *store) UpdateMember(ctx context.Context, id uuid.UUID, patch MemberPatch) (*Member, error) {
	query, args, err := compilePatch(id, patch)
	if err != nil {
		return nil, err
	}
	texts, replace := patch.Achievements.Get()

	ctx, span := s.tracer.Start(ctx, "walloffame.update",
		trace.WithAttributes(
			attribute.String("member.id", id.String()),
			attribute.Bool("achievements.replaced", replace),
		))
	defer span.End()

	var updated *Member
	err = s.gateway.WithSession(ctx, func(tx persistence.Session) error {
		n, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update member: %w", err)
		}
		if n == 0 {
			return errMemberNotFound
		}

		if replace {
			if _, err := tx.Exec(ctx, `DELETE FROM fame_achievements WHERE member_id = $1`, id); err != nil {
				return fmt.Errorf("failed to clear achievements: %w", err)
			}
			if err := insertAchievements(ctx, tx, id, texts); err != nil {
				return err
			}
		}

		updated, err = readAggregate(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteMember removes the member; achievements go with it via ON DELETE CASCADE.
func (s *store) DeleteMember(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "walloffame.delete",
		trace.WithAttributes(attribute.String("member.id", id.String())))
	defer span.End()

	n, err := s.gateway.Exec(ctx, `DELETE FROM fame_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if n == 0 {
		return errMemberNotFound
	}
	return nil
}

// ToggleActive flips the active flag in a single statement and returns the
// refreshed aggregate.
func (s *store) ToggleActive(ctx context.Context, id uuid.UUID) (*Member, error) {
	ctx, span := s.tracer.Start(ctx, "walloffame.toggle_active",
		trace.WithAttributes(attribute.String("member.id", id.String())))
	defer span.End()

	var toggled *Member
	err := s.gateway.WithSession(ctx, func(tx persistence.Session) error {
		n, err := tx.Exec(ctx, `
			UPDATE fame_members SET active = NOT active, updated_at = NOW()
			WHERE id = $1
		`, id)
		if err != nil {
			return fmt.Errorf("failed to toggle member: %w", err)
		}
		if n == 0 {
			return errMemberNotFound
		}
		toggled, err = readAggregate(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toggled, nil
}

// Reorder writes every display order in one transaction. Unknown ids
// update nothing and are not reported.
func (s *store) Reorder(ctx context.Context, assignments []ReorderAssignment) error {
	ctx, span := s.tracer.Start(ctx, "walloffame.reorder",
		trace.WithAttributes(attribute.Int("assignment.count", len(assignments))))
	defer span.End()

	return s.gateway.WithSession(ctx, func(tx persistence.Session) error {
		for _, a := range assignments {
			_, err := tx.Exec(ctx, `
				UPDATE fame_members SET display_order = $1, updated_at = NOW()
				WHERE id = $2
			`, a.DisplayOrder, a.ID)
			if err != nil {
				return fmt.Errorf("failed to reorder member %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// ListAchievements returns one member's achievements by position. Unknown
// members yield an empty list.
func (s *store) ListAchievements(ctx context.Context, memberID uuid.UUID) ([]Achievement, error) {
	byMember, err := loadAchievements(ctx, s.gateway, []string{memberID.String()})
	if err != nil {
		return nil, err
	}
	if list, ok := byMember[memberID]; ok {
		return list, nil
	}
	return []Achievement{}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*Member, error) {
	m := &Member{Achievements: []Achievement{}}
	var image sql.NullString
	err := row.Scan(
		&m.ID,
		&m.Name,
		&image,
		&m.Description,
		&m.DisplayOrder,
		&m.Active,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		m.Image = &image.String
	}
	return m, nil
}

func readAggregate(ctx context.Context, r persistence.Runner, id uuid.UUID) (*Member, error) {
	row := r.QueryRow(ctx, `SELECT `+memberColumns+` FROM fame_members WHERE id = $1`, id)
	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	byMember, err := loadAchievements(ctx, r, []string{id.String()})
	if err != nil {
		return nil, err
	}
	if list, ok := byMember[id]; ok {
		m.Achievements = list
	}
	return m, nil
}

func loadAchievements(ctx context.Context, r persistence.Runner, memberIDs []string) (map[uuid.UUID][]Achievement, error) {
	rows, err := r.Query(ctx, `
		SELECT id, member_id, text, position
		FROM fame_achievements
		WHERE member_id = ANY($1::uuid[])
		ORDER BY member_id, position ASC, created_at ASC
	`, pq.Array(memberIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]Achievement, len(memberIDs))
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.ID, &a.MemberID, &a.Text, &a.Position); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		out[a.MemberID] = append(out[a.MemberID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	return out, nil
}

func insertAchievements(ctx context.Context, tx persistence.Session, memberID uuid.UUID, texts []string) error {
	for i, text := range texts {
		_, err := tx.Exec(ctx, `
			INSERT INTO fame_achievements (id, member_id, text, position)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), memberID, text, i+1)
		if err != nil {
			return fmt.Errorf("failed to insert achievement %d: %w", i+1, err)
		}
	}
	return nil
}
