// services/group_service.go - Group membership business logic
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"wordlewise/models"
)

// createGroupAttempts bounds retries when a concurrent insert wins the race
// for the same invite code.
const createGroupAttempts = 3

type GroupService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewGroupService(db *gorm.DB, log *zap.Logger) *GroupService {
	return &GroupService{db: db, log: log, now: time.Now}
}

// LeaveResult reports what happened when a member left.
type LeaveResult struct {
	GroupDeleted bool `json:"group_deleted"`
}

// GroupUpdate is a partial update; nil fields are left unchanged.
type GroupUpdate struct {
	Name                  *string
	IncludeHistoricalData *bool
}

// MemberDetail is one row of a group's member list.
type MemberDetail struct {
	UserID   uint             `json:"id"`
	Username string           `json:"username"`
	Forename string           `json:"forename"`
	Role     models.GroupRole `json:"role"`
	JoinedAt time.Time        `json:"joined_at"`
}

// GroupSummary is a group as seen from one member's group list.
type GroupSummary struct {
	ID                    uint             `json:"id"`
	Name                  string           `json:"name"`
	MemberCount           int64            `json:"member_count"`
	Role                  models.GroupRole `json:"role"`
	IncludeHistoricalData bool             `json:"include_historical_data"`
	IsDefault             bool             `json:"is_default"`
}

// ================== GROUP LIFECYCLE ==================

// CreateGroup creates a group and makes the creator its first admin.
func (s *GroupService) CreateGroup(ctx context.Context, name string, creatorID uint, includeHistorical bool) (*models.Group, error) {
	name, err := normalizeGroupName(name)
	if err != nil {
		return nil, err
	}

	var group *models.Group
	for attempt := 0; attempt < createGroupAttempts; attempt++ {
		group, err = s.createGroup(ctx, name, creatorID, includeHistorical)
		if !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInviteCodeExhausted
		}
		return nil, err
	}

	s.log.Info("group created",
		zap.Uint("group_id", group.ID),
		zap.Uint("creator_id", creatorID),
		zap.Bool("include_historical_data", includeHistorical),
	)
	return group, nil
}

func (s *GroupService) createGroup(ctx context.Context, name string, creatorID uint, includeHistorical bool) (*models.Group, error) {
	now := s.now().UTC()
	group := &models.Group{
		Name:                  name,
		CreatedByUserID:       creatorID,
		IncludeHistoricalData: includeHistorical,
		CreatedAt:             now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := UniqueInviteCode(inviteCodeExists(tx))
		if err != nil {
			return err
		}
		group.InviteCode = code

		if err := tx.Create(group).Error; err != nil {
			return err
		}

		member := &models.GroupMember{
			GroupID:  group.ID,
			UserID:   creatorID,
			Role:     models.GroupRoleAdmin,
			JoinedAt: now,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroup applies a partial update. The name bound is enforced here so
// every caller gets the same limit.
func (s *GroupService) UpdateGroup(ctx context.Context, groupID uint, update GroupUpdate) (*models.Group, error) {
	updates := map[string]interface{}{}
	if update.Name != nil {
		name, err := normalizeGroupName(*update.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if update.IncludeHistoricalData != nil {
		updates["include_historical_data"] = *update.IncludeHistoricalData
	}

	var group *models.Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := lockGroup(tx, groupID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Updates(updates).Error; err != nil {
				return err
			}
			if err := tx.First(g, groupID).Error; err != nil {
				return err
			}
		}
		group = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a group, its memberships, and any default scope that
// pointed at it.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			return err
		}
		return deleteGroup(tx, groupID)
	})
	if err != nil {
		return err
	}
	s.log.Info("group deleted", zap.Uint("group_id", groupID))
	return nil
}

// RegenerateInviteCode replaces the group's invite code. The old code stops
// working immediately.
func (s *GroupService) RegenerateInviteCode(ctx context.Context, groupID uint) (string, error) {
	var code string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			return err
		}
		var err error
		code, err = UniqueInviteCode(inviteCodeExists(tx))
		if err != nil {
			return err
		}
		return tx.Model(&models.Group{}).Where("id = ?", groupID).Update("invite_code", code).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrInviteCodeExhausted
		}
		return "", err
	}
	s.log.Info("invite code regenerated", zap.Uint("group_id", groupID))
	return code, nil
}

// ================== MEMBERSHIP OPERATIONS ==================

// JoinGroup adds the user to the group identified by inviteCode. Codes are
// matched case-insensitively.
func (s *GroupService) JoinGroup(ctx context.Context, inviteCode string, userID uint) (*models.Group, error) {
	code := normalizeInviteCode(inviteCode)
	if code == "" {
		return nil, ErrInvalidInviteCode
	}

	var group models.Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invite_code = ?", code).First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidInviteCode
			}
			return err
		}
		if _, err := lockGroup(tx, group.ID); err != nil {
			return err
		}

		if _, err := findMembership(tx, group.ID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, ErrNotMember) {
			return err
		}

		count, err := countMembers(tx, group.ID)
		if err != nil {
			return err
		}
		if count >= models.MaxGroupMembers {
			return ErrGroupFull
		}

		member := &models.GroupMember{
			GroupID:  group.ID,
			UserID:   userID,
			Role:     models.GroupRoleMember,
			JoinedAt: s.now().UTC(),
		}
		if err := tx.Create(member).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("member joined", zap.Uint("group_id", group.ID), zap.Uint("user_id", userID))
	return &group, nil
}

// LeaveGroup removes the user from the group. The last member leaving
// deletes the group; the only admin cannot leave while others remain.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID uint) (LeaveResult, error) {
	var result LeaveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			if errors.Is(err, ErrGroupNotFound) {
				return ErrNotMember
			}
			return err
		}

		membership, err := findMembership(tx, groupID, userID)
		if err != nil {
			return err
		}

		count, err := countMembers(tx, groupID)
		if err != nil {
			return err
		}
		if count <= 1 {
			result.GroupDeleted = true
			return deleteGroup(tx, groupID)
		}

		if membership.Role == models.GroupRoleAdmin {
			admins, err := countAdmins(tx, groupID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}

		return removeMembership(tx, groupID, userID)
	})
	if err != nil {
		return LeaveResult{}, err
	}

	s.log.Info("member left",
		zap.Uint("group_id", groupID),
		zap.Uint("user_id", userID),
		zap.Bool("group_deleted", result.GroupDeleted),
	)
	return result, nil
}

// RemoveMember removes a non-admin member on behalf of an admin.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, targetUserID, actingUserID uint) error {
	if targetUserID == actingUserID {
		return ErrCannotRemoveSelf
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			return err
		}
		if err := requireAdmin(tx, groupID, actingUserID); err != nil {
			return err
		}

		target, err := findMembership(tx, groupID, targetUserID)
		if err != nil {
			if errors.Is(err, ErrNotMember) {
				return ErrTargetNotMember
			}
			return err
		}
		if target.Role == models.GroupRoleAdmin {
			return ErrTargetIsAdmin
		}

		return removeMembership(tx, groupID, targetUserID)
	})
	if err != nil {
		return err
	}

	s.log.Info("member removed",
		zap.Uint("group_id", groupID),
		zap.Uint("user_id", targetUserID),
		zap.Uint("removed_by", actingUserID),
	)
	return nil
}

// UpdateMemberRole promotes or demotes a member. The only admin can never be
// demoted, whether by themselves or by anyone else.
func (s *GroupService) UpdateMemberRole(ctx context.Context, groupID, targetUserID uint, newRole models.GroupRole, actingUserID uint) error {
	if !newRole.Valid() {
		return ErrInvalidRole
	}

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockGroup(tx, groupID); err != nil {
			return err
		}
		if err := requireAdmin(tx, groupID, actingUserID); err != nil {
			return err
		}

		target, err := findMembership(tx, groupID, targetUserID)
		if err != nil {
			if errors.Is(err, ErrNotMember) {
				return ErrTargetNotMember
			}
			return err
		}
		if target.Role == newRole {
			return nil
		}

		if target.Role == models.GroupRoleAdmin && newRole == models.GroupRoleMember {
			admins, err := countAdmins(tx, groupID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdminProtected
			}
		}

		changed = true
		return tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, targetUserID).
			Update("role", newRole).Error
	})
	if err != nil {
		return err
	}

	if changed {
		s.log.Info("member role changed",
			zap.Uint("group_id", groupID),
			zap.Uint("user_id", targetUserID),
			zap.String("role", string(newRole)),
			zap.Uint("changed_by", actingUserID),
		)
	}
	return nil
}

// ================== QUERIES ==================

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, groupID uint) (*models.Group, error) {
	var group models.Group
	if err := s.db.WithContext(ctx).First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return &group, nil
}

// GetGroupByInviteCode retrieves a group by its join code.
func (s *GroupService) GetGroupByInviteCode(ctx context.Context, inviteCode string) (*models.Group, error) {
	var group models.Group
	err := s.db.WithContext(ctx).Where("invite_code = ?", normalizeInviteCode(inviteCode)).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	return &group, nil
}

// GetMembership returns the user's membership, or ErrNotMember.
func (s *GroupService) GetMembership(ctx context.Context, groupID, userID uint) (*models.GroupMember, error) {
	return findMembership(s.db.WithContext(ctx), groupID, userID)
}

// IsMember reports whether the user currently belongs to the group.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	_, err := s.GetMembership(ctx, groupID, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotMember):
		return false, nil
	default:
		return false, err
	}
}

// ListMembers returns a group's members, oldest first.
func (s *GroupService) ListMembers(ctx context.Context, groupID uint) ([]MemberDetail, error) {
	var members []MemberDetail
	err := s.db.WithContext(ctx).
		Table("group_members").
		Select("users.id AS user_id, users.username, users.forename, group_members.role, group_members.joined_at").
		Joins("JOIN users ON users.id = group_members.user_id").
		Where("group_members.group_id = ?", groupID).
		Order("group_members.joined_at ASC, users.id ASC").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// MemberIDs returns the user IDs of a group's current members.
func (s *GroupService) MemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	return ids, nil
}

// ListUserGroups returns every group the user belongs to, in join order.
func (s *GroupService) ListUserGroups(ctx context.Context, user *models.User) ([]GroupSummary, error) {
	db := s.db.WithContext(ctx)

	var memberships []models.GroupMember
	if err := db.Where("user_id = ?", user.ID).Order("joined_at ASC, id ASC").Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []GroupSummary{}, nil
	}

	groupIDs := make([]uint, len(memberships))
	for i, m := range memberships {
		groupIDs[i] = m.GroupID
	}

	var groups []models.Group
	if err := db.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	byID := make(map[uint]models.Group, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}

	var counts []struct {
		GroupID     uint
		MemberCount int64
	}
	err := db.Model(&models.GroupMember{}).
		Select("group_id, COUNT(*) AS member_count").
		Where("group_id IN ?", groupIDs).
		Group("group_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	countByID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		countByID[c.GroupID] = c.MemberCount
	}

	summaries := make([]GroupSummary, 0, len(memberships))
	for _, m := range memberships {
		g, ok := byID[m.GroupID]
		if !ok {
			continue
		}
		summaries = append(summaries, GroupSummary{
			ID:                    g.ID,
			Name:                  g.Name,
			MemberCount:           countByID[g.ID],
			Role:                  m.Role,
			IncludeHistoricalData: g.IncludeHistoricalData,
			IsDefault:             user.DefaultGroupID != nil && *user.DefaultGroupID == g.ID,
		})
	}
	return summaries, nil
}

// ================== HELPER FUNCTIONS ==================

// lockGroup loads the group row, holding a row lock on PostgreSQL so that
// count-then-decide sequences on the same group run one at a time.
func lockGroup(tx *gorm.DB, groupID uint) (*models.Group, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var group models.Group
	if err := q.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

func findMembership(tx *gorm.DB, groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return &member, nil
}

func requireAdmin(tx *gorm.DB, groupID, userID uint) error {
	member, err := findMembership(tx, groupID, userID)
	if err != nil {
		return err
	}
	if member.Role != models.GroupRoleAdmin {
		return ErrNotGroupAdmin
	}
	return nil
}

func countMembers(tx *gorm.DB, groupID uint) (int64, error) {
	var count int64
	err := tx.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&count).Error
	return count, err
}

func countAdmins(tx *gorm.DB, groupID uint) (int64, error) {
	var count int64
	err := tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ?", groupID, models.GroupRoleAdmin).
		Count(&count).Error
	return count, err
}

// removeMembership deletes one membership and clears the user's default
// scope if it pointed at the group.
func removeMembership(tx *gorm.DB, groupID, userID uint) error {
	if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.User{}).
		Where("id = ? AND default_group_id = ?", userID, groupID).
		Update("default_group_id", nil).Error
}

func deleteGroup(tx *gorm.DB, groupID uint) error {
	if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.User{}).
		Where("default_group_id = ?", groupID).
		Update("default_group_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Group{}, groupID).Error
}

func inviteCodeExists(tx *gorm.DB) func(string) (bool, error) {
	return func(code string) (bool, error) {
		var count int64
		err := tx.Model(&models.Group{}).Where("invite_code = ?", code).Count(&count).Error
		return count > 0, err
	}
}

func normalizeGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrGroupNameRequired
	}
	if utf8.RuneCountInString(name) > models.MaxGroupNameLength {
		return "", ErrGroupNameTooLong
	}
	return name, nil
}

func normalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
