// handlers/groups.go - Group HTTP handlers
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"wordlewise/metrics"
	"wordlewise/middleware"
	"wordlewise/models"
	"wordlewise/services"
)

type CreateGroupRequest struct {
	Name                  string `json:"name"`
	IncludeHistoricalData *bool  `json:"include_historical_data"`
}

type UpdateGroupRequest struct {
	Name                  *string `json:"name"`
	IncludeHistoricalData *bool   `json:"include_historical_data"`
}

type JoinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

type UpdateRoleRequest struct {
	Role models.GroupRole `json:"role"`
}

type GroupDetail struct {
	ID                    uint                    `json:"id"`
	Name                  string                  `json:"name"`
	InviteCode            string                  `json:"invite_code"`
	CreatedByUserID       uint                    `json:"created_by_user_id"`
	CreatedAt             time.Time               `json:"created_at"`
	IncludeHistoricalData bool                    `json:"include_historical_data"`
	Members               []services.MemberDetail `json:"members"`
	CurrentUserRole       models.GroupRole        `json:"current_user_role"`
}

// ================== GROUP CRUD ENDPOINTS ==================

// ListGroups lists the caller's groups
// GET /groups
func (h *Handlers) ListGroups(c *fiber.Ctx) error {
	groups, err := h.groups.ListUserGroups(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(groups)
}

// CreateGroup creates a group with the caller as admin
// POST /groups
func (h *Handlers) CreateGroup(c *fiber.Ctx) error {
	var req CreateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	includeHistorical := true
	if req.IncludeHistoricalData != nil {
		includeHistorical = *req.IncludeHistoricalData
	}

	ctx := c.UserContext()
	group, err := h.groups.CreateGroup(ctx, req.Name, middleware.CurrentUser(c).ID, includeHistorical)
	if err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupCreated)

	members, err := h.groups.ListMembers(ctx, group.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"group":   groupDetail(group, members, models.GroupRoleAdmin),
	})
}

// GetGroup returns group details, members and the caller's role
// GET /groups/:id
func (h *Handlers) GetGroup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	membership := middleware.Membership(c)

	group, err := h.groups.GetGroup(ctx, membership.GroupID)
	if err != nil {
		return err
	}
	members, err := h.groups.ListMembers(ctx, group.ID)
	if err != nil {
		return err
	}

	return c.JSON(groupDetail(group, members, membership.Role))
}

func groupDetail(group *models.Group, members []services.MemberDetail, role models.GroupRole) GroupDetail {
	return GroupDetail{
		ID:                    group.ID,
		Name:                  group.Name,
		InviteCode:            group.InviteCode,
		CreatedByUserID:       group.CreatedByUserID,
		CreatedAt:             group.CreatedAt,
		IncludeHistoricalData: group.IncludeHistoricalData,
		Members:               members,
		CurrentUserRole:       role,
	}
}

// UpdateGroup renames a group or toggles historical data
// PUT /groups/:id
func (h *Handlers) UpdateGroup(c *fiber.Ctx) error {
	var req UpdateGroupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	group, err := h.groups.UpdateGroup(c.UserContext(), middleware.Membership(c).GroupID, services.GroupUpdate{
		Name:                  req.Name,
		IncludeHistoricalData: req.IncludeHistoricalData,
	})
	if err != nil {
		return err
	}
	return success(c, fiber.Map{"group": group})
}

// DeleteGroup deletes a group and all its memberships
// DELETE /groups/:id
func (h *Handlers) DeleteGroup(c *fiber.Ctx) error {
	if err := h.groups.DeleteGroup(c.UserContext(), middleware.Membership(c).GroupID); err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupDeleted)
	return success(c, nil)
}

// ================== MEMBERSHIP ENDPOINTS ==================

// JoinGroup joins a group by invite code
// POST /groups/join
func (h *Handlers) JoinGroup(c *fiber.Ctx) error {
	var req JoinGroupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	group, err := h.groups.JoinGroup(c.UserContext(), req.InviteCode, middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupJoined)
	return success(c, fiber.Map{
		"group": fiber.Map{"id": group.ID, "name": group.Name},
	})
}

// LeaveGroup removes the caller from a group
// POST /groups/:id/leave
func (h *Handlers) LeaveGroup(c *fiber.Ctx) error {
	groupID, err := middleware.ParamID(c, "id")
	if err != nil {
		return err
	}

	res, err := h.groups.LeaveGroup(c.UserContext(), groupID, middleware.CurrentUser(c).ID)
	if err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupLeft)
	if res.GroupDeleted {
		h.metrics.GroupEvent(metrics.GroupDeleted)
	}
	return success(c, fiber.Map{"group_deleted": res.GroupDeleted})
}

// RemoveMember removes a non-admin member
// DELETE /groups/:id/members/:userId
func (h *Handlers) RemoveMember(c *fiber.Ctx) error {
	targetID, err := middleware.ParamID(c, "userId")
	if err != nil {
		return err
	}

	membership := middleware.Membership(c)
	if err := h.groups.RemoveMember(c.UserContext(), membership.GroupID, targetID, membership.UserID); err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupMemberRemoved)
	return success(c, nil)
}

// UpdateMemberRole promotes or demotes a member
// PUT /groups/:id/members/:userId
func (h *Handlers) UpdateMemberRole(c *fiber.Ctx) error {
	targetID, err := middleware.ParamID(c, "userId")
	if err != nil {
		return err
	}
	var req UpdateRoleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	membership := middleware.Membership(c)
	if err := h.groups.UpdateMemberRole(c.UserContext(), membership.GroupID, targetID, req.Role, membership.UserID); err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupRoleChanged)
	return success(c, nil)
}

// RegenerateInviteCode replaces the group's invite code
// POST /groups/:id/regenerate-code
func (h *Handlers) RegenerateInviteCode(c *fiber.Ctx) error {
	groupID := middleware.Membership(c).GroupID
	code, err := h.groups.RegenerateInviteCode(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	h.metrics.GroupEvent(metrics.GroupCodeRegenerated)
	return success(c, fiber.Map{"invite_code": code})
}
