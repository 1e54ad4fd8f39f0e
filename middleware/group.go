// middleware/group.go
package middleware

import (
	"github.com/gofiber/fiber/v2"

	"wordlewise/models"
	"wordlewise/services"
)

const localMembership = "membership"

// GroupGuard checks the caller's current membership of the group named in
// the route before the handler runs.
type GroupGuard struct {
	groups *services.GroupService
	param  string
}

// NewGroupGuard reads the group ID from the route parameter param.
func NewGroupGuard(groups *services.GroupService, param string) *GroupGuard {
	return &GroupGuard{groups: groups, param: param}
}

// RequireMember refuses callers who are not currently in the group.
func (g *GroupGuard) RequireMember() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := g.load(c); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireAdmin refuses callers who are not an admin of the group.
func (g *GroupGuard) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		membership, err := g.load(c)
		if err != nil {
			return err
		}
		if membership.Role != models.GroupRoleAdmin {
			return services.ErrNotGroupAdmin
		}
		return c.Next()
	}
}

func (g *GroupGuard) load(c *fiber.Ctx) (*models.GroupMember, error) {
	user := CurrentUser(c)
	if user == nil {
		return nil, services.ErrMissingToken
	}
	groupID, err := ParamID(c, g.param)
	if err != nil {
		return nil, err
	}
	membership, err := g.groups.GetMembership(c.UserContext(), groupID, user.ID)
	if err != nil {
		return nil, err
	}
	c.Locals(localMembership, membership)
	return membership, nil
}

// Membership returns the membership stored by a group guard, or nil.
func Membership(c *fiber.Ctx) *models.GroupMember {
	m, _ := c.Locals(localMembership).(*models.GroupMember)
	return m
}

// ParamID parses a positive integer route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, services.ValidationError("Invalid ID")
	}
	return uint(id), nil
}
