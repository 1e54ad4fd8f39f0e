// services/scope_resolver.go - Maps a request scope to the users and window it may see
package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"wordlewise/models"
)

type ScopeType string

const (
	ScopePersonal ScopeType = "personal"
	ScopeGroup    ScopeType = "group"
)

// Scope is a visibility window as requested by a client. GroupID is only
// meaningful for ScopeGroup.
type Scope struct {
	Type    ScopeType
	GroupID uint
}

func PersonalScope() Scope {
	return Scope{Type: ScopePersonal}
}

func GroupScope(groupID uint) Scope {
	return Scope{Type: ScopeGroup, GroupID: groupID}
}

// ParseScope reads the scope and groupId query parameters. The bool result
// is false when the request named no scope at all.
func ParseScope(scopeParam, groupIDParam string) (Scope, bool, error) {
	switch ScopeType(scopeParam) {
	case "":
		return Scope{}, false, nil
	case ScopePersonal:
		return PersonalScope(), true, nil
	case ScopeGroup:
		if groupIDParam == "" {
			return Scope{}, true, ErrGroupIDRequired
		}
		id, err := strconv.ParseUint(groupIDParam, 10, 64)
		if err != nil || id == 0 {
			return Scope{}, true, ValidationError("Invalid group ID")
		}
		return GroupScope(uint(id)), true, nil
	default:
		return Scope{}, true, ErrInvalidScope
	}
}

// ResolvedScope is what a scope means right now: whose scores are visible
// and from which date.
type ResolvedScope struct {
	UserIDs []uint
	Cutoff  *time.Time
	Group   *models.Group
}

type ScopeResolver struct {
	groups *GroupService
}

func NewScopeResolver(groups *GroupService) *ScopeResolver {
	return &ScopeResolver{groups: groups}
}

// Resolve checks the caller's current membership before touching any group
// data, so a former member is refused even if they remember the group ID.
func (r *ScopeResolver) Resolve(ctx context.Context, user *models.User, scope Scope) (ResolvedScope, error) {
	switch scope.Type {
	case ScopePersonal:
		return ResolvedScope{UserIDs: []uint{user.ID}}, nil
	case ScopeGroup:
	default:
		return ResolvedScope{}, ErrInvalidScope
	}

	if scope.GroupID == 0 {
		return ResolvedScope{}, ErrGroupIDRequired
	}
	if _, err := r.groups.GetMembership(ctx, scope.GroupID, user.ID); err != nil {
		return ResolvedScope{}, err
	}

	group, err := r.groups.GetGroup(ctx, scope.GroupID)
	if err != nil {
		return ResolvedScope{}, err
	}
	ids, err := r.groups.MemberIDs(ctx, group.ID)
	if err != nil {
		return ResolvedScope{}, err
	}

	resolved := ResolvedScope{UserIDs: ids, Group: group}
	if !group.IncludeHistoricalData {
		cutoff := calendarDate(group.CreatedAt.UTC())
		resolved.Cutoff = &cutoff
	}
	return resolved, nil
}

// DefaultScope returns the user's stored default scope, or personal when
// none is stored or the user has since left that group.
func (r *ScopeResolver) DefaultScope(ctx context.Context, user *models.User) (Scope, error) {
	if user.DefaultGroupID == nil {
		return PersonalScope(), nil
	}
	_, err := r.groups.GetMembership(ctx, *user.DefaultGroupID, user.ID)
	switch {
	case err == nil:
		return GroupScope(*user.DefaultGroupID), nil
	case errors.Is(err, ErrNotMember):
		return PersonalScope(), nil
	default:
		return Scope{}, err
	}
}

// ScopeFromRequest parses the query parameters and falls back to the
// user's default scope when none were given.
func (r *ScopeResolver) ScopeFromRequest(ctx context.Context, user *models.User, scopeParam, groupIDParam string) (Scope, error) {
	scope, ok, err := ParseScope(scopeParam, groupIDParam)
	if err != nil {
		return Scope{}, err
	}
	if ok {
		return scope, nil
	}
	return r.DefaultScope(ctx, user)
}
