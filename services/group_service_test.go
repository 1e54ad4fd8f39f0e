package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wordlewise/models"
	"wordlewise/testutil"
)

type groupFixture struct {
	db  *gorm.DB
	fx  *testutil.Fixtures
	svc *GroupService
	ctx context.Context
}

func newGroupFixture(t *testing.T) *groupFixture {
	db := testutil.NewDB(t)
	return &groupFixture{
		db:  db,
		fx:  testutil.NewFixtures(t, db),
		svc: NewGroupService(db, zap.NewNop()),
		ctx: context.Background(),
	}
}

// groupWith creates a group owned by admin and joins every other user.
func (g *groupFixture) groupWith(t *testing.T, admin *models.User, others ...*models.User) *models.Group {
	t.Helper()
	group, err := g.svc.CreateGroup(g.ctx, "Will & Kate", admin.ID, true)
	require.NoError(t, err)
	for _, u := range others {
		_, err := g.svc.JoinGroup(g.ctx, group.InviteCode, u.ID)
		require.NoError(t, err)
	}
	return group
}

func (g *groupFixture) memberCount(t *testing.T, groupID uint) int64 {
	t.Helper()
	n, err := countMembers(g.db, groupID)
	require.NoError(t, err)
	return n
}

func (g *groupFixture) role(t *testing.T, groupID, userID uint) models.GroupRole {
	t.Helper()
	m, err := g.svc.GetMembership(g.ctx, groupID, userID)
	require.NoError(t, err)
	return m.Role
}

func TestCreateGroup(t *testing.T) {
	g := newGroupFixture(t)
	creator := g.fx.CreateUser("")

	group, err := g.svc.CreateGroup(g.ctx, "  Breakfast Club  ", creator.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Breakfast Club", group.Name)
	assert.Len(t, group.InviteCode, models.InviteCodeLength)
	assert.False(t, group.IncludeHistoricalData)
	assert.Equal(t, models.GroupRoleAdmin, g.role(t, group.ID, creator.ID))
	assert.EqualValues(t, 1, g.memberCount(t, group.ID))
}

func TestCreateGroupStoresHistoricalFlag(t *testing.T) {
	g := newGroupFixture(t)
	creator := g.fx.CreateUser("")

	for _, include := range []bool{false, true} {
		group, err := g.svc.CreateGroup(g.ctx, "Recent", creator.ID, include)
		require.NoError(t, err)
		assert.Equal(t, include, group.IncludeHistoricalData)

		var stored models.Group
		require.NoError(t, g.db.First(&stored, group.ID).Error)
		assert.Equal(t, include, stored.IncludeHistoricalData)
	}
}

func TestCreateGroupValidatesName(t *testing.T) {
	g := newGroupFixture(t)
	creator := g.fx.CreateUser("")

	_, err := g.svc.CreateGroup(g.ctx, "   ", creator.ID, true)
	require.ErrorIs(t, err, ErrGroupNameRequired)

	_, err = g.svc.CreateGroup(g.ctx, strings.Repeat("x", models.MaxGroupNameLength+1), creator.ID, true)
	require.ErrorIs(t, err, ErrGroupNameTooLong)

	_, err = g.svc.CreateGroup(g.ctx, strings.Repeat("é", models.MaxGroupNameLength), creator.ID, true)
	require.NoError(t, err)

	var count int64
	require.NoError(t, g.db.Model(&models.Group{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestJoinGroupIsCaseInsensitive(t *testing.T) {
	g := newGroupFixture(t)
	admin, joiner := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin)

	joined, err := g.svc.JoinGroup(g.ctx, " "+strings.ToLower(group.InviteCode)+" ", joiner.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, joined.ID)
	assert.Equal(t, models.GroupRoleMember, g.role(t, group.ID, joiner.ID))
}

func TestJoinGroupErrors(t *testing.T) {
	g := newGroupFixture(t)
	admin := g.fx.CreateUser("")
	group := g.groupWith(t, admin)

	_, err := g.svc.JoinGroup(g.ctx, "ZZZZZZZZ", admin.ID)
	require.ErrorIs(t, err, ErrInvalidInviteCode)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = g.svc.JoinGroup(g.ctx, group.InviteCode, admin.ID)
	require.ErrorIs(t, err, ErrAlreadyMember)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestJoinGroupCapacity(t *testing.T) {
	g := newGroupFixture(t)
	admin := g.fx.CreateUser("")
	group := g.groupWith(t, admin, g.fx.CreateUser(""), g.fx.CreateUser(""), g.fx.CreateUser(""))
	require.EqualValues(t, models.MaxGroupMembers, g.memberCount(t, group.ID))

	_, err := g.svc.JoinGroup(g.ctx, group.InviteCode, g.fx.CreateUser("").ID)
	require.ErrorIs(t, err, ErrGroupFull)
	assert.EqualValues(t, models.MaxGroupMembers, g.memberCount(t, group.ID))
}

func TestLastAdminProtection(t *testing.T) {
	g := newGroupFixture(t)
	admin, member := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin, member)

	_, err := g.svc.LeaveGroup(g.ctx, group.ID, admin.ID)
	require.ErrorIs(t, err, ErrLastAdmin)

	err = g.svc.UpdateMemberRole(g.ctx, group.ID, admin.ID, models.GroupRoleMember, admin.ID)
	require.ErrorIs(t, err, ErrLastAdminProtected)
	assert.Equal(t, models.GroupRoleAdmin, g.role(t, group.ID, admin.ID))

	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, member.ID, models.GroupRoleAdmin, admin.ID))

	// with a second admin both exits are open
	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, admin.ID, models.GroupRoleMember, admin.ID))
	assert.Equal(t, models.GroupRoleMember, g.role(t, group.ID, admin.ID))

	res, err := g.svc.LeaveGroup(g.ctx, group.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, res.GroupDeleted)
	assert.EqualValues(t, 1, g.memberCount(t, group.ID))
}

func TestAdminCanLeaveAfterPromotingSuccessor(t *testing.T) {
	g := newGroupFixture(t)
	admin, member := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin, member)

	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, member.ID, models.GroupRoleAdmin, admin.ID))
	res, err := g.svc.LeaveGroup(g.ctx, group.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, res.GroupDeleted)

	ok, err := g.svc.IsMember(g.ctx, group.ID, admin.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastMemberLeavingDeletesGroup(t *testing.T) {
	g := newGroupFixture(t)
	admin := g.fx.CreateUser("")
	group := g.groupWith(t, admin)
	require.NoError(t, g.db.Model(admin).Update("default_group_id", group.ID).Error)

	res, err := g.svc.LeaveGroup(g.ctx, group.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, res.GroupDeleted)

	_, err = g.svc.GetGroupByInviteCode(g.ctx, group.InviteCode)
	require.ErrorIs(t, err, ErrInvalidInviteCode)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = g.svc.GetGroup(g.ctx, group.ID)
	require.ErrorIs(t, err, ErrGroupNotFound)

	var reloaded models.User
	require.NoError(t, g.db.First(&reloaded, admin.ID).Error)
	assert.Nil(t, reloaded.DefaultGroupID)
}

func TestLeaveGroupClearsDefaultScope(t *testing.T) {
	g := newGroupFixture(t)
	admin, member := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin, member)
	require.NoError(t, g.db.Model(member).Update("default_group_id", group.ID).Error)

	_, err := g.svc.LeaveGroup(g.ctx, group.ID, member.ID)
	require.NoError(t, err)

	var reloaded models.User
	require.NoError(t, g.db.First(&reloaded, member.ID).Error)
	assert.Nil(t, reloaded.DefaultGroupID)
}

func TestLeaveGroupNotMember(t *testing.T) {
	g := newGroupFixture(t)
	admin, outsider := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin)

	_, err := g.svc.LeaveGroup(g.ctx, group.ID, outsider.ID)
	require.ErrorIs(t, err, ErrNotMember)

	_, err = g.svc.LeaveGroup(g.ctx, group.ID+100, outsider.ID)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestRemoveMember(t *testing.T) {
	g := newGroupFixture(t)
	admin, coAdmin, member, outsider := g.fx.CreateUser(""), g.fx.CreateUser(""), g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin, coAdmin, member)
	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, coAdmin.ID, models.GroupRoleAdmin, admin.ID))
	require.NoError(t, g.db.Model(member).Update("default_group_id", group.ID).Error)

	require.ErrorIs(t, g.svc.RemoveMember(g.ctx, group.ID, admin.ID, admin.ID), ErrCannotRemoveSelf)
	require.ErrorIs(t, g.svc.RemoveMember(g.ctx, group.ID, coAdmin.ID, admin.ID), ErrTargetIsAdmin)
	require.ErrorIs(t, g.svc.RemoveMember(g.ctx, group.ID, outsider.ID, admin.ID), ErrTargetNotMember)
	require.ErrorIs(t, g.svc.RemoveMember(g.ctx, group.ID, admin.ID, member.ID), ErrNotGroupAdmin)

	require.NoError(t, g.svc.RemoveMember(g.ctx, group.ID, member.ID, admin.ID))
	assert.EqualValues(t, 2, g.memberCount(t, group.ID))

	var reloaded models.User
	require.NoError(t, g.db.First(&reloaded, member.ID).Error)
	assert.Nil(t, reloaded.DefaultGroupID)
}

func TestUpdateMemberRole(t *testing.T) {
	g := newGroupFixture(t)
	admin, member, outsider := g.fx.CreateUser(""), g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin, member)

	err := g.svc.UpdateMemberRole(g.ctx, group.ID, member.ID, models.GroupRole("owner"), admin.ID)
	require.ErrorIs(t, err, ErrInvalidRole)

	err = g.svc.UpdateMemberRole(g.ctx, group.ID, outsider.ID, models.GroupRoleAdmin, admin.ID)
	require.ErrorIs(t, err, ErrTargetNotMember)

	// demoting a member is a no-op
	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, member.ID, models.GroupRoleMember, admin.ID))
	assert.Equal(t, models.GroupRoleMember, g.role(t, group.ID, member.ID))

	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, member.ID, models.GroupRoleAdmin, admin.ID))
	// the new admin may demote the original one
	require.NoError(t, g.svc.UpdateMemberRole(g.ctx, group.ID, admin.ID, models.GroupRoleMember, member.ID))
	// but not the last remaining admin
	err = g.svc.UpdateMemberRole(g.ctx, group.ID, member.ID, models.GroupRoleMember, member.ID)
	require.ErrorIs(t, err, ErrLastAdminProtected)
}

func TestRegenerateInviteCode(t *testing.T) {
	g := newGroupFixture(t)
	admin, joiner := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin)

	code, err := g.svc.RegenerateInviteCode(g.ctx, group.ID)
	require.NoError(t, err)
	assert.NotEqual(t, group.InviteCode, code)

	_, err = g.svc.JoinGroup(g.ctx, group.InviteCode, joiner.ID)
	require.ErrorIs(t, err, ErrInvalidInviteCode)

	_, err = g.svc.JoinGroup(g.ctx, code, joiner.ID)
	require.NoError(t, err)

	_, err = g.svc.RegenerateInviteCode(g.ctx, group.ID+100)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestUpdateGroup(t *testing.T) {
	g := newGroupFixture(t)
	admin := g.fx.CreateUser("")
	group := g.groupWith(t, admin)

	name := "Renamed"
	hide := false
	updated, err := g.svc.UpdateGroup(g.ctx, group.ID, GroupUpdate{Name: &name, IncludeHistoricalData: &hide})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IncludeHistoricalData)
	assert.Equal(t, group.InviteCode, updated.InviteCode)

	long := strings.Repeat("n", models.MaxGroupNameLength+1)
	_, err = g.svc.UpdateGroup(g.ctx, group.ID, GroupUpdate{Name: &long})
	require.ErrorIs(t, err, ErrGroupNameTooLong)

	unchanged, err := g.svc.UpdateGroup(g.ctx, group.ID, GroupUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", unchanged.Name)
}

func TestDeleteGroup(t *testing.T) {
	g := newGroupFixture(t)
	admin, member := g.fx.CreateUser(""), g.fx.CreateUser("")
	group := g.groupWith(t, admin, member)
	require.NoError(t, g.db.Model(member).Update("default_group_id", group.ID).Error)

	require.NoError(t, g.svc.DeleteGroup(g.ctx, group.ID))
	assert.Zero(t, g.memberCount(t, group.ID))

	var reloaded models.User
	require.NoError(t, g.db.First(&reloaded, member.ID).Error)
	assert.Nil(t, reloaded.DefaultGroupID)

	require.ErrorIs(t, g.svc.DeleteGroup(g.ctx, group.ID), ErrGroupNotFound)
}

func TestListMembersAndUserGroups(t *testing.T) {
	g := newGroupFixture(t)
	admin, member := g.fx.CreateUser("anna"), g.fx.CreateUser("ben")
	first := g.groupWith(t, admin, member)
	g.svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	second, err := g.svc.CreateGroup(g.ctx, "Solo", admin.ID, false)
	require.NoError(t, err)
	require.NoError(t, g.db.Model(admin).Update("default_group_id", second.ID).Error)
	admin.DefaultGroupID = &second.ID

	members, err := g.svc.ListMembers(g.ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "anna", members[0].Username)
	assert.Equal(t, models.GroupRoleAdmin, members[0].Role)
	assert.Equal(t, "ben", members[1].Username)

	ids, err := g.svc.MemberIDs(g.ctx, first.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{admin.ID, member.ID}, ids)

	groups, err := g.svc.ListUserGroups(g.ctx, admin)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, first.ID, groups[0].ID)
	assert.EqualValues(t, 2, groups[0].MemberCount)
	assert.False(t, groups[0].IsDefault)
	assert.Equal(t, second.ID, groups[1].ID)
	assert.EqualValues(t, 1, groups[1].MemberCount)
	assert.True(t, groups[1].IsDefault)
	assert.False(t, groups[1].IncludeHistoricalData)

	none, err := g.svc.ListUserGroups(g.ctx, g.fx.CreateUser(""))
	require.NoError(t, err)
	assert.Empty(t, none)
}
