// models/group_member.go
package models

import "time"

type GroupRole string

const (
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// Valid reports whether r is one of the known roles.
func (r GroupRole) Valid() bool {
	return r == GroupRoleAdmin || r == GroupRoleMember
}

type GroupMember struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	GroupID  uint      `json:"group_id" gorm:"not null;uniqueIndex:idx_group_members_group_user"`
	UserID   uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_group_members_group_user;index"`
	Role     GroupRole `json:"role" gorm:"not null;size:10;default:'member'"`
	JoinedAt time.Time `json:"joined_at" gorm:"not null"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
