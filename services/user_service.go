// services/user_service.go - Accounts, credentials and default scope
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"wordlewise/models"
)

const (
	MaxUsernameLength = 12
	MaxForenameLength = 10
	MinPasswordLength = 8

	// bcrypt ignores input past this many bytes
	maxPasswordBytes = 72
)

type UserService struct {
	db     *gorm.DB
	groups *GroupService
	log    *zap.Logger
	cost   int
}

func NewUserService(db *gorm.DB, groups *GroupService, log *zap.Logger) *UserService {
	return &UserService{db: db, groups: groups, log: log, cost: bcrypt.DefaultCost}
}

// Login checks credentials and stamps the last login time.
func (s *UserService) Login(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrBadPassword
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		s.log.Warn("failed to record last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	return &user, nil
}

// Register creates an account.
func (s *UserService) Register(ctx context.Context, username, password, forename string) (*models.User, error) {
	username = strings.TrimSpace(username)
	forename = strings.TrimSpace(forename)

	switch {
	case username == "":
		return nil, ValidationError("Username is required")
	case utf8.RuneCountInString(username) > MaxUsernameLength:
		return nil, ValidationError(fmt.Sprintf("Username must be %d characters or less", MaxUsernameLength))
	case forename == "":
		return nil, ValidationError("Forename is required")
	case utf8.RuneCountInString(forename) > MaxForenameLength:
		return nil, ValidationError(fmt.Sprintf("Forename must be %d characters or less", MaxForenameLength))
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, Forename: forename, Password: hash}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// ResetPassword replaces a user's password.
func (s *UserService) ResetPassword(ctx context.Context, userID uint, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password", hash)
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownUser
	}

	s.log.Info("password reset", zap.Uint("user_id", userID))
	return nil
}

// GetUser loads a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername loads a user by username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// ListUsers returns the given users ordered by ID.
func (s *UserService) ListUsers(ctx context.Context, userIDs []uint) ([]models.User, error) {
	users := []models.User{}
	if len(userIDs) == 0 {
		return users, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SearchUsers pages through all accounts, optionally filtered by a username
// substring. page is 1-based.
func (s *UserService) SearchUsers(ctx context.Context, search string, page, limit int) ([]models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		query = query.Where("username LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	users := []models.User{}
	if err := query.Order("id ASC").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// SetDefaultScope stores the scope used when a request names none. A group
// default requires current membership.
func (s *UserService) SetDefaultScope(ctx context.Context, user *models.User, scope Scope) error {
	var groupID *uint
	switch scope.Type {
	case ScopePersonal:
	case ScopeGroup:
		if scope.GroupID == 0 {
			return ErrGroupIDRequired
		}
		if _, err := s.groups.GetMembership(ctx, scope.GroupID, user.ID); err != nil {
			return err
		}
		id := scope.GroupID
		groupID = &id
	default:
		return ErrInvalidScope
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("default_group_id", groupID).Error; err != nil {
		return fmt.Errorf("failed to save default scope: %w", err)
	}
	user.DefaultGroupID = groupID
	return nil
}

// SetAdmin grants or revokes site-admin rights.
func (s *UserService) SetAdmin(ctx context.Context, userID uint, isAdmin bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("is_admin", isAdmin)
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownUser
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ValidationError(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > maxPasswordBytes {
		return ValidationError("Password is too long")
	}
	return nil
}
