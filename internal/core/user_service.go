package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/db"
	"github.com/example/subsmarket/internal/gateway/whatsapp"
	"github.com/example/subsmarket/internal/models"
)

// userService implements the UserService interface.
type userService struct {
	userRepo      db.UserRepository
	notifications NotificationService
	sealer        Sealer
	logger        *zap.Logger
	now           func() time.Time
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, notifications NotificationService, sealer Sealer, logger *zap.Logger) UserService {
	return &userService{
		userRepo:      userRepo,
		notifications: notifications,
		sealer:        sealer,
		logger:        logger,
		now:           time.Now,
	}
}

// Initialize returns the caller's profile, creating it on first login.
// The boolean reports whether the profile was created. New users get the
// customer role and a welcome notification when their phone is known.
func (s *userService) Initialize(ctx context.Context, id Identity) (*models.User, bool, error) {
	user, err := s.userRepo.GetByID(ctx, id.UserID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get user by ID '%s' from repository: %w", id.UserID, err)
	}

	name := strings.TrimSpace(id.DisplayName)
	if name == "" {
		name = strings.Split(id.Email, "@")[0]
	}
	newUser := &models.User{
		ID:          id.UserID,
		Email:       id.Email,
		DisplayName: name,
		PhoneNumber: whatsapp.NormalizePhone(id.PhoneNumber),
		Role:        models.RoleCustomer,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			// Lost a race with a concurrent initialize from another tab.
			existing, getErr := s.userRepo.GetByID(ctx, id.UserID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to reload user '%s': %w", id.UserID, getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create user (id: %s) after not found: %w", id.UserID, err)
	}

	if err := s.notifications.Enqueue(ctx, models.NotificationWelcome, newUser.PhoneNumber, map[string]string{
		"cliente": newUser.DisplayName,
		"email":   newUser.Email,
	}); err != nil {
		s.logger.Warn("Failed to enqueue welcome notification", zap.String("userId", newUser.ID), zap.Error(err))
	}
	return newUser, true, nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}
	return user, nil
}

// UpdateProfile changes the caller's display name, phone and personal
// WhatsApp token. The token is sealed before it is stored.
func (s *userService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	fields := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || len(name) > 80 {
			return nil, fmt.Errorf("%w: displayName must have 1 to 80 characters", ErrValidation)
		}
		fields["displayName"] = name
	}
	if req.PhoneNumber != nil {
		phone := whatsapp.NormalizePhone(*req.PhoneNumber)
		if phone != "" && (len(phone) < 10 || len(phone) > 15) {
			return nil, fmt.Errorf("%w: phoneNumber must have 10 to 15 digits", ErrValidation)
		}
		fields["phoneNumber"] = phone
	}
	if req.WhatsappAPIToken != nil {
		sealed, err := s.sealer.Seal(strings.TrimSpace(*req.WhatsappAPIToken))
		if err != nil {
			return nil, fmt.Errorf("failed to seal whatsapp token: %w", err)
		}
		fields["whatsappApiToken"] = sealed
	}
	if len(fields) == 0 {
		return s.GetByID(ctx, userID)
	}

	if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

// Heartbeat stores the current time as the user's last-seen mark.
func (s *userService) Heartbeat(ctx context.Context, userID string) error {
	if err := s.userRepo.SetLastSeen(ctx, userID, s.now().UTC()); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return err
	}
	return nil
}

// Presence derives another user's presence label.
func (s *userService) Presence(ctx context.Context, userID string) (*PresenceInfo, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := Presence(user.LastSeen, s.now().UTC())
	return &p, nil
}
