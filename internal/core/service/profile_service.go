package service

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

const (
	maxDisplayNameLength = 50
	maxBioLength         = 500
)

var suiAddressPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)

type profileService struct {
	profiles ports.ProfileRepository
	store    ports.ObjectStore
	log      zerolog.Logger
}

// NewProfileService returns a ProfileService implementation.
func NewProfileService(profiles ports.ProfileRepository, store ports.ObjectStore, log zerolog.Logger) ports.ProfileService {
	return &profileService{profiles: profiles, store: store, log: log}
}

func (s *profileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update edits the display name and bio. Balance and wallet are not editable
// here.
func (s *profileService) Update(ctx context.Context, userID string, upd ports.ProfileUpdate) (*domain.UserProfile, error) {
	edit := ports.ProfileUpdate{}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, fmt.Errorf("%w: display name exceeds %d characters", domain.ErrValidation, maxDisplayNameLength)
		}
		edit.DisplayName = &name
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, fmt.Errorf("%w: bio exceeds %d characters", domain.ErrValidation, maxBioLength)
		}
		edit.Bio = &bio
	}
	if edit.DisplayName == nil && edit.Bio == nil {
		return s.Get(ctx, userID)
	}

	p, err := s.profiles.Update(ctx, userID, edit)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

func (s *profileService) UploadAvatar(ctx context.Context, userID, filename, contentType string, r io.Reader) (*domain.UserProfile, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: only image uploads are accepted", domain.ErrValidation)
	}
	path := objectPath("avatars", userID, filename)
	url, err := s.store.Upload(ctx, path, r, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	p, err := s.profiles.Update(ctx, userID, ports.ProfileUpdate{AvatarPath: &path, PhotoURL: &url})
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("path", path).Msg("avatar updated")
	return p, nil
}

// SetWallet records the user's Sui address (0x followed by 64 hex digits).
func (s *profileService) SetWallet(ctx context.Context, userID, address string) (*domain.UserProfile, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if !suiAddressPattern.MatchString(address) {
		return nil, fmt.Errorf("%w: wallet address must be 0x followed by 64 hex digits", domain.ErrValidation)
	}
	p, err := s.profiles.Update(ctx, userID, ports.ProfileUpdate{SuiWalletAddress: &address})
	if err != nil {
		return nil, fmt.Errorf("set wallet: %w", err)
	}
	return p, nil
}
