package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-rooms/internal/domain"
	"github.com/tbourn/go-chat-rooms/internal/permission"
	"github.com/tbourn/go-chat-rooms/internal/repo"
)

// roomFor loads a live room. Soft-deleted rooms read as ErrRoomNotFound.
func roomFor(ctx context.Context, db *gorm.DB, roomID string) (*domain.Room, error) {
	r, err := repo.GetRoom(ctx, db, roomID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return r, err
}

// lockedRoomFor is roomFor inside a transaction, taking a row lock where
// the dialect supports one.
func lockedRoomFor(ctx context.Context, tx *gorm.DB, roomID string) (*domain.Room, error) {
	r, err := repo.LockRoomForUpdate(ctx, tx, roomID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return r, err
}

// memberOf returns userID's active membership or ErrNotMember.
func memberOf(ctx context.Context, db *gorm.DB, roomID, userID string) (*domain.Membership, error) {
	m, err := repo.GetMembership(ctx, db, roomID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotMember
	}
	return m, err
}

func requireKind(room *domain.Room, kinds ...domain.RoomKind) error {
	for _, k := range kinds {
		if room.Kind == k {
			return nil
		}
	}
	return ErrWrongRoomKind
}

func requireCapability(m *domain.Membership, c permission.Capability) error {
	if !m.ActionPermission.Has(c) {
		return ErrForbidden
	}
	return nil
}

// requireWritable rejects actions on closed or locked rooms.
func requireWritable(room *domain.Room) error {
	switch {
	case room.Closed:
		return ErrRoomClosed
	case room.ReadOnly:
		return ErrRoomReadOnly
	}
	return nil
}

// normalizeName trims and collapses whitespace, then enforces the room name
// length in runes.
func normalizeName(s string) (string, error) {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" || utf8.RuneCountInString(s) > domain.RoomNameMaxLen {
		return "", ErrInvalidName
	}
	return s, nil
}

// clipName shortens s to the room name limit.
func clipName(s string) string {
	if utf8.RuneCountInString(s) > domain.RoomNameMaxLen {
		return string([]rune(s)[:domain.RoomNameMaxLen])
	}
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
