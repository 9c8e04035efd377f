package game

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/winenight-backend/internal"
)

var codeSpace = big.NewInt(1_000_000)

// GenerateRoomCode returns a random code of the form WN-######.
func GenerateRoomCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%0*d", internal.RoomCodePrefix, internal.RoomCodeDigits, n.Int64()), nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidRoomCode(code string) bool {
	digits, ok := strings.CutPrefix(code, internal.RoomCodePrefix)
	if !ok || len(digits) != internal.RoomCodeDigits {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// allocateCode draws codes until one is free both among live rooms and in
// the durable store.
func (m *Manager) allocateCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= m.opts.CodeAttempts; attempt++ {
		code, err := m.opts.CodeGenerator()
		if err != nil {
			return "", fmt.Errorf("%w: generate room code: %w", internal.ErrPersistenceFailure, err)
		}
		if m.store.Has(code) {
			continue
		}
		inUse, err := m.games.CodeInUse(ctx, code)
		if err != nil {
			return "", persistErr("check room code", err)
		}
		if !inUse {
			return code, nil
		}
		log.Debug().Str("code", code).Int("attempt", attempt).Msg("[allocateCode] collision")
	}
	return "", internal.WithMessage(internal.ErrPersistenceFailure, "Could not allocate a room code")
}
