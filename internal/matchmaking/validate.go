package matchmaking

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
)

const (
	maxDisplayName = 32
	tokenSize      = 32
)

var playerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

func ValidPlayerID(playerID string) bool {
	return playerIDPattern.MatchString(playerID)
}

func validatePlayerID(playerID string) error {
	if !ValidPlayerID(playerID) {
		return fmt.Errorf("%w: invalid player id", apperror.ErrMalformedRequest)
	}

	return nil
}

// normalizeDisplayName - NFC form, trimmed, printable, at most maxDisplayName runes.
func normalizeDisplayName(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", fmt.Errorf("%w: invalid display name", apperror.ErrMalformedRequest)
	}

	name = strings.TrimSpace(norm.NFC.String(name))

	if utf8.RuneCountInString(name) > maxDisplayName {
		return "", fmt.Errorf("%w: display name is too long", apperror.ErrMalformedRequest)
	}

	for _, r := range name {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: invalid display name", apperror.ErrMalformedRequest)
		}
	}

	return name, nil
}

// newToken - generates an unguessable connect token.
func newToken() (string, error) {
	b := make([]byte, tokenSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
