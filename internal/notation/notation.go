// Package notation maps (boardIndex, cellIndex) pairs to compass codes such as "C/NE".
// Codes are for human-readable move logs only; raw indices stay canonical.
package notation

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidNotation = errors.New("invalid notation")

const separator = "/"

// tokens are row-major, matching cell indices 0..8.
var tokens = [9]string{"NW", "N", "NE", "W", "C", "E", "SW", "S", "SE"}

// Encode - returns the display code of a cell.
func Encode(boardIndex, cellIndex int) (string, error) {
	if !valid(boardIndex) || !valid(cellIndex) {
		return "", fmt.Errorf("%w: board %d cell %d", ErrInvalidNotation, boardIndex, cellIndex)
	}

	return tokens[boardIndex] + separator + tokens[cellIndex], nil
}

// Decode - parses a display code back to indices.
func Decode(code string) (int, int, error) {
	board, cell, ok := strings.Cut(code, separator)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNotation, code)
	}

	boardIndex, ok := index(board)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNotation, code)
	}

	cellIndex, ok := index(cell)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidNotation, code)
	}

	return boardIndex, cellIndex, nil
}

func index(token string) (int, bool) {
	for i, candidate := range tokens {
		if candidate == token {
			return i, true
		}
	}

	return 0, false
}

func valid(i int) bool {
	return i >= 0 && i < len(tokens)
}
