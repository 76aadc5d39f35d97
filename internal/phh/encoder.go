package phh

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/lox/fairtable/internal/betting"
)

// Encode writes the hand history to the provided writer in PHH TOML format.
func Encode(w io.Writer, hand *HandHistory) error {
	if hand == nil {
		return fmt.Errorf("phh: hand history is nil")
	}

	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(hand)
}

// EncodeToBytes encodes and returns the result as bytes.
func EncodeToBytes(hand *HandHistory) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, hand); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeSection writes hand as section [n] of a .phhs session file.
func EncodeSection(w io.Writer, n int, hand *HandHistory) error {
	if hand == nil {
		return fmt.Errorf("phh: hand history is nil")
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(map[string]*HandHistory{strconv.Itoa(n): hand})
}

// Decode reads a single-hand .phh document.
func Decode(r io.Reader) (*HandHistory, error) {
	var hand HandHistory
	if _, err := toml.NewDecoder(r).Decode(&hand); err != nil {
		return nil, fmt.Errorf("phh: %w", err)
	}
	return &hand, nil
}

// DecodeSession reads a .phhs session file and returns its hands in
// section order.
func DecodeSession(r io.Reader) ([]*HandHistory, error) {
	sections := map[string]*HandHistory{}
	if _, err := toml.NewDecoder(r).Decode(&sections); err != nil {
		return nil, fmt.Errorf("phh: %w", err)
	}
	keys := make([]int, 0, len(sections))
	for k := range sections {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("phh: section %q is not a number", k)
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)
	out := make([]*HandHistory, len(keys))
	for i, n := range keys {
		out[i] = sections[strconv.Itoa(n)]
	}
	return out, nil
}

// FormatAction converts an engine action to a PHH action string. All-in
// must be resolved to Call or Raise by the caller. total is the player's
// bet on this street after the action. It returns false for actions PHH
// has no line for.
func FormatAction(position int, kind betting.Kind, total int64) (string, bool) {
	player := fmt.Sprintf("p%d", position+1)
	switch kind {
	case betting.Fold:
		return player + " f", true
	case betting.Check, betting.Call:
		return player + " cc", true
	case betting.Bet, betting.Raise:
		if total <= 0 {
			return "", false
		}
		return fmt.Sprintf("%s cbr %d", player, total), true
	default:
		return fmt.Sprintf("# %s %s %d", player, kind, total), true
	}
}
