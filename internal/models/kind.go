package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownKind = errors.New("unknown track kind")

// Kind identifies one stem produced by source separation.
type Kind int

const (
	Vocals Kind = iota
	Drums
	Bass
	Other
)

var kindNames = [...]string{"vocals", "drums", "bass", "other"}

// Kinds returns every stem kind in display order.
func Kinds() []Kind {
	return []Kind{Vocals, Drums, Bass, Other}
}

func (k Kind) String() string {
	if k < Vocals || k > Other {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the four stems.
func (k Kind) Valid() bool {
	return k >= Vocals && k <= Other
}

// ParseKind maps a wire name ("vocals", "drums", "bass", "other") to its [Kind].
func ParseKind(name string) (Kind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, kn := range kindNames {
		if kn == n {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
