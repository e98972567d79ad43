package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ActorKeyKind selects the shape of user identifiers (sender, participant, status owner).
// Resolved once at startup from configuration.
type ActorKeyKind string

const (
	ActorKeyInt  ActorKeyKind = "int"
	ActorKeyUUID ActorKeyKind = "uuid"
)

// ErrInvalidActorID is returned when an id does not match the configured key kind
var ErrInvalidActorID = errors.New("invalid actor id")

// ParseActorKeyKind parses the configured key kind
func ParseActorKeyKind(s string) (ActorKeyKind, error) {
	switch ActorKeyKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActorKeyInt, "integer", "":
		return ActorKeyInt, nil
	case ActorKeyUUID:
		return ActorKeyUUID, nil
	default:
		return "", fmt.Errorf("unknown actor key kind %q", s)
	}
}

// Normalize returns the canonical form of id for this key kind.
// Integer keys must be positive decimals, UUID keys are lower-cased.
func (k ActorKeyKind) Normalize(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidActorID
	}

	switch k {
	case ActorKeyUUID:
		u, err := uuid.Parse(id)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a uuid", ErrInvalidActorID, id)
		}
		return u.String(), nil
	default:
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil || n == 0 {
			return "", fmt.Errorf("%w: %q is not a positive integer", ErrInvalidActorID, id)
		}
		return strconv.FormatUint(n, 10), nil
	}
}

// NormalizeAll normalizes every id, failing on the first invalid one
func (k ActorKeyKind) NormalizeAll(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := k.Normalize(id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
