package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

// RelationIDKind shape of an external entity identifier
type RelationIDKind string

const (
	RelationIDInt  RelationIDKind = "int"
	RelationIDUUID RelationIDKind = "uuid"
	RelationIDULID RelationIDKind = "ulid"
)

// ErrInvalidRelation is returned for malformed relation references
var ErrInvalidRelation = errors.New("invalid relation")

// RelationRef reference to an external entity (e.g. a support ticket)
type RelationRef struct {
	Type string         `json:"type" validate:"required,max=100"`
	Kind RelationIDKind `json:"kind" validate:"omitempty,oneof=int uuid ulid"`
	ID   string         `json:"id" validate:"required,max=64"`
}

// Normalize validates the reference and returns it with a canonical id.
// An empty Kind defaults to int.
func (r RelationRef) Normalize() (RelationRef, error) {
	r.Type = strings.TrimSpace(r.Type)
	r.ID = strings.TrimSpace(r.ID)
	if r.Type == "" || r.ID == "" {
		return r, fmt.Errorf("%w: type and id are required", ErrInvalidRelation)
	}
	if r.Kind == "" {
		r.Kind = RelationIDInt
	}

	switch r.Kind {
	case RelationIDInt:
		n, err := strconv.ParseUint(r.ID, 10, 64)
		if err != nil {
			return r, fmt.Errorf("%w: %q is not an integer id", ErrInvalidRelation, r.ID)
		}
		r.ID = strconv.FormatUint(n, 10)
	case RelationIDUUID:
		u, err := uuid.Parse(r.ID)
		if err != nil {
			return r, fmt.Errorf("%w: %q is not a uuid", ErrInvalidRelation, r.ID)
		}
		r.ID = u.String()
	case RelationIDULID:
		u, err := ulid.ParseStrict(r.ID)
		if err != nil {
			return r, fmt.Errorf("%w: %q is not a ulid", ErrInvalidRelation, r.ID)
		}
		r.ID = u.String()
	default:
		return r, fmt.Errorf("%w: unknown id kind %q", ErrInvalidRelation, r.Kind)
	}
	return r, nil
}

// Key identity of the reference, used for de-duplication
func (r RelationRef) Key() string {
	return r.Type + "|" + string(r.Kind) + "|" + r.ID
}

// LocaleNames locale code -> display name, stored as a JSON column
type LocaleNames = datatypes.JSONType[map[string]string]

// NewLocaleNames wraps a locale map for storage
func NewLocaleNames(names map[string]string) LocaleNames {
	if names == nil {
		names = map[string]string{}
	}
	return datatypes.NewJSONType(names)
}
