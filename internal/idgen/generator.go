package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

// Generator produces unique string ids for events and connections.
type Generator interface {
	Generate() (string, error)
	Kind() string
}

// New returns the generator for kind: uuid (default), ulid or ksuid.
func New(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "uuid":
		return UUIDGenerator{}, nil
	case "ulid":
		return ULIDGenerator{}, nil
	case "ksuid":
		return KSUIDGenerator{}, nil
	default:
		return nil, fmt.Errorf("unsupported id generator: %q", kind)
	}
}

// UUIDGenerator generates random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

func (UUIDGenerator) Kind() string { return "uuid" }

// ULIDGenerator generates lexicographically sortable ULIDs.
type ULIDGenerator struct{}

func (ULIDGenerator) Generate() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

func (ULIDGenerator) Kind() string { return "ulid" }

// KSUIDGenerator generates K-sortable KSUIDs.
type KSUIDGenerator struct{}

func (KSUIDGenerator) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate KSUID: %w", err)
	}
	return id.String(), nil
}

func (KSUIDGenerator) Kind() string { return "ksuid" }
