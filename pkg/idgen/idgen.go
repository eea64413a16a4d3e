package idgen

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"
)

// Generator kinds
const (
	KindSonyflake = "sonyflake"
	KindUUID      = "uuid"
)

// IDGenerator is the interface for generating unique IDs
type IDGenerator interface {
	// NextID generates a new unique ID
	NextID() (string, error)
}

// SonyflakeGenerator implements IDGenerator using sonyflake
type SonyflakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewSonyflakeGenerator creates a new SonyflakeGenerator
func NewSonyflakeGenerator(machineID uint16) (*SonyflakeGenerator, error) {
	st := sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (uint16, error) {
			return machineID, nil
		},
	}

	sf, err := sonyflake.New(st)
	if err != nil {
		return nil, fmt.Errorf("failed to create sonyflake: %w", err)
	}

	return &SonyflakeGenerator{sf: sf}, nil
}

// NextID generates a new unique ID
func (g *SonyflakeGenerator) NextID() (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return strconv.FormatUint(id, 10), nil
}

// UUIDGenerator implements IDGenerator using random (v4) UUIDs
type UUIDGenerator struct{}

// NewUUIDGenerator creates a new UUIDGenerator
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NextID generates a new UUID
func (g *UUIDGenerator) NextID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate uuid: %w", err)
	}
	return id.String(), nil
}

// New creates a generator of the given kind. An empty kind selects sonyflake.
func New(kind string, machineID uint16) (IDGenerator, error) {
	switch kind {
	case "", KindSonyflake:
		return NewSonyflakeGenerator(machineID)
	case KindUUID:
		return NewUUIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown id generator: %s", kind)
	}
}
