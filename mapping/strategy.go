package mapping

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Strategy selects which tables a directive populates and where each key
// comes from. Valid strategies are 1 through 9.
type Strategy int

const (
	// ContentByID writes content under extracted ids
	ContentByID Strategy = iota + 1
	// ContentByCounter writes content under synthesized ids
	ContentByCounter
	// MappingByIDAndSlot maps extracted slots to extracted ids
	MappingByIDAndSlot
	// MappingSynthesized maps synthesized slots to synthesized ids
	MappingSynthesized
	// MappingByID maps synthesized slots to extracted ids
	MappingByID
	// ContentAndMappingByIDAndSlot writes both tables from extracted ids and slots
	ContentAndMappingByIDAndSlot
	// ContentAndMappingBySlot writes both tables from synthesized ids and extracted slots
	ContentAndMappingBySlot
	// ContentAndMappingByID writes both tables from extracted ids and synthesized slots
	ContentAndMappingByID
	// ContentAndMappingSynthesized writes both tables from synthesized ids and slots
	ContentAndMappingSynthesized
)

// KeySource says where a key comes from in a strategy
type KeySource int

const (
	// Unused means the strategy has no such key
	Unused KeySource = iota
	// Extracted keys come from the directive's path
	Extracted
	// Synthesized keys are allocated by the engine
	Synthesized
)

func (s KeySource) String() string {
	switch s {
	case Extracted:
		return "extracted"
	case Synthesized:
		return "synthesized"
	default:
		return "unused"
	}
}

// Plan is the per-strategy population recipe
type Plan struct {
	WritesContent  bool
	WritesMappings bool
	ID             KeySource
	Slot           KeySource
}

var plans = map[Strategy]Plan{
	ContentByID:                  {WritesContent: true, ID: Extracted},
	ContentByCounter:             {WritesContent: true, ID: Synthesized},
	MappingByIDAndSlot:           {WritesMappings: true, ID: Extracted, Slot: Extracted},
	MappingSynthesized:           {WritesMappings: true, ID: Synthesized, Slot: Synthesized},
	MappingByID:                  {WritesMappings: true, ID: Extracted, Slot: Synthesized},
	ContentAndMappingByIDAndSlot: {WritesContent: true, WritesMappings: true, ID: Extracted, Slot: Extracted},
	ContentAndMappingBySlot:      {WritesContent: true, WritesMappings: true, ID: Synthesized, Slot: Extracted},
	ContentAndMappingByID:        {WritesContent: true, WritesMappings: true, ID: Extracted, Slot: Synthesized},
	ContentAndMappingSynthesized: {WritesContent: true, WritesMappings: true, ID: Synthesized, Slot: Synthesized},
}

var names = map[Strategy]string{
	ContentByID:                  "ContentByID",
	ContentByCounter:             "ContentByCounter",
	MappingByIDAndSlot:           "MappingByIDAndSlot",
	MappingSynthesized:           "MappingSynthesized",
	MappingByID:                  "MappingByID",
	ContentAndMappingByIDAndSlot: "ContentAndMappingByIDAndSlot",
	ContentAndMappingBySlot:      "ContentAndMappingBySlot",
	ContentAndMappingByID:        "ContentAndMappingByID",
	ContentAndMappingSynthesized: "ContentAndMappingSynthesized",
}

// Strategies returns every valid strategy in ascending order
func Strategies() []Strategy {
	out := make([]Strategy, 0, len(plans))
	for s := ContentByID; s <= ContentAndMappingSynthesized; s++ {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s is one of the nine strategies
func (s Strategy) Valid() bool {
	_, ok := plans[s]
	return ok
}

// Plan returns the recipe for s
func (s Strategy) Plan() (Plan, error) {
	p, ok := plans[s]
	if !ok {
		return Plan{}, errors.Wrapf(ErrInvalidStrategy, "strategy %d is not in 1..9", int(s))
	}
	return p, nil
}

// ParseStrategy accepts the strategy number as text
func ParseStrategy(text string) (Strategy, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidStrategy, "strategy %q is not a number", text)
	}
	s := Strategy(n)
	if !s.Valid() {
		return 0, errors.Wrapf(ErrInvalidStrategy, "strategy %d is not in 1..9", n)
	}
	return s, nil
}

// Name returns the Go identifier of the strategy, or "Invalid"
func (s Strategy) Name() string {
	if name, ok := names[s]; ok {
		return name
	}
	return "Invalid"
}

func (s Strategy) String() string {
	return strconv.Itoa(int(s))
}

// Describe returns a one-line human description of the strategy
func (s Strategy) Describe() string {
	p, ok := plans[s]
	if !ok {
		return fmt.Sprintf("%d: invalid", int(s))
	}
	var tables []string
	if p.WritesContent {
		tables = append(tables, "content")
	}
	if p.WritesMappings {
		tables = append(tables, "mappings")
	}
	desc := fmt.Sprintf("%d: writes %s; id %s", int(s), strings.Join(tables, "+"), p.ID)
	if p.WritesMappings {
		desc += "; slot " + p.Slot.String()
	}
	return desc
}
