// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package j1939

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// SpnDefinition locates an SPN inside its parameter group
type SpnDefinition struct {
	SPN       uint32 `yaml:"spn"`
	Label     string `yaml:"label"`
	StartByte int    `yaml:"start_byte"` // 1-based
	StartBit  int    `yaml:"start_bit"`  // 1-based within StartByte
	Slot      int    `yaml:"slot"`
	// BitLength overrides the slot's width for SPNs that reuse a wider SLOT
	BitLength int `yaml:"bit_length,omitempty"`
}

// PgnDefinition lists the SPNs of a parameter group in transmission order
type PgnDefinition struct {
	PGN     uint32          `yaml:"pgn"`
	Label   string          `yaml:"label"`
	Acronym string          `yaml:"acronym"`
	Length  int             `yaml:"length"` // 0 for variable length
	Spns    []SpnDefinition `yaml:"spns"`
}

// Definitions is the read-only PGN/SPN/SLOT lookup used by the decoders.
type Definitions interface {
	FindPGN(pgn uint32) (*PgnDefinition, bool)
	FindSPN(spn uint32) (*SpnDefinition, bool)
	FindSlot(slot int, spn uint32) (*Slot, bool)
}

// Labels supplies human-readable names for rendering only.
type Labels interface {
	SPNName(spn uint32) string
	FMIDescription(fmi uint8) string
	AddressName(addr uint8) string
}

// ErrInvalidDefinition is returned when a definition file is inconsistent
var ErrInvalidDefinition = errors.New("invalid definition")

//go:embed definitions.yaml
var embeddedDefinitions []byte

type slotDocument struct {
	ID        int      `yaml:"id"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Scaling   *float64 `yaml:"scaling"`
	Offset    *float64 `yaml:"offset"`
	Unit      string   `yaml:"unit"`
	BitLength int      `yaml:"bit_length"`
	Delimited bool     `yaml:"delimited"`
}

type repositoryDocument struct {
	Slots     []slotDocument   `yaml:"slots"`
	PGNs      []PgnDefinition  `yaml:"pgns"`
	SPNs      []SpnDefinition  `yaml:"spns"`
	FMIs      map[uint8]string `yaml:"fmis"`
	Addresses map[uint8]string `yaml:"addresses"`
}

// Repository is a Definitions and Labels implementation loaded from YAML.
// It is read-only after loading and safe for concurrent use.
type Repository struct {
	slots     map[int]*Slot
	pgns      map[uint32]*PgnDefinition
	spns      map[uint32]*SpnDefinition
	fmis      map[uint8]string
	addresses map[uint8]string
}

var (
	defaultRepo     *Repository
	defaultRepoOnce sync.Once
)

// DefaultRepository returns the repository built from the embedded
// definition set.
func DefaultRepository() *Repository {
	defaultRepoOnce.Do(func() {
		repo, err := ParseRepository(embeddedDefinitions)
		if err != nil {
			panic(fmt.Sprintf("embedded definitions: %v", err))
		}
		defaultRepo = repo
	})
	return defaultRepo
}

// LoadRepositoryFile loads a definition file from disk
func LoadRepositoryFile(path string) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open definitions: %w", err)
	}
	defer f.Close()
	return LoadRepository(f)
}

// LoadRepository reads a YAML definition document from r
func LoadRepository(r io.Reader) (*Repository, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}
	return ParseRepository(data)
}

// ParseRepository parses a YAML definition document
func ParseRepository(data []byte) (*Repository, error) {
	var doc repositoryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}

	repo := &Repository{
		slots:     make(map[int]*Slot, len(doc.Slots)),
		pgns:      make(map[uint32]*PgnDefinition, len(doc.PGNs)),
		spns:      make(map[uint32]*SpnDefinition),
		fmis:      make(map[uint8]string, len(fmiDescriptions)),
		addresses: make(map[uint8]string, len(addressNames)),
	}
	for k, v := range fmiDescriptions {
		repo.fmis[k] = v
	}
	for k, v := range addressNames {
		repo.addresses[k] = v
	}
	for k, v := range doc.FMIs {
		repo.fmis[k] = v
	}
	for k, v := range doc.Addresses {
		repo.addresses[k] = v
	}

	for _, sd := range doc.Slots {
		typ, err := ParseSlotType(sd.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d: %v", ErrInvalidDefinition, sd.ID, err)
		}
		if sd.BitLength <= 0 {
			return nil, fmt.Errorf("%w: slot %d: bit length %d", ErrInvalidDefinition, sd.ID, sd.BitLength)
		}
		if _, dup := repo.slots[sd.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %d", ErrInvalidDefinition, sd.ID)
		}
		repo.slots[sd.ID] = NewSlot(SlotConfig{
			ID:        sd.ID,
			Name:      sd.Name,
			Type:      typ,
			Scaling:   sd.Scaling,
			Offset:    sd.Offset,
			Unit:      sd.Unit,
			BitLength: sd.BitLength,
			Delimited: sd.Delimited,
		})
	}

	for i := range doc.PGNs {
		pd := doc.PGNs[i]
		if _, dup := repo.pgns[pd.PGN]; dup {
			return nil, fmt.Errorf("%w: duplicate PGN %d", ErrInvalidDefinition, pd.PGN)
		}
		for j := range pd.Spns {
			if err := repo.addSPN(pd.Spns[j]); err != nil {
				return nil, err
			}
		}
		repo.pgns[pd.PGN] = &pd
	}
	for _, sd := range doc.SPNs {
		if err := repo.addSPN(sd); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (r *Repository) addSPN(sd SpnDefinition) error {
	if sd.SPN > maxSPN {
		return fmt.Errorf("%w: SPN %d out of range", ErrInvalidDefinition, sd.SPN)
	}
	if _, ok := r.slots[sd.Slot]; !ok {
		return fmt.Errorf("%w: SPN %d references unknown slot %d", ErrInvalidDefinition, sd.SPN, sd.Slot)
	}
	if _, dup := r.spns[sd.SPN]; !dup {
		def := sd
		r.spns[sd.SPN] = &def
	}
	return nil
}

// FindPGN returns the definition of a parameter group
func (r *Repository) FindPGN(pgn uint32) (*PgnDefinition, bool) {
	def, ok := r.pgns[pgn]
	return def, ok
}

// FindSPN returns the definition of an SPN
func (r *Repository) FindSPN(spn uint32) (*SpnDefinition, bool) {
	def, ok := r.spns[spn]
	return def, ok
}

// FindSlot returns the slot used to decode spn. When the SPN definition
// narrows the slot's width a copy with that width is returned.
func (r *Repository) FindSlot(slot int, spn uint32) (*Slot, bool) {
	s, ok := r.slots[slot]
	if !ok {
		return nil, false
	}
	if def, ok := r.spns[spn]; ok && def.BitLength > 0 && def.BitLength != s.bitLength {
		c := *s
		c.bitLength = def.BitLength
		return &c, true
	}
	return s, true
}

// PGNs returns the defined parameter group numbers in ascending order
func (r *Repository) PGNs() []uint32 {
	out := make([]uint32, 0, len(r.pgns))
	for pgn := range r.pgns {
		out = append(out, pgn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SPNName returns the SPN label, or "Unknown"
func (r *Repository) SPNName(spn uint32) string {
	if def, ok := r.spns[spn]; ok && def.Label != "" {
		return def.Label
	}
	return "Unknown"
}

// FMIDescription returns the failure mode text
func (r *Repository) FMIDescription(fmi uint8) string {
	if d, ok := r.fmis[fmi]; ok {
		return d
	}
	return fmt.Sprintf("Unknown FMI %d", fmi)
}

// AddressName returns the preferred-address name of a source address
func (r *Repository) AddressName(addr uint8) string {
	if n, ok := r.addresses[addr]; ok {
		return fmt.Sprintf("%s (%d)", n, addr)
	}
	return fmt.Sprintf("Unknown (%d)", addr)
}
