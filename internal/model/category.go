package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Category is the closed set of protected-area layers. Adding a layer means
// adding a constant here and to categoryNames.
type Category int

const (
	// CategorySAC is "Situación Ambiental Conflictiva".
	CategorySAC Category = iota + 1
	// CategoryCerrosOrientales is the Bosque Oriental de Bogotá forest reserve.
	CategoryCerrosOrientales
	// CategoryEEP is the Estructura Ecológica Principal.
	CategoryEEP
)

// Category column values of the rows that are not a single category.
const (
	// TotalLabel marks the all-expansion row.
	TotalLabel = "total"
	// ProtectedLabel marks expansion inside at least one protected area.
	ProtectedLabel = "protected_any"
	// UnprotectedLabel marks expansion outside every protected area.
	UnprotectedLabel = "unprotected"
)

var categoryNames = map[Category]string{
	CategorySAC:              "SAC",
	CategoryCerrosOrientales: "CerrosOrientales",
	CategoryEEP:              "EEP",
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{CategorySAC, CategoryCerrosOrientales, CategoryEEP}
}

// String returns the canonical category name.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether c is a declared category.
func (c Category) Valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// ParseCategory resolves a category name case-insensitively. "reserva" and
// "cerros_orientales" are accepted aliases used by the source layer files.
func ParseCategory(s string) (Category, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	switch norm {
	case "sac":
		return CategorySAC, nil
	case "cerrosorientales", "reserva", "reservacerrosorientales":
		return CategoryCerrosOrientales, nil
	case "eep", "estructuraecologicaprincipal":
		return CategoryEEP, nil
	}
	return 0, eris.Errorf("model: unknown protected-area category %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, eris.Errorf("model: cannot marshal category %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
