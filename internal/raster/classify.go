package raster

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ClassSet is a set of labels.
type ClassSet map[Label]struct{}

// NewClassSet builds a set from labels.
func NewClassSet(labels ...Label) ClassSet {
	s := make(ClassSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

// Contains reports membership.
func (s ClassSet) Contains(l Label) bool {
	_, ok := s[l]
	return ok
}

// Sorted returns the labels in ascending order.
func (s ClassSet) Sorted() []Label {
	out := make([]Label, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Class is one entry of a classification scheme.
type Class struct {
	Value Label  `yaml:"value"`
	Name  string `yaml:"name"`
}

// Scheme names the labels a classification product emits.
type Scheme struct {
	Name    string  `yaml:"name"`
	Classes []Class `yaml:"classes"`
}

// DynamicWorld is the Dynamic World V1 label scheme.
var DynamicWorld = Scheme{
	Name: "dynamic_world_v1",
	Classes: []Class{
		{0, "water"},
		{1, "trees"},
		{2, "grass"},
		{3, "flooded_vegetation"},
		{4, "crops"},
		{5, "shrub_and_scrub"},
		{6, "built"},
		{7, "bare"},
		{8, "snow_and_ice"},
	},
}

// LoadScheme reads a YAML scheme file.
func LoadScheme(path string) (*Scheme, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read scheme %s", path)
	}
	return ParseScheme(b)
}

// ParseScheme decodes a YAML scheme.
func ParseScheme(b []byte) (*Scheme, error) {
	var s Scheme
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, eris.Wrap(err, "raster: parse scheme")
	}
	if len(s.Classes) == 0 {
		return nil, eris.New("raster: scheme has no classes")
	}
	seen := make(map[Label]bool, len(s.Classes))
	for _, c := range s.Classes {
		if seen[c.Value] {
			return nil, eris.Errorf("raster: scheme %q repeats value %d", s.Name, c.Value)
		}
		seen[c.Value] = true
	}
	return &s, nil
}

// Has reports whether the scheme defines l.
func (s *Scheme) Has(l Label) bool {
	for _, c := range s.Classes {
		if c.Value == l {
			return true
		}
	}
	return false
}

// Lookup resolves a class by name (case-insensitive) or by number.
func (s *Scheme) Lookup(ref string) (Label, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 0 || n > 255 || !s.Has(Label(n)) {
			return 0, eris.Errorf("raster: class %d not in scheme %q", n, s.Name)
		}
		return Label(n), nil
	}
	for _, c := range s.Classes {
		if strings.EqualFold(c.Name, ref) {
			return c.Value, nil
		}
	}
	return 0, eris.Errorf("raster: class %q not in scheme %q", ref, s.Name)
}

// ClassSet resolves refs into a set.
func (s *Scheme) ClassSet(refs []string) (ClassSet, error) {
	set := make(ClassSet, len(refs))
	for _, ref := range refs {
		l, err := s.Lookup(ref)
		if err != nil {
			return nil, err
		}
		set[l] = struct{}{}
	}
	return set, nil
}

// Classifier turns classification rasters into built-up masks.
type Classifier struct {
	builtup ClassSet
}

// NewClassifier validates the built-up set. When scheme is non-nil every
// built-up label must belong to it.
func NewClassifier(builtup ClassSet, scheme *Scheme) (*Classifier, error) {
	if len(builtup) == 0 {
		return nil, eris.New("raster: empty built-up class set")
	}
	if scheme != nil {
		for _, l := range builtup.Sorted() {
			if !scheme.Has(l) {
				return nil, eris.Errorf("raster: built-up class %d not in scheme %q", l, scheme.Name)
			}
		}
	}
	return &Classifier{builtup: builtup}, nil
}

// Builtup returns the configured set.
func (c *Classifier) Builtup() ClassSet { return c.builtup }

// Classify marks every cell whose label is built-up. NoData and unknown
// labels are never built-up.
func (c *Classifier) Classify(r *ClassificationRaster) (*Mask, error) {
	return Classify(r, c.builtup)
}

// Classify is the stateless form of Classifier.Classify.
func Classify(r *ClassificationRaster, builtup ClassSet) (*Mask, error) {
	if r == nil {
		return nil, eris.New("raster: nil raster")
	}
	if len(builtup) == 0 {
		return nil, eris.New("raster: empty built-up class set")
	}
	if len(r.Labels) != r.Grid.Len() {
		return nil, eris.Errorf("raster: %d labels for a %dx%d grid", len(r.Labels), r.Grid.Cols, r.Grid.Rows)
	}
	m := NewMask(r.Grid)
	for i, l := range r.Labels {
		if r.IsNoData(l) {
			continue
		}
		if builtup.Contains(l) {
			m.cells[i] = true
		}
	}
	return m, nil
}
