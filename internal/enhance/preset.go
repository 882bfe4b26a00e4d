package enhance

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"bond-log-enhancer/internal/domain"

	"gopkg.in/yaml.v3"
)

// DefaultPreset is used when no preset is named.
const DefaultPreset = "default"

// Preset is a named enhancement chain with its rasterization DPI and optional mask.
type Preset struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description" json:"description"`
	DPI         float64     `yaml:"dpi" json:"dpi"`
	Enhance     Config      `yaml:"enhance" json:"enhance"`
	Mask        *MaskConfig `yaml:"mask,omitempty" json:"mask,omitempty"`
}

// Validate checks the preset can be applied.
func (p Preset) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &domain.ValidationError{Field: "name", Message: "preset name is required"}
	}
	if p.DPI < 0 {
		return &domain.ValidationError{Field: "dpi", Message: "must not be negative"}
	}
	if err := p.Enhance.Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", p.Name, err)
	}
	if p.Mask != nil {
		if len(p.Mask.Ranges) == 0 {
			return &domain.ValidationError{Field: "mask.ranges", Message: "at least one hue range is required"}
		}
		for i, r := range p.Mask.Ranges {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("preset %s: mask range %d: %w", p.Name, i, err)
			}
		}
	}
	return nil
}

func builtinPresets() []Preset {
	return []Preset{
		{
			Name:        DefaultPreset,
			Description: "Moderate contrast boost, light sharpening, automatic threshold",
			DPI:         300,
			Enhance:     Config{Contrast: 2.0, Sharpen: 1.0, Binarize: BinarizeOtsu},
		},
		{
			Name:        "high-dpi-high-contrast",
			Description: "Faint text: 500 DPI, triple contrast, thickened strokes, fixed threshold",
			DPI:         500,
			Enhance:     Config{Contrast: 3.0, Sharpen: 1.5, Thicken: 1, Binarize: BinarizeFixed, Threshold: 130},
		},
		{
			Name:        "adaptive-threshold",
			Description: "Uneven lighting: local mean threshold over a 31px window",
			DPI:         300,
			Enhance:     Config{Contrast: 1.5, Denoise: 0.5, Binarize: BinarizeAdaptive, Window: 31, Bias: 10},
		},
		{
			Name:        "tinted-carbon-copy",
			Description: "Pink carbon copies: remove the tint, then boost contrast",
			DPI:         400,
			Enhance:     Config{Contrast: 3.0, Binarize: BinarizeOtsu},
			Mask:        &MaskConfig{Ranges: append([]HueRange(nil), PinkCarbonRanges...)},
		},
		{
			Name:        "light",
			Description: "Slight contrast lift, keeps grayscale",
			DPI:         200,
			Enhance:     Config{Contrast: 1.2, Binarize: BinarizeNone},
		},
	}
}

// Registry holds named presets.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewRegistry returns a registry seeded with the built-in presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset)}
	for _, p := range builtinPresets() {
		r.presets[p.Name] = p
	}
	return r
}

// Register adds or replaces a preset.
func (r *Registry) Register(p Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[p.Name] = p
	return nil
}

// Lookup returns the named preset; an empty name selects DefaultPreset.
func (r *Registry) Lookup(name string) (Preset, error) {
	if name == "" {
		name = DefaultPreset
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", domain.ErrUnknownPreset, name)
	}
	return p, nil
}

// Presets lists all presets sorted by name.
func (r *Registry) Presets() []Preset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Preset, 0, len(r.presets))
	for _, p := range r.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type presetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets reads a YAML file of the form
//
//	presets:
//	  - name: faint-ink
//	    dpi: 450
//	    enhance: {contrast: 2.5, binarize: fixed, threshold: 140}
//
// and registers every entry.
func (r *Registry) LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	for _, p := range f.Presets {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return f.Presets, nil
}

var defaultRegistry = NewRegistry()

// Presets lists the presets of the process-wide registry.
func Presets() []Preset { return defaultRegistry.Presets() }

// Lookup finds a preset in the process-wide registry.
func Lookup(name string) (Preset, error) { return defaultRegistry.Lookup(name) }

// LoadPresets adds presets from a YAML file to the process-wide registry.
func LoadPresets(path string) ([]Preset, error) { return defaultRegistry.LoadPresets(path) }
