package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StepType classifies what a capture step photographs.
type StepType string

const (
	StepSoil  StepType = "soil"
	StepCrop  StepType = "crop"
	StepWater StepType = "water"
	StepField StepType = "field"
)

// Thresholds are optional per-step overrides applied by the quality
// service when analyzing frames for that step.
type Thresholds struct {
	MinSharpness  *float64 `yaml:"min_sharpness,omitempty" json:"minSharpness,omitempty"`
	MinBrightness *float64 `yaml:"min_brightness,omitempty" json:"minBrightness,omitempty"`
}

// Step is one unit of the guided capture sequence.
type Step struct {
	ID               string      `yaml:"id" json:"id"`
	Title            string      `yaml:"title" json:"title"`
	InstructionID    string      `yaml:"instruction_id" json:"instructionId"`
	Required         bool        `yaml:"required" json:"required"`
	Type             StepType    `yaml:"type" json:"type"`
	StepNumber       int         `yaml:"step_number" json:"stepNumber"`
	QualityOverrides *Thresholds `yaml:"quality_overrides,omitempty" json:"qualityOverrides,omitempty"`
}

// Catalog is the immutable ordered list of capture steps. It is built
// once at process start and shared without locking.
type Catalog struct {
	steps []Step
	byID  map[string]int
}

func f64(v float64) *float64 { return &v }

// defaultSteps is the built-in seven-step capture sequence.
func defaultSteps() []Step {
	return []Step{
		{ID: "soil_1", Title: "Soil Sample 1", InstructionID: "step_soil_1", Required: true, Type: StepSoil, StepNumber: 1,
			QualityOverrides: &Thresholds{MinSharpness: f64(0.45)}},
		{ID: "soil_2", Title: "Soil Sample 2", InstructionID: "step_soil_2", Required: true, Type: StepSoil, StepNumber: 2,
			QualityOverrides: &Thresholds{MinSharpness: f64(0.45)}},
		{ID: "crop_1", Title: "Crop Close-up", InstructionID: "step_crop_1", Required: true, Type: StepCrop, StepNumber: 3},
		{ID: "crop_2", Title: "Crop Row", InstructionID: "step_crop_2", Required: false, Type: StepCrop, StepNumber: 4},
		{ID: "water_1", Title: "Water Source", InstructionID: "step_water_1", Required: true, Type: StepWater, StepNumber: 5,
			QualityOverrides: &Thresholds{MinBrightness: f64(0.30)}},
		{ID: "field_1", Title: "Field Overview", InstructionID: "step_field_1", Required: true, Type: StepField, StepNumber: 6},
		{ID: "field_2", Title: "Field Boundary", InstructionID: "step_field_2", Required: false, Type: StepField, StepNumber: 7},
	}
}

// Default returns the built-in capture sequence.
func Default() *Catalog {
	c, err := New(defaultSteps())
	if err != nil {
		// The built-in steps are validated by tests; this cannot happen
		// at runtime.
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return c
}

// New builds a catalog from an explicit step list. Step numbers must be
// a dense 1..N ordering matching array order and ids must be unique.
func New(steps []Step) (*Catalog, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one step")
	}

	byID := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("step %d: id is required", i+1)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate step id: %s", s.ID)
		}
		if s.StepNumber != i+1 {
			return nil, fmt.Errorf("step %s: step_number %d does not match position %d", s.ID, s.StepNumber, i+1)
		}
		switch s.Type {
		case StepSoil, StepCrop, StepWater, StepField:
		default:
			return nil, fmt.Errorf("step %s: unknown type %q", s.ID, s.Type)
		}
		byID[s.ID] = i
	}

	return &Catalog{steps: steps, byID: byID}, nil
}

// LoadFile loads a catalog definition from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc struct {
		Steps []Step `yaml:"steps"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return New(doc.Steps)
}

// Steps returns the ordered step list. Callers must not modify it.
func (c *Catalog) Steps() []Step { return c.steps }

// Len returns the number of steps in the sequence.
func (c *Catalog) Len() int { return len(c.steps) }

// At returns the step at the given zero-based index.
func (c *Catalog) At(index int) (Step, bool) {
	if index < 0 || index >= len(c.steps) {
		return Step{}, false
	}
	return c.steps[index], true
}

// ByID looks up a step by id.
func (c *Catalog) ByID(id string) (Step, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Step{}, false
	}
	return c.steps[i], true
}

// RequiredCount returns how many steps are marked required.
func (c *Catalog) RequiredCount() int {
	n := 0
	for _, s := range c.steps {
		if s.Required {
			n++
		}
	}
	return n
}

// AllRequiredCaptured reports whether every required step id is present
// in capturedIDs.
func (c *Catalog) AllRequiredCaptured(capturedIDs map[string]bool) bool {
	for _, s := range c.steps {
		if s.Required && !capturedIDs[s.ID] {
			return false
		}
	}
	return true
}

// NextUncaptured returns the first step at or after fromIndex whose id
// is not in capturedIDs.
func (c *Catalog) NextUncaptured(capturedIDs map[string]bool, fromIndex int) (Step, bool) {
	if fromIndex < 0 {
		fromIndex = 0
	}
	for i := fromIndex; i < len(c.steps); i++ {
		if !capturedIDs[c.steps[i].ID] {
			return c.steps[i], true
		}
	}
	return Step{}, false
}
