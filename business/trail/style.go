package trail

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Style is the optional yaml file overriding the route palette and reference thresholds, for example:
//
//	palette: [red, blue, green, orange, purple, brown, teal]
//	thresholds: [2m, 5m, 10m]
type Style struct {
	Palette    []string        `yaml:"palette" validate:"omitempty,dive,required"`
	Thresholds []time.Duration `yaml:"thresholds" validate:"omitempty,dive,gt=0"`
}

// ParseStyle reads and validates a Style from yaml
func ParseStyle(data []byte) (Style, error) {
	var style Style
	if err := yaml.Unmarshal(data, &style); err != nil {
		return Style{}, fmt.Errorf("parsing trail style: %w", err)
	}
	if err := validator.New().Struct(style); err != nil {
		return Style{}, fmt.Errorf("validating trail style: %w", err)
	}
	return style, nil
}

// LoadStyle reads the Style file at path. An empty path returns an empty Style
func LoadStyle(path string) (Style, error) {
	if len(path) == 0 {
		return Style{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Style{}, fmt.Errorf("reading trail style %s: %w", path, err)
	}
	return ParseStyle(data)
}

// Apply returns a copy of options with any palette or thresholds present in the Style
func (s Style) Apply(options Options) Options {
	if len(s.Palette) > 0 {
		options.Palette = append(Palette{}, s.Palette...)
	}
	if len(s.Thresholds) > 0 {
		options.Thresholds = append([]time.Duration{}, s.Thresholds...)
	}
	return options
}
