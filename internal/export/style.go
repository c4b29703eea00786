package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StyleSheet configures page geometry, fonts and text styles of PDF output.
// It is read from YAML; keys missing from the file keep their defaults.
type StyleSheet struct {
	PageSize   string  `yaml:"page_size"`   // A4, Letter, ...
	Margin     float64 `yaml:"margin"`      // mm, all sides
	LineHeight float64 `yaml:"line_height"` // multiple of the font size
	Indent     float64 `yaml:"indent"`      // mm per nesting level

	Fonts  FontFiles           `yaml:"fonts"`
	Styles map[Style]TextStyle `yaml:"styles"`
}

// FontFiles names the TrueType files of the body and monospace families.
// Missing variants fall back to Regular.
type FontFiles struct {
	Regular    string `yaml:"regular"`
	Bold       string `yaml:"bold"`
	Italic     string `yaml:"italic"`
	BoldItalic string `yaml:"bold_italic"`
	Mono       string `yaml:"mono"`
}

// TextStyle is the appearance of one element style.
type TextStyle struct {
	Size        float64 `yaml:"size"` // pt
	Bold        bool    `yaml:"bold"`
	Italic      bool    `yaml:"italic"`
	Mono        bool    `yaml:"mono"`
	Color       [3]int  `yaml:"color"`        // RGB
	SpaceBefore float64 `yaml:"space_before"` // mm
	SpaceAfter  float64 `yaml:"space_after"`  // mm
}

// DefaultStyleSheet returns the built-in style sheet.
func DefaultStyleSheet() StyleSheet {
	return StyleSheet{
		PageSize:   "A4",
		Margin:     20,
		LineHeight: 1.4,
		Indent:     6,
		Fonts: FontFiles{
			Regular:    "DejaVuSans.ttf",
			Bold:       "DejaVuSans-Bold.ttf",
			Italic:     "DejaVuSans-Oblique.ttf",
			BoldItalic: "DejaVuSans-BoldOblique.ttf",
			Mono:       "DejaVuSansMono.ttf",
		},
		Styles: map[Style]TextStyle{
			StyleTitle:     {Size: 18, Bold: true, SpaceAfter: 10},
			"h1":           {Size: 16, Bold: true, SpaceBefore: 4, SpaceAfter: 3},
			"h2":           {Size: 14, Bold: true, SpaceBefore: 3, SpaceAfter: 2},
			"h3":           {Size: 13, Bold: true, SpaceBefore: 3, SpaceAfter: 2},
			"h4":           {Size: 12, Bold: true, SpaceBefore: 2, SpaceAfter: 2},
			"h5":           {Size: 11, Bold: true, SpaceBefore: 2, SpaceAfter: 1},
			"h6":           {Size: 11, Bold: true, Italic: true, SpaceBefore: 2, SpaceAfter: 1},
			StyleBody:      {Size: 11, SpaceAfter: 3},
			StyleQuote:     {Size: 11, Italic: true, Color: [3]int{90, 90, 90}, SpaceAfter: 3},
			StyleCode:      {Size: 10, Mono: true, SpaceAfter: 3},
			StyleRule:      {Size: 11, Color: [3]int{180, 180, 180}, SpaceBefore: 2, SpaceAfter: 4},
			StyleTagsLabel: {Size: 14, Bold: true, SpaceBefore: 6, SpaceAfter: 1},
			StyleTags:      {Size: 11},
		},
	}
}

// LoadStyleSheet reads a YAML style sheet over the defaults.
func LoadStyleSheet(path string) (StyleSheet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return StyleSheet{}, fmt.Errorf("read style sheet: %w", err)
	}
	sheet := DefaultStyleSheet()
	if err := yaml.Unmarshal(raw, &sheet); err != nil {
		return StyleSheet{}, fmt.Errorf("parse style sheet %s: %w", path, err)
	}
	if sheet.Styles == nil {
		sheet.Styles = make(map[Style]TextStyle)
	}
	for name, ts := range DefaultStyleSheet().Styles {
		if _, ok := sheet.Styles[name]; !ok {
			sheet.Styles[name] = ts
		}
	}
	if err := sheet.validate(); err != nil {
		return StyleSheet{}, fmt.Errorf("style sheet %s: %w", path, err)
	}
	return sheet, nil
}

// style returns the style for s, falling back to the body style.
func (ss StyleSheet) style(s Style) TextStyle {
	if ts, ok := ss.Styles[s]; ok {
		return ts
	}
	return ss.Styles[StyleBody]
}

func (ss StyleSheet) validate() error {
	if ss.Margin < 0 {
		return fmt.Errorf("margin must not be negative")
	}
	if ss.LineHeight <= 0 {
		return fmt.Errorf("line_height must be positive")
	}
	for name, ts := range ss.Styles {
		if ts.Size <= 0 {
			return fmt.Errorf("style %q: size must be positive", name)
		}
	}
	return nil
}
