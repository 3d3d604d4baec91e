package studio

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Example is the content shown when both inputs are empty.
const Example = "https://github.com/berserk-gif"

// NoTemplate marks a state whose colors were picked by hand.
const NoTemplate = -1

var (
	ErrTemplateOutOfRange = errors.New("template index out of range")
	ErrInvalidSize        = errors.New("invalid size")
	ErrInvalidColor       = errors.New("invalid color")
	ErrInvalidChannel     = errors.New("invalid color channel")
)

type Size int

const (
	Size128  Size = 128
	Size256  Size = 256
	Size512  Size = 512
	Size1024 Size = 1024

	DefaultSize = Size256
)

var sizes = []Size{Size128, Size256, Size512, Size1024}

// Sizes returns the allowed render sizes in ascending order.
func Sizes() []Size {
	out := make([]Size, len(sizes))
	copy(out, sizes)
	return out
}

func ParseSize(v int) (Size, error) {
	for _, s := range sizes {
		if int(s) == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidSize, v)
}

func (s Size) String() string {
	return strconv.Itoa(int(s))
}

// Color is an opaque RGB triplet.
type Color struct {
	R, G, B uint8
}

// ParseColor accepts "#rrggbb", "rrggbb" and "#rgb", case-insensitive.
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

type Channel string

const (
	Foreground Channel = "foreground"
	Background Channel = "background"
)

func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(s) {
	case "foreground", "fg":
		return Foreground, nil
	case "background", "bg":
		return Background, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
}

type Template struct {
	Name       string
	Foreground Color
	Background Color
}

var templates = []Template{
	{Name: "Classic", Foreground: MustParseColor("#0b0b0b"), Background: MustParseColor("#ffffff")},
	{Name: "Ocean", Foreground: MustParseColor("#003f8a"), Background: MustParseColor("#e6f2ff")},
	{Name: "Mint", Foreground: MustParseColor("#052b18"), Background: MustParseColor("#b6f5d1")},
	{Name: "Sunset", Foreground: MustParseColor("#3b1f00"), Background: MustParseColor("#ffd6a6")},
	{Name: "Neon", Foreground: MustParseColor("#0a0a0a"), Background: MustParseColor("#6ef3c1")},
	{Name: "Midnight", Foreground: MustParseColor("#ffd66b"), Background: MustParseColor("#0a0b1a")},
}

// Templates returns a copy of the fixed template list.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

func TemplateAt(index int) (Template, error) {
	if index < 0 || index >= len(templates) {
		return Template{}, fmt.Errorf("%w: %d", ErrTemplateOutOfRange, index)
	}
	return templates[index], nil
}

// State is the per-session render state. Its methods are pure transitions:
// they touch nothing but the receiver.
type State struct {
	Content    string
	Size       Size
	Foreground Color
	Background Color
	Template   int
}

func NewState() State {
	s := State{Content: Example, Size: DefaultSize}
	s.applyTemplate(0)
	return s
}

// SetContentFromInputs picks the first non-blank of primary and secondary,
// falling back to Example.
func (s *State) SetContentFromInputs(primary, secondary string) {
	s.Content = ContentFromInputs(primary, secondary)
}

func (s *State) ApplyTemplate(index int) error {
	if _, err := TemplateAt(index); err != nil {
		return err
	}
	s.applyTemplate(index)
	return nil
}

func (s *State) applyTemplate(index int) {
	t := templates[index]
	s.Template = index
	s.Foreground = t.Foreground
	s.Background = t.Background
}

func (s *State) SetCustomColor(ch Channel, c Color) error {
	switch ch {
	case Foreground:
		s.Foreground = c
	case Background:
		s.Background = c
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChannel, ch)
	}
	s.Template = NoTemplate
	return nil
}

func (s *State) SetSize(size Size) error {
	v, err := ParseSize(int(size))
	if err != nil {
		return err
	}
	s.Size = v
	return nil
}

func (s *State) Reset() {
	*s = NewState()
}
