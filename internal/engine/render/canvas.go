package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/skip2/go-qrcode"
)

const (
	MinSize = 64
	MaxSize = 2048
)

var ErrNotDrawn = errors.New("canvas is empty")

// Level is the error-correction level of the symbol.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelQuartile
	LevelHigh // H, ~30% recovery
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "L"
	case LevelMedium:
		return "M"
	case LevelQuartile:
		return "Q"
	default:
		return "H"
	}
}

func (l Level) recovery() qrcode.RecoveryLevel {
	switch l {
	case LevelLow:
		return qrcode.Low
	case LevelMedium:
		return qrcode.Medium
	case LevelQuartile:
		return qrcode.High
	default:
		return qrcode.Highest
	}
}

// Config is everything the backend needs to paint one symbol.
type Config struct {
	Size       int
	Content    string
	Foreground color.Color
	Background color.Color
	Level      Level
}

func (c Config) validate() error {
	if c.Size < MinSize || c.Size > MaxSize {
		return fmt.Errorf("invalid size %d: must be between %d and %d", c.Size, MinSize, MaxSize)
	}
	return nil
}

// Canvas holds the most recently drawn symbol. A failed Draw leaves the
// previous symbol in place.
type Canvas struct {
	qr   *qrcode.QRCode
	size int
}

func NewCanvas() *Canvas {
	return &Canvas{}
}

func (c *Canvas) Draw(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	qr, err := qrcode.New(cfg.Content, cfg.Level.recovery())
	if err != nil {
		return fmt.Errorf("encode qr: %w", err)
	}

	if cfg.Foreground != nil {
		qr.ForegroundColor = cfg.Foreground
	}
	if cfg.Background != nil {
		qr.BackgroundColor = cfg.Background
	}

	c.qr = qr
	c.size = cfg.Size
	return nil
}

func (c *Canvas) Image() (image.Image, error) {
	if c.qr == nil {
		return nil, ErrNotDrawn
	}
	return c.qr.Image(c.size), nil
}

func (c *Canvas) PNG() ([]byte, error) {
	if c.qr == nil {
		return nil, ErrNotDrawn
	}

	b, err := c.qr.PNG(c.size)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return b, nil
}

// Bitmap returns the module matrix of the current symbol, border included.
func (c *Canvas) Bitmap() ([][]bool, error) {
	if c.qr == nil {
		return nil, ErrNotDrawn
	}
	return c.qr.Bitmap(), nil
}

// Encode draws cfg on a throwaway canvas and returns the PNG bytes.
func Encode(cfg Config) ([]byte, error) {
	c := NewCanvas()
	if err := c.Draw(cfg); err != nil {
		return nil, err
	}
	return c.PNG()
}
