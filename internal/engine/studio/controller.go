package studio

import (
	"fmt"
	"time"

	"qrstudio/internal/engine/render"
)

// Backend paints the symbol and exports whatever it painted last.
type Backend interface {
	Draw(cfg render.Config) error
	PNG() ([]byte, error)
}

// Surface is the host UI the controller keeps in sync.
type Surface interface {
	ShowStatus(Status)
	SyncControls(Controls)
	SetDark(enabled bool)
	FocusPrimary()
}

// Saver hands exported bytes to the host's file-save mechanism.
type Saver interface {
	Save(name string, data []byte) error
}

type Status struct {
	Mode          Mode   `json:"mode"`
	ModeLabel     string `json:"mode_label"`
	GeneratedFrom string `json:"generated_from"`
	SizeText      string `json:"size_text"`
}

type Inputs struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Controls mirrors the form controls: text inputs, size radio, color
// pickers and the active swatch.
type Controls struct {
	Inputs     Inputs `json:"inputs"`
	Size       int    `json:"size"`
	Foreground string `json:"foreground"`
	Background string `json:"background"`
	Template   int    `json:"template"`
}

type View struct {
	Content  string   `json:"content"`
	Controls Controls `json:"controls"`
	Status   Status   `json:"status"`
	Dark     bool     `json:"dark"`
}

var now = time.Now

// Controller owns one session's state and keeps the backend and surface
// consistent with it. It is not safe for concurrent use.
type Controller struct {
	state   State
	inputs  Inputs
	status  Status
	dark    bool
	backend Backend
	surface Surface
}

// NewController applies the first template and draws the example.
func NewController(backend Backend, surface Surface) (*Controller, error) {
	if surface == nil {
		surface = nopSurface{}
	}
	c := &Controller{
		state:   NewState(),
		inputs:  Inputs{Primary: Example},
		backend: backend,
		surface: surface,
	}
	c.surface.SyncControls(c.controls())
	if err := c.Render(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) SetContentFromInputs(primary, secondary string) error {
	c.inputs = Inputs{Primary: primary, Secondary: secondary}
	c.state.SetContentFromInputs(primary, secondary)
	return c.Render()
}

func (c *Controller) ApplyTemplate(index int) error {
	if err := c.state.ApplyTemplate(index); err != nil {
		return err
	}
	c.surface.SyncControls(c.controls())
	return c.Render()
}

func (c *Controller) SetCustomColor(ch Channel, color Color) error {
	if err := c.state.SetCustomColor(ch, color); err != nil {
		return err
	}
	c.surface.SyncControls(c.controls())
	return c.Render()
}

func (c *Controller) SetSize(size Size) error {
	if err := c.state.SetSize(size); err != nil {
		return err
	}
	c.surface.SyncControls(c.controls())
	return c.Render()
}

func (c *Controller) Reset() error {
	c.state.Reset()
	c.inputs = Inputs{Primary: Example}
	c.surface.SyncControls(c.controls())
	if err := c.Render(); err != nil {
		return err
	}
	c.surface.FocusPrimary()
	return nil
}

// Render refreshes the status fields and redraws at level H. Calling it
// again with unchanged state produces the same config.
func (c *Controller) Render() error {
	mode := Classify(c.state.Content)
	c.status = Status{
		Mode:          mode,
		ModeLabel:     "Mode: " + string(mode),
		GeneratedFrom: string(mode),
		SizeText:      c.state.Size.String(),
	}
	c.surface.ShowStatus(c.status)

	if err := c.backend.Draw(c.RenderConfig()); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// RenderConfig is the config Render pushes for the current state.
func (c *Controller) RenderConfig() render.Config {
	return render.Config{
		Size:       int(c.state.Size),
		Content:    c.state.Content,
		Foreground: c.state.Foreground.RGBA(),
		Background: c.state.Background.RGBA(),
		Level:      render.LevelHigh,
	}
}

// ExportImage redraws, then saves the PNG as qr-<unix millis>.png and
// returns that name. Session state is only read.
func (c *Controller) ExportImage(saver Saver) (string, error) {
	if err := c.Render(); err != nil {
		return "", err
	}

	data, err := c.backend.PNG()
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}

	name := ExportName(now())
	if err := saver.Save(name, data); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return name, nil
}

// PNG returns the last drawn symbol without redrawing.
func (c *Controller) PNG() ([]byte, error) {
	return c.backend.PNG()
}

func ExportName(t time.Time) string {
	return fmt.Sprintf("qr-%d.png", t.UnixMilli())
}

func (c *Controller) SetTheme(dark bool) {
	c.dark = dark
	c.surface.SetDark(dark)
}

func (c *Controller) View() View {
	return View{
		Content:  c.state.Content,
		Controls: c.controls(),
		Status:   c.status,
		Dark:     c.dark,
	}
}

func (c *Controller) controls() Controls {
	return Controls{
		Inputs:     c.inputs,
		Size:       int(c.state.Size),
		Foreground: c.state.Foreground.String(),
		Background: c.state.Background.String(),
		Template:   c.state.Template,
	}
}

type nopSurface struct{}

func (nopSurface) ShowStatus(Status)     {}
func (nopSurface) SyncControls(Controls) {}
func (nopSurface) SetDark(bool)          {}
func (nopSurface) FocusPrimary()         {}
