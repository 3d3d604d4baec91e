package sessions

import "qrstudio/internal/engine/studio"

const (
	EventStatus   = "status"
	EventControls = "controls"
	EventTheme    = "theme"
	EventFocus    = "focus"
)

// Event is one notification for the browser page.
type Event struct {
	Type     string           `json:"type"`
	Status   *studio.Status   `json:"status,omitempty"`
	Controls *studio.Controls `json:"controls,omitempty"`
	Dark     *bool            `json:"dark,omitempty"`
	Target   string           `json:"target,omitempty"`
}

// Surface buffers controller notifications until the host picks them up.
type Surface struct {
	events []Event
}

func (s *Surface) ShowStatus(st studio.Status) {
	s.events = append(s.events, Event{Type: EventStatus, Status: &st})
}

func (s *Surface) SyncControls(c studio.Controls) {
	s.events = append(s.events, Event{Type: EventControls, Controls: &c})
}

func (s *Surface) SetDark(enabled bool) {
	s.events = append(s.events, Event{Type: EventTheme, Dark: &enabled})
}

func (s *Surface) FocusPrimary() {
	s.events = append(s.events, Event{Type: EventFocus, Target: "primary"})
}

func (s *Surface) drain() []Event {
	out := s.events
	s.events = nil
	return out
}
