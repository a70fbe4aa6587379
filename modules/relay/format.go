package relay

import (
	"time"

	domain "github.com/example/room-relay/domain/presence"
)

// DefaultTimeLayout renders hours, minutes and seconds.
const DefaultTimeLayout = "15:04:05"

// Formatter builds chat messages stamped at construction time in a fixed
// location and layout, so every client shows the same time for a message.
type Formatter struct {
	loc    *time.Location
	layout string
	now    func() time.Time
}

// NewFormatter creates a formatter. A nil loc means UTC; an empty layout
// means DefaultTimeLayout.
func NewFormatter(loc *time.Location, layout string) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return &Formatter{loc: loc, layout: layout, now: time.Now}
}

// WithClock returns a copy of f reading time from now.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	c := *f
	c.now = now
	return &c
}

// Build returns a message from name carrying text.
func (f *Formatter) Build(name, text string) domain.ChatMessage {
	return domain.ChatMessage{
		Name: name,
		Text: text,
		Time: f.now().In(f.loc).Format(f.layout),
	}
}
