package menu

import (
	"time"

	"github.com/m3rciful/menus/core/config"
	"github.com/m3rciful/menus/core/pages"
	"github.com/m3rciful/menus/core/transport"
)

// Predicate overrides the default input-acceptance check. When set, it fully
// replaces owner/message/button-set matching.
type Predicate func(ev transport.Event, m *Menu) bool

// Options is the explicit per-menu configuration. Zero values fall back to
// the documented defaults; OptionsFrom maps a config.MenuConfig onto it.
type Options struct {
	// Timeout bounds every input wait. Defaults to 2 minutes.
	Timeout time.Duration

	// SessionTimeout is the hard ceiling on poll duration; a poll Timeout
	// above it is clamped. Defaults to 1 hour.
	SessionTimeout time.Duration

	// ButtonDelay paces consecutive button placements. Defaults to 350ms.
	ButtonDelay time.Duration

	// Destination overrides the channel the menu renders into; 0 keeps the
	// invocation channel.
	Destination int64

	// Persist keeps the output message on close instead of deleting it.
	Persist bool

	// ShowCommandMessage keeps the invoking message instead of deleting it.
	ShowCommandMessage bool

	// ReplyAsDefault sends the first render as a reply to the invocation.
	ReplyAsDefault bool

	// SkipButtons adds the first/last jump buttons to paginated menus.
	SkipButtons bool

	// Text-menu vocabularies. Empty slices use the configured defaults.
	ConfirmWords []string
	DenyWords    []string
	QuitWords    []string

	// NavButtons are the paginated navigation glyphs, ordered
	// first/previous/stop/next/last.
	NavButtons []string

	// Predicate replaces the default input-acceptance check when set.
	Predicate Predicate

	// CancelPage and TimeoutPage override the default terminal notices.
	CancelPage  *pages.Content
	TimeoutPage *pages.Content

	// Template supplies display defaults applied to every rendered page.
	Template *pages.Template
}

// OptionsFrom builds Options from normalized menu configuration.
func OptionsFrom(cfg *config.MenuConfig) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Timeout:        cfg.Timeout(),
		SessionTimeout: cfg.SessionTimeout(),
		ButtonDelay:    cfg.ButtonDelay(),
		ReplyAsDefault: cfg.ReplyAsDefault,
		ConfirmWords:   append([]string(nil), cfg.ConfirmWords...),
		DenyWords:      append([]string(nil), cfg.DenyWords...),
		QuitWords:      append([]string(nil), cfg.QuitWords...),
		NavButtons:     append([]string(nil), cfg.Buttons...),
	}
}

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = time.Hour
	}
	if o.ButtonDelay <= 0 {
		o.ButtonDelay = 350 * time.Millisecond
	}
	if len(o.ConfirmWords) == 0 {
		o.ConfirmWords = append([]string(nil), config.DefaultConfirmWords...)
	}
	if len(o.DenyWords) == 0 {
		o.DenyWords = append([]string(nil), config.DefaultDenyWords...)
	}
	if len(o.QuitWords) == 0 {
		o.QuitWords = append([]string(nil), config.DefaultQuitWords...)
	}
	if len(o.NavButtons) == 0 {
		o.NavButtons = append([]string(nil), config.DefaultButtons...)
	}
}
