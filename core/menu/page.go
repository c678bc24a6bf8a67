package menu

import (
	"context"

	"github.com/m3rciful/menus/core/pages"
)

// Callback is user-supplied transition code invoked with the owning menu at
// the corresponding lifecycle event.
type Callback func(ctx context.Context, m *Menu) error

// Page is one display state in a menu. Buttons and callbacks must be attached
// before the page is added to a menu; the index is assigned at attach time
// and never changes afterwards.
//
// A page without an OnNext callback is implicitly terminal: landing on it
// ends the menu after the render.
type Page struct {
	index   int
	name    string
	content *pages.Content
	buttons []string

	onNext    Callback
	onFail    Callback
	onCancel  Callback
	onTimeout Callback
}

// NewPage builds a page around the given display payload.
func NewPage(content *pages.Content) *Page {
	if content == nil {
		content = &pages.Content{}
	}
	return &Page{index: -1, content: content}
}

// Index returns the page's position in the owning menu, or -1 before attach.
func (p *Page) Index() int { return p.index }

// Name returns the stable identifier used by Menu.GoTo.
func (p *Page) Name() string { return p.name }

// Content returns the display payload.
func (p *Page) Content() *pages.Content { return p.content }

// Buttons returns the page's button symbols.
func (p *Page) Buttons() []string { return p.buttons }

// SetName tags the page with a stable identifier for GoTo lookups.
func (p *Page) SetName(name string) *Page {
	p.name = name
	return p
}

// SetButtons sets the button symbols shown while this page is current.
func (p *Page) SetButtons(symbols ...string) *Page {
	p.buttons = append([]string(nil), symbols...)
	return p
}

// OnNext installs the transition callback fired after input is collected.
func (p *Page) OnNext(fn Callback) *Page {
	p.onNext = fn
	return p
}

// OnFail installs the callback fired when input repeatedly fails to match.
func (p *Page) OnFail(fn Callback) *Page {
	p.onFail = fn
	return p
}

// OnCancel installs the callback that fully owns the cancel path for this
// page, replacing the default cancelled-page rendering.
func (p *Page) OnCancel(fn Callback) *Page {
	p.onCancel = fn
	return p
}

// OnTimeout installs the callback that fully owns the timeout path for this
// page, replacing the default timeout rendering.
func (p *Page) OnTimeout(fn Callback) *Page {
	p.onTimeout = fn
	return p
}
