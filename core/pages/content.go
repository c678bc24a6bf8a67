package pages

import "strings"

// Field is a single name/value block rendered below the description.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Content is the display payload of a single menu page. The menu engine
// treats it as opaque; transports decide how to render it (Telegram flattens
// it into a formatted message, other transports may map it to native embeds).
type Content struct {
	Title       string
	Description string
	Color       string
	Fields      []Field
	Footer      string
}

// NewContent builds a Content with a title and description.
func NewContent(title, description string) *Content {
	return &Content{Title: title, Description: description}
}

// AddField appends a field and returns the content for chaining.
func (c *Content) AddField(name, value string) *Content {
	c.Fields = append(c.Fields, Field{Name: name, Value: value})
	return c
}

// SetFooter replaces the footer text and returns the content for chaining.
func (c *Content) SetFooter(text string) *Content {
	c.Footer = text
	return c
}

// Clone returns a deep copy so callers can derive per-render variants
// without mutating the attached page.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields = append([]Field(nil), c.Fields...)
	return &out
}

// Safe returns a copy with zero-width placeholders substituted for empty
// required attributes, so transports never reject the payload outright.
func (c *Content) Safe() *Content {
	out := c.Clone()
	if out == nil {
		return &Content{Title: placeholder, Description: placeholder}
	}
	if strings.TrimSpace(out.Title) == "" {
		out.Title = placeholder
	}
	if strings.TrimSpace(out.Description) == "" {
		out.Description = placeholder
	}
	return out
}

// placeholder is a zero-width space; platforms require non-empty strings
// for some attributes but we do not want visible filler.
const placeholder = "​"
