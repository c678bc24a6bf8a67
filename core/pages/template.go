package pages

// Template supplies menu-wide display defaults. Apply fills only the
// attributes a page left unset, so explicit page values always win.
type Template struct {
	Title       string
	Description string
	Color       string
	Footer      string
	Fields      []Field
}

// Apply merges template defaults into a copy of the given content.
func (t *Template) Apply(c *Content) *Content {
	out := c.Clone()
	if out == nil {
		out = &Content{}
	}
	if t == nil {
		return out
	}
	if out.Title == "" {
		out.Title = t.Title
	}
	if out.Description == "" {
		out.Description = t.Description
	}
	if out.Color == "" {
		out.Color = t.Color
	}
	if out.Footer == "" {
		out.Footer = t.Footer
	}
	if len(out.Fields) == 0 && len(t.Fields) > 0 {
		out.Fields = append([]Field(nil), t.Fields...)
	}
	return out
}
