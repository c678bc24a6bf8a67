package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsDeep(t *testing.T) {
	orig := NewContent("title", "desc").
		AddField("a", "1").
		SetFooter("foot")

	clone := orig.Clone()
	clone.Title = "changed"
	clone.Fields[0].Value = "2"
	clone.AddField("b", "3")

	assert.Equal(t, "title", orig.Title)
	assert.Equal(t, "1", orig.Fields[0].Value)
	assert.Len(t, orig.Fields, 1)
}

func TestCloneNil(t *testing.T) {
	var c *Content
	assert.Nil(t, c.Clone())
}

func TestSafeFillsEmptyAttributes(t *testing.T) {
	safe := (&Content{Title: "  ", Description: ""}).Safe()
	assert.NotEmpty(t, safe.Title)
	assert.NotEmpty(t, safe.Description)

	// Set attributes pass through untouched.
	safe = NewContent("t", "d").Safe()
	assert.Equal(t, "t", safe.Title)
	assert.Equal(t, "d", safe.Description)
}

func TestSafeDoesNotMutateOriginal(t *testing.T) {
	orig := &Content{}
	_ = orig.Safe()
	assert.Empty(t, orig.Title)
	assert.Empty(t, orig.Description)
}

func TestTemplateAppliesOnlyUnset(t *testing.T) {
	tpl := &Template{
		Title:  "default title",
		Color:  "blue",
		Footer: "default footer",
		Fields: []Field{{Name: "f", Value: "v"}},
	}

	out := tpl.Apply(&Content{Title: "mine", Footer: "own"})
	assert.Equal(t, "mine", out.Title)
	assert.Equal(t, "own", out.Footer)
	assert.Equal(t, "blue", out.Color)
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "f", out.Fields[0].Name)
}

func TestTemplateFieldsDoNotOverrideExisting(t *testing.T) {
	tpl := &Template{Fields: []Field{{Name: "tpl", Value: "v"}}}
	out := tpl.Apply(NewContent("t", "d").AddField("page", "w"))
	require.Len(t, out.Fields, 1)
	assert.Equal(t, "page", out.Fields[0].Name)
}

func TestTemplateNilReceiverAndContent(t *testing.T) {
	var tpl *Template
	out := tpl.Apply(NewContent("t", "d"))
	assert.Equal(t, "t", out.Title)

	tpl = &Template{Title: "x"}
	out = tpl.Apply(nil)
	assert.Equal(t, "x", out.Title)
}
