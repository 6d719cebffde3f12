package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubElement struct {
	name string
}

func (e *stubElement) Input(text string) error { return nil }
func (e *stubElement) Click() error            { return nil }
func (e *stubElement) Box() (Rect, error)      { return Rect{}, nil }

type stubPage struct {
	elements map[string]Element
	probed   []string
}

func (p *stubPage) Navigate(url string) error      { return nil }
func (p *stubPage) URL() string                    { return "" }
func (p *stubPage) Title() string                  { return "" }
func (p *stubPage) HasText(text string) bool       { return false }
func (p *stubPage) Eval(js string) (string, error) { return "", nil }

func (p *stubPage) Element(selector string) (Element, bool) {
	p.probed = append(p.probed, selector)
	el, ok := p.elements[selector]
	return el, ok
}

func (p *stubPage) Click(x, y float64) error          { return nil }
func (p *stubPage) Cookies() ([]Cookie, error)        { return nil, nil }
func (p *stubPage) SetCookies(cookies []Cookie) error { return nil }
func (p *stubPage) Close() error                      { return nil }

func TestLocatorsFirstHonorsPriority(t *testing.T) {
	preferred := &stubElement{name: "preferred"}
	fallback := &stubElement{name: "fallback"}
	page := &stubPage{elements: map[string]Element{
		`input[name="username"]`: preferred,
		`input[type="email"]`:    fallback,
	}}

	locators := Locators{`input[name="username"]`, `input#inputEmail`, `input[type="email"]`}

	el, ok := locators.First(page)
	require.True(t, ok)
	assert.Same(t, preferred, el)
	assert.Equal(t, []string{`input[name="username"]`}, page.probed, "probing stops at the first match")
}

func TestLocatorsFirstFallsThrough(t *testing.T) {
	fallback := &stubElement{name: "fallback"}
	page := &stubPage{elements: map[string]Element{
		`input[type="email"]`: fallback,
	}}

	locators := Locators{`input[name="username"]`, `input[type="email"]`}

	el, ok := locators.First(page)
	require.True(t, ok)
	assert.Same(t, fallback, el)
}

func TestLocatorsFirstNoMatch(t *testing.T) {
	page := &stubPage{}
	locators := Locators{`input[name="username"]`}

	el, ok := locators.First(page)
	assert.False(t, ok)
	assert.Nil(t, el)
}
