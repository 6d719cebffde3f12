package browser

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

func pageTarget() proto.TargetCreateTarget {
	return proto.TargetCreateTarget{}
}

// rodPage adapts a rod page to the engine-neutral Page interface
type rodPage struct {
	page       *rod.Page
	navTimeout time.Duration
	logger     *logrus.Logger
	rng        *rand.Rand
}

func (p *rodPage) Navigate(url string) error {
	if err := p.page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	// WaitLoad can hang on pages that never fire the load event, bound it
	done := make(chan error, 1)
	go func() {
		done <- p.page.WaitLoad()
	}()

	select {
	case err := <-done:
		if err != nil {
			p.logger.WithError(err).Warn("Page load wait failed, proceeding anyway")
		}
	case <-time.After(p.navTimeout):
		p.logger.WithField("url", url).Warn("Page load timeout, proceeding anyway")
	}

	return nil
}

func (p *rodPage) URL() string {
	defer recoverPanic(p.logger)

	info, err := p.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Title() string {
	defer recoverPanic(p.logger)

	info, err := p.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.Title
}

func (p *rodPage) HasText(text string) bool {
	body, err := p.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return false
	}
	return strings.Contains(body, text)
}

func (p *rodPage) Eval(js string) (string, error) {
	defer recoverPanic(p.logger)

	result, err := p.page.Eval(js)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate script: %w", err)
	}
	return result.Value.Str(), nil
}

func (p *rodPage) Element(selector string) (Element, bool) {
	defer recoverPanic(p.logger)

	has, el, err := p.page.Has(selector)
	if err != nil || !has || el == nil {
		return nil, false
	}
	return &rodElement{el: el, rng: p.rng}, true
}

// Click dispatches a raw pointer press-and-release at page coordinates. Raw
// CDP input events are used instead of element clicks because anti-bot
// widgets discount synthetic DOM events.
func (p *rodPage) Click(x, y float64) error {
	move := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseMoved,
		X:    x,
		Y:    y,
	}
	if err := move.Call(p.page); err != nil {
		return fmt.Errorf("failed to move pointer: %w", err)
	}

	time.Sleep(time.Duration(50+p.rng.Intn(100)) * time.Millisecond)

	press := proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMousePressed,
		X:          x,
		Y:          y,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}
	if err := press.Call(p.page); err != nil {
		return fmt.Errorf("failed to press pointer: %w", err)
	}

	time.Sleep(time.Duration(30+p.rng.Intn(90)) * time.Millisecond)

	release := proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMouseReleased,
		X:          x,
		Y:          y,
		Button:     proto.InputMouseButtonLeft,
		ClickCount: 1,
	}
	if err := release.Call(p.page); err != nil {
		return fmt.Errorf("failed to release pointer: %w", err)
	}

	return nil
}

func (p *rodPage) Cookies() ([]Cookie, error) {
	rodCookies, err := p.page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(rodCookies))
	for _, c := range rodCookies {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

func (p *rodPage) SetCookies(cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}

	if err := p.page.SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// rodElement adapts a rod element to the Element interface
type rodElement struct {
	el  *rod.Element
	rng *rand.Rand
}

// Input focuses the element and types the text character by character with
// variable delays, the way a person would
func (e *rodElement) Input(text string) error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to focus element: %w", err)
	}

	time.Sleep(time.Duration(100+e.rng.Intn(200)) * time.Millisecond)

	for i, char := range text {
		if err := e.el.Input(string(char)); err != nil {
			return fmt.Errorf("failed to input text: %w", err)
		}

		time.Sleep(time.Duration(50+e.rng.Intn(100)) * time.Millisecond)

		// Occasional longer pause, as if thinking
		if i > 0 && i%5 == 0 && e.rng.Float64() < 0.3 {
			time.Sleep(time.Duration(200+e.rng.Intn(300)) * time.Millisecond)
		}
	}

	return nil
}

func (e *rodElement) Click() error {
	time.Sleep(time.Duration(200+e.rng.Intn(500)) * time.Millisecond)

	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click element: %w", err)
	}
	return nil
}

func (e *rodElement) Box() (Rect, error) {
	shape, err := e.el.Shape()
	if err != nil {
		return Rect{}, fmt.Errorf("failed to get element shape: %w", err)
	}

	box := shape.Box()
	if box == nil {
		return Rect{}, fmt.Errorf("element has no visible box")
	}

	return Rect{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}, nil
}

// recoverPanic swallows panics from the rod library during page inspection
func recoverPanic(logger *logrus.Logger) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).Debug("Recovered from browser driver panic")
	}
}
