package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/deepsearch/internal/search"
	"github.com/abelbrown/deepsearch/internal/upload"
)

// settingID identifies which value a slider controls.
type settingID int

const (
	settingFrameInterval settingID = iota
	settingVisualWeight
	settingTextWeight
	settingCount
)

// slider holds its value as an integer number of steps so repeated
// adjustment never drifts. value = ticks / perUnit.
type slider struct {
	label    string
	unit     string
	ticks    int
	min, max int
	perUnit  float64
}

func newSlider(label, unit string, v, lo, hi, step float64) slider {
	per := math.Round(1 / step)
	return slider{
		label:   label,
		unit:    unit,
		ticks:   int(math.Round(v * per)),
		min:     int(math.Round(lo * per)),
		max:     int(math.Round(hi * per)),
		perUnit: per,
	}
}

func (s slider) value() float64 { return float64(s.ticks) / s.perUnit }

// step moves by delta ticks. A move past either bound is refused.
func (s *slider) step(delta int) bool {
	next := s.ticks + delta
	if next < s.min || next > s.max {
		return false
	}
	s.ticks = next
	return true
}

func (s slider) fraction() float64 {
	if s.max == s.min {
		return 0
	}
	return float64(s.ticks-s.min) / float64(s.max-s.min)
}

// SettingsPanel contains the frame interval and query weight sliders.
type SettingsPanel struct {
	sliders [settingCount]slider
	focused settingID

	prog progress.Model
}

// NewSettingsPanel creates a panel showing the given values.
func NewSettingsPanel(frameInterval, visual, text float64) SettingsPanel {
	p := progress.New(
		progress.WithGradient("#5A56E0", "#EE6FF8"),
		progress.WithoutPercentage(),
	)

	var sl [settingCount]slider
	sl[settingFrameInterval] = newSlider("Frame interval", "s", frameInterval,
		upload.MinFrameInterval, upload.MaxFrameInterval, upload.FrameIntervalStep)
	sl[settingVisualWeight] = newSlider("Visual weight", "", visual,
		search.MinWeight, search.MaxWeight, search.WeightStep)
	sl[settingTextWeight] = newSlider("Text weight", "", text,
		search.MinWeight, search.MaxWeight, search.WeightStep)

	return SettingsPanel{sliders: sl, prog: p}
}

// FrameInterval returns the frame interval slider value in seconds.
func (p SettingsPanel) FrameInterval() float64 { return p.sliders[settingFrameInterval].value() }

// Weights returns the visual and text weight slider values.
func (p SettingsPanel) Weights() (visual, text float64) {
	return p.sliders[settingVisualWeight].value(), p.sliders[settingTextWeight].value()
}

// Update handles focus movement and adjustment. changed reports which
// setting moved, or -1.
func (p SettingsPanel) Update(msg tea.Msg) (SettingsPanel, settingID) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, -1
	}
	switch {
	case key.Matches(km, keys.Up):
		if p.focused > 0 {
			p.focused--
		}
	case key.Matches(km, keys.Down):
		if p.focused < settingCount-1 {
			p.focused++
		}
	case key.Matches(km, keys.Left):
		if p.sliders[p.focused].step(-1) {
			return p, p.focused
		}
	case key.Matches(km, keys.Right):
		if p.sliders[p.focused].step(1) {
			return p, p.focused
		}
	}
	return p, -1
}

// View renders all sliders.
func (p SettingsPanel) View(width int) string {
	var b strings.Builder
	b.WriteString(SliderActive.Render("SETTINGS"))
	b.WriteString("\n\n")

	barWidth := width - 16
	if barWidth < 10 {
		barWidth = 10
	}
	p.prog.Width = barWidth

	for i, s := range p.sliders {
		indicator := "▷"
		labelStyle := SliderLabel
		if settingID(i) == p.focused {
			indicator = "▶"
			labelStyle = SliderActive
		}
		fmt.Fprintf(&b, "%s %s\n  %s %s\n",
			indicator, labelStyle.Render(s.label), p.prog.ViewAs(s.fraction()),
			SliderDim.Render(fmt.Sprintf("%.1f%s", s.value(), s.unit)))
	}
	b.WriteString(SliderDim.Render("←/→ adjust  ↑/↓ select  esc close"))
	return SettingsFrame.Width(width).Render(b.String())
}
