// Package tray provides a system tray indicator showing the latest
// attribution and a coaching toggle.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/keyfinger/internal/engine"
)

// Tray is the system tray application.
type Tray struct {
	onToggle func(coaching bool)
	onOpen   func()
	onQuit   func()
	coaching bool
	judged   int
	correct  int
	last     string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLast     *systray.MenuItem
	menuAccuracy *systray.MenuItem
}

// New creates a Tray. coaching is the initial state of the toggle.
func New(coaching bool) *Tray {
	return &Tray{coaching: coaching}
}

// OnToggle sets the callback run when coaching is switched on or off.
func (t *Tray) OnToggle(fn func(coaching bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback run when "Open Dashboard..." is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback run when "Quit" is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit is called and must run on the
// main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("⌨")
	systray.SetTooltip("keyfinger")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(coachingTitle(t.coaching), "Toggle touch-typing coaching")
	systray.AddSeparator()
	t.menuLast = systray.AddMenuItem("Last: none", "Last attributed keystroke")
	t.menuLast.Disable()
	t.menuAccuracy = systray.AddMenuItem(accuracyTitle(0, 0), "Keystrokes typed with the expected finger")
	t.menuAccuracy.Disable()
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the web UI in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit keyfinger")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.coaching = !t.coaching
	coaching := t.coaching
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(coachingTitle(coaching))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(coaching)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// ObserveAttribution is an engine.OnAttribution observer updating the
// menu with the latest keystroke and the running accuracy.
func (t *Tray) ObserveAttribution(a *engine.Attribution) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = Describe(a)
	if a.Verdict != nil && a.Verdict.Known {
		t.judged++
		if a.Verdict.Correct {
			t.correct++
		}
	}

	if t.menuLast != nil {
		t.menuLast.SetTitle("Last: " + t.last)
	}
	if t.menuAccuracy != nil {
		t.menuAccuracy.SetTitle(accuracyTitle(t.correct, t.judged))
	}
}

// Coaching returns the current toggle state.
func (t *Tray) Coaching() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.coaching
}

// Last returns the description of the latest attribution.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Accuracy returns how many judged keystrokes used the expected finger.
func (t *Tray) Accuracy() (correct, judged int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.correct, t.judged
}

// Describe renders an attribution for the menu, e.g. "J: Right Index ✓".
func Describe(a *engine.Attribution) string {
	if !a.Match.Found {
		return a.Key + ": no hands"
	}

	s := fmt.Sprintf("%s: %s", a.Key, a.Match.Label.Name())
	if a.Verdict != nil && a.Verdict.Known {
		if a.Verdict.Correct {
			s += " ✓"
		} else {
			s += " ✗ (" + a.Verdict.Expected.Name() + ")"
		}
	}
	return s
}

func coachingTitle(on bool) string {
	if on {
		return "● Coaching"
	}
	return "○ Coaching off"
}

func accuracyTitle(correct, judged int) string {
	if judged == 0 {
		return "Accuracy: -"
	}
	return fmt.Sprintf("Accuracy: %d/%d (%.0f%%)", correct, judged, 100*float64(correct)/float64(judged))
}
