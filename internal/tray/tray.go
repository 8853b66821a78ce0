// Package tray provides an optional system tray surface showing the live
// customer count, with a menu item to stop the analysis.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onOpen func()
	onQuit func()
	count  int
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuCount  *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance.
func New() *Tray {
	return &Tray{}
}

// OnOpen sets the callback for the "Open Dashboard" item. Without it the
// item is not shown.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, for example when the
// analysis finishes on its own.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Retailsight")
	systray.SetTooltip("Retailsight customer tracking")

	t.mu.Lock()
	t.menuCount = systray.AddMenuItem(countTitle(t.count), "Customers that entered so far")
	t.menuCount.Disable()
	t.menuStatus = systray.AddMenuItem("Running", "Analysis status")
	t.menuStatus.Disable()
	openFn := t.onOpen
	t.mu.Unlock()
	systray.AddSeparator()

	openCh := make(chan struct{})
	if openFn != nil {
		menuOpen := systray.AddMenuItem("Open Dashboard...", "Open the live view in a browser")
		openCh = menuOpen.ClickedCh
		systray.AddSeparator()
	}

	menuQuit := systray.AddMenuItem("Quit", "Stop the analysis and quit")

	go func() {
		for {
			select {
			case <-openCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetCount updates the customer count shown in the menu.
func (t *Tray) SetCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.count = n
	if t.menuCount != nil {
		t.menuCount.SetTitle(countTitle(n))
	}
}

// SetStatus updates the status line, e.g. "Finished".
func (t *Tray) SetStatus(status string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(status)
	}
}

// Count returns the last count set.
func (t *Tray) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

func countTitle(n int) string {
	return fmt.Sprintf("Customers: %d", n)
}
