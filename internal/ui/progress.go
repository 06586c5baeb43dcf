// Package ui provides the animated spinner for long-running waits.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	spinnerFrames  = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerMu      sync.Mutex
	spinnerStop    chan struct{}
	spinnerActive  bool
	spinnerMessage string
)

// StartSpinner starts an animated spinner with a message.
//
// Parameters:
//   - message: The message to display next to the spinner
func StartSpinner(message string) {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if quietMode || spinnerActive {
		return
	}

	spinnerActive = true
	spinnerMessage = message
	spinnerStop = make(chan struct{})

	go func() {
		i := 0
		for {
			select {
			case <-spinnerStop:
				return
			default:
				spinnerMu.Lock()
				msg := spinnerMessage
				spinnerMu.Unlock()

				frame := SpinnerStyle.Render(spinnerFrames[i%len(spinnerFrames)])
				clearLine()
				fmt.Printf("%s %s", frame, msg)
				i++
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
}

// UpdateSpinner replaces the spinner message while it is running.
// Used during startup waits to show elapsed time next to the message.
//
// Parameters:
//   - message: The new message to display
func UpdateSpinner(message string) {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if !spinnerActive {
		return
	}
	spinnerMessage = message
}

// StopSpinner stops the current spinner and clears its line.
func StopSpinner() {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if !spinnerActive {
		return
	}

	close(spinnerStop)
	spinnerActive = false
	time.Sleep(100 * time.Millisecond) // Allow cleanup
	fmt.Printf("\r%s\r", strings.Repeat(" ", len(spinnerMessage)+4))
	spinnerMessage = ""
}
