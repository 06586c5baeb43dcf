// Package ports reserves local TCP ports for the dev server.
//
// Reservation works by probe-binding: bind the port (or port 0 for an
// ephemeral one), read the assigned port back, and release the socket so
// the dev server can bind it. The port can in principle be taken by
// another process in the gap; that race is accepted for a development
// tool, and the health probe catches the fallout.
package ports

import (
	"fmt"
	"net"
)

// maxAttempts bounds how many times Reserve probes for a free port.
const maxAttempts = 5

// ReservationError indicates no local port could be reserved. This is
// fatal for bridge startup.
type ReservationError struct {
	// Preferred is the requested port, 0 if any port was acceptable.
	Preferred int

	// Attempts is how many probes were made.
	Attempts int

	// Err is the last bind error.
	Err error
}

func (e *ReservationError) Error() string {
	if e.Preferred > 0 {
		return fmt.Sprintf("failed to reserve port %d after %d attempts: %v", e.Preferred, e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed to reserve a free port after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ReservationError) Unwrap() error {
	return e.Err
}

// IsAvailable reports whether a local port can currently be bound.
//
// Parameters:
//   - port: The port to check
//
// Returns:
//   - bool: True if the port could be bound
func IsAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// Reserve finds a free local TCP port.
//
// If preferred is non-zero and free it is returned; a busy preferred port
// falls back to an ephemeral one rather than failing, since dev servers
// only need some port and the proxy relays the actual one.
//
// Parameters:
//   - preferred: The preferred port, 0 for any
//
// Returns:
//   - int: The reserved port
//   - error: *ReservationError if no port could be reserved
func Reserve(preferred int) (int, error) {
	if preferred > 0 && IsAvailable(preferred) {
		return preferred, nil
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			lastErr = err
			continue
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()
		return port, nil
	}

	return 0, &ReservationError{Preferred: preferred, Attempts: maxAttempts, Err: lastErr}
}

// ReservePair reserves two distinct local ports, one for the dev server's
// main endpoint and one for a separate HMR endpoint.
//
// Parameters:
//   - preferredMain: Preferred main port, 0 for any
//   - preferredHMR: Preferred HMR port, 0 for any
//
// Returns:
//   - int: The main port
//   - int: The HMR port
//   - error: *ReservationError if either reservation failed
func ReservePair(preferredMain, preferredHMR int) (int, int, error) {
	main, err := Reserve(preferredMain)
	if err != nil {
		return 0, 0, err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		hmr, err := Reserve(preferredHMR)
		if err != nil {
			return 0, 0, err
		}
		if hmr != main {
			return main, hmr, nil
		}
		// Ephemeral probing handed back the same port; try again.
		preferredHMR = 0
	}

	return 0, 0, &ReservationError{Preferred: preferredHMR, Attempts: maxAttempts,
		Err: fmt.Errorf("could not find an HMR port distinct from %d", main)}
}
