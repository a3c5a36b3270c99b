// Package activation detects systemd socket activation so serve mode can
// inherit its listening socket instead of binding one itself.
package activation

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// Systemd hands inherited sockets to the service starting at fd 3, after
// stdin, stdout and stderr.
const listenFdsStart = 3

// Listeners returns the listeners passed by systemd socket activation, or
// nil when the process was not socket-activated. Activation targeted at a
// different PID is ignored rather than treated as an error.
func Listeners() ([]net.Listener, error) {
	pidStr := os.Getenv("LISTEN_PID")
	if pidStr == "" {
		return nil, nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_PID %q: %w", pidStr, err)
	}
	if pid != os.Getpid() {
		return nil, nil
	}

	numFDs, err := fdCount()
	if err != nil {
		return nil, err
	}
	if numFDs < 1 {
		return nil, nil
	}

	listeners := make([]net.Listener, 0, numFDs)
	for i := 0; i < numFDs; i++ {
		fd := listenFdsStart + i
		file := os.NewFile(uintptr(fd), fmt.Sprintf("activated-socket-%d", i))
		if file == nil {
			return nil, fmt.Errorf("failed to open inherited fd %d", fd)
		}
		listener, err := net.FileListener(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to create listener from fd %d: %w", fd, err)
		}
		// the listener dups the fd, the original can go
		_ = file.Close()
		listeners = append(listeners, listener)
	}

	// keep child processes from seeing stale activation state
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")
	_ = os.Unsetenv("LISTEN_FDNAMES")

	return listeners, nil
}

func fdCount() (int, error) {
	fdsStr := os.Getenv("LISTEN_FDS")
	if fdsStr == "" {
		return 0, nil
	}
	numFDs, err := strconv.Atoi(fdsStr)
	if err != nil {
		return 0, fmt.Errorf("invalid LISTEN_FDS %q: %w", fdsStr, err)
	}
	return numFDs, nil
}
