// Package portprobe picks a free local TCP port for the relay so a second
// instance does not collide with one that is already running.
package portprobe

import (
	"fmt"
	"net"
	"strconv"

	"github.com/firasghr/HeyteaDIY/apperr"
)

// DefaultScanRange is how far above the start port FindAvailable looks when
// no explicit upper bound is given.
const DefaultScanRange = 100

// ErrNoPortAvailable is matched (errors.Is) by the error FindAvailable
// returns when every port in the range is taken.
var ErrNoPortAvailable = &apperr.Error{Kind: apperr.KindNoPortAvailable}

// Probe reports whether port can be bound on all interfaces right now. The
// listener is closed before returning, so the only side effect is the
// transient bind.
func Probe(port int) bool {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// FindAvailable scans start..max inclusive and returns the first free port.
// max <= 0 means start+DefaultScanRange. The scan is sequential.
func FindAvailable(start, max int) (int, error) {
	if max <= 0 {
		max = start + DefaultScanRange
	}
	for port := start; port <= max; port++ {
		if Probe(port) {
			return port, nil
		}
	}
	return 0, apperr.New(apperr.KindNoPortAvailable,
		fmt.Sprintf("unable to find open port between %d and %d", start, max))
}
