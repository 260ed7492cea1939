// Package permission grants access to capture device nodes.
package permission

import (
	"github.com/smazurov/uvcrtsp/internal/capture"
)

// Action identifies permission results produced by this package.
const Action = "uvcrtsp.USB_PERMISSION"

// Outcome of a permission request.
type Outcome int

// Outcomes.
const (
	Pending Outcome = iota
	Granted
	Denied
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "pending"
	}
}

// Result is delivered to the request callback.
type Result struct {
	Device  capture.Device
	Outcome Outcome
	Err     error
	Action  string
}

// Broker requests access to a device. The callback may be invoked more
// than once for one request: Pending first, then Granted or Denied.
type Broker interface {
	Request(dev capture.Device, callback func(Result))
	Cancel(dev capture.Device)
}
