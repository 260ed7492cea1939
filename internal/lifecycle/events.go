package lifecycle

import (
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/permission"
	"github.com/smazurov/uvcrtsp/internal/streaming"
)

// event is one input to the state machine.
type event interface {
	device() capture.Device
}

type attached struct {
	dev capture.Device
}

type detached struct {
	dev capture.Device
}

type deviceOpened struct {
	dev   capture.Device
	first bool
}

type cameraOpened struct {
	dev capture.Device
}

type previewStarted struct {
	dev capture.Device
}

type cameraClosed struct {
	dev capture.Device
}

type deviceClosed struct {
	dev capture.Device
}

type cancelled struct {
	dev capture.Device
}

type failed struct {
	dev capture.Device
	err error
}

type permissionResult struct {
	dev    capture.Device
	result permission.Result
	req    uint64
}

type permissionTimeout struct {
	dev capture.Device
	req uint64
}

type streamEvent struct {
	dev capture.Device
	ev  streaming.StreamEvent
}

func (e attached) device() capture.Device { return e.dev }
func (e detached) device() capture.Device { return e.dev }
func (e deviceOpened) device() capture.Device { return e.dev }
func (e cameraOpened) device() capture.Device { return e.dev }
func (e previewStarted) device() capture.Device { return e.dev }
func (e cameraClosed) device() capture.Device { return e.dev }
func (e deviceClosed) device() capture.Device { return e.dev }
func (e cancelled) device() capture.Device { return e.dev }
func (e failed) device() capture.Device { return e.dev }
func (e permissionResult) device() capture.Device { return e.dev }
func (e permissionTimeout) device() capture.Device { return e.dev }
func (e streamEvent) device() capture.Device { return e.dev }
