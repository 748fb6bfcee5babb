package client

import (
	"fmt"

	"github.com/brickgen/brickgen/stream"
	"github.com/brickgen/brickgen/wire"
)

// DeviceError is a non-zero error code returned by a device.
type DeviceError struct {
	Code       wire.ErrorCode
	FunctionID uint8
}

func (e *DeviceError) Error() string {
	if e.FunctionID == 0 {
		return "device: " + e.Code.String()
	}
	return fmt.Sprintf("device: function %d: %s", e.FunctionID, e.Code)
}

// Is matches any DeviceError with the same code, and invalid parameter
// also matches stream.ErrInvalidParameter.
func (e *DeviceError) Is(target error) bool {
	if t, ok := target.(*DeviceError); ok {
		return t.Code == e.Code
	}
	return e.Code == wire.ErrorCodeInvalidParameter && target == stream.ErrInvalidParameter
}

var (
	ErrInvalidParameter     = &DeviceError{Code: wire.ErrorCodeInvalidParameter}
	ErrFunctionNotSupported = &DeviceError{Code: wire.ErrorCodeFunctionNotSupported}
	ErrUnknown              = &DeviceError{Code: wire.ErrorCodeUnknown}
)
