// pkg/core/errors.go
package core

import "errors"

// User-facing failures. None of them are fatal; the requested action simply does not apply.
var (
	ErrInvalidOwner            = errors.New("owner entity is not valid")
	ErrNotFound                = errors.New("not found")
	ErrIncompatibleCamera      = errors.New("camera side is not compatible with screen")
	ErrNotEligible             = errors.New("entity is not eligible for helmet cam")
	ErrTransientNetworkFailure = errors.New("replication round-trip timed out")
)

var (
	ErrScreenOff      = errors.New("screen is powered off")
	ErrRegistryClosed = errors.New("registry is no longer accepting registrations")
	ErrNotReady       = errors.New("cctv system is not ready")
	ErrStale          = errors.New("state changed before confirmation")
	ErrUnknownVehicle = errors.New("no turret definition for vehicle class")
	ErrDisabled       = errors.New("cctv system is disabled")
)
