package device

import (
	"errors"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
)

// Device errors.
var (
	// ErrInitialization is returned when no local transport can be set up.
	ErrInitialization = session.ErrInitialization

	// ErrInvalidArgument is returned for bad signal declarations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateName is returned when a direction+name pair already exists.
	ErrDuplicateName = errors.New("duplicate signal name")

	// ErrNotOwner is returned when removing a signal of another device.
	ErrNotOwner = errors.New("signal not owned by device")

	// ErrQueueAlreadyOpen is returned by StartQueue while a queue is open.
	ErrQueueAlreadyOpen = errors.New("update queue already open")

	// ErrNoQueueOpen is returned by SendQueue without an open queue.
	ErrNoQueueOpen = errors.New("no update queue open")

	// ErrTypeMismatch is returned when a value does not fit a signal.
	ErrTypeMismatch = model.ErrTypeMismatch

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("device closed")

	// ErrSignalRemoved is returned by operations on a removed signal.
	ErrSignalRemoved = errors.New("signal removed")
)
