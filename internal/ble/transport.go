// Package ble holds the GATT client core: the transport boundary, the
// session state machine that brings a cube connection from scan to ready,
// and the dispatcher that serializes outgoing encrypted commands.
//
// The defining constraint is that the transport permits one outstanding
// operation at a time and delivers events from a context where issuing the
// next operation is unsafe. The session therefore only records state in its
// event handler; all follow-up operations are issued from a periodic Tick.
package ble

import (
	"errors"
	"time"
)

// Transport errors.
var (
	// ErrBusy marks an operation-already-in-progress failure. Always
	// transient: the caller re-arms the step, it never fails the session
	// and never consumes a command retry.
	ErrBusy = errors.New("ble: operation already in progress")

	ErrNotConnected = errors.New("ble: not connected")

	// ErrDiscoveryIncomplete means the required characteristics were not
	// found before discovery ran out of service ranges.
	ErrDiscoveryIncomplete = errors.New("ble: required characteristics not found")
)

// ConnHandle identifies one connection at the transport.
type ConnHandle uint16

// WriteMode selects the delivery mode for characteristic writes. The cube
// accepts both; which is more reliable varies by host stack, so it is a
// parameter rather than a constant.
type WriteMode int

const (
	WriteUnacknowledged WriteMode = iota
	WriteAcknowledged
)

// Property flags of a discovered characteristic.
type Property uint8

const (
	PropertyNotify Property = 1 << iota
	PropertyIndicate
	PropertyWrite
)

// ScanParams configures scanning. Transports that cannot honor the interval
// and window treat them as advisory.
type ScanParams struct {
	Duration time.Duration // 0 scans until stopped
	Interval time.Duration
	Window   time.Duration
	Active   bool
}

// EventType tags transport events.
type EventType int

const (
	EventScanResult EventType = iota
	EventScanDone
	EventConnected
	EventConnectFailed
	EventDisconnected
	EventServiceResult
	EventServiceDone
	EventCharacteristicResult
	EventCharacteristicDone
	EventNotificationEnabled
	EventNotify
)

// Event is one transport callback. Field use depends on Type, mirroring the
// flat tuples a BLE stack delivers.
type Event struct {
	Type EventType

	Addr string // scan results
	RSSI int16

	Conn ConnHandle

	Start, End uint16 // service range

	ValueHandle uint16 // characteristic and notification events
	Properties  Property
	UUID        string

	Data []byte // notification payload
}

// HandleRange is one discovered service's handle range.
type HandleRange struct {
	Start, End uint16
}

// Transport is the boundary to the BLE stack. Implementations deliver
// events through the handler registered with SetEventHandler; they may do so
// from arbitrary goroutines, and callers are responsible for serializing
// event handling against their tick loop.
type Transport interface {
	SetEventHandler(fn func(Event))

	StartScan(params ScanParams) error
	StopScan() error

	Connect(addr string) error
	Disconnect(conn ConnHandle) error

	DiscoverServices(conn ConnHandle) error
	DiscoverCharacteristics(conn ConnHandle, start, end uint16) error

	// EnableNotifications writes the notification-enable value to the
	// characteristic's configuration descriptor.
	EnableNotifications(conn ConnHandle, valueHandle uint16) error

	WriteCharacteristic(conn ConnHandle, valueHandle uint16, data []byte, mode WriteMode) error
}
