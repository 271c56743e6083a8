package ble

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Adapter errors.
var (
	ErrUnknownAddress = errors.New("ble: address not seen during scan")
	ErrUnknownHandle  = errors.New("ble: unknown attribute handle")
)

// handleStride spaces the synthetic handle ranges assigned to discovered
// services. The host stack does not expose real ATT handles, so each service
// gets a disjoint range and characteristics are numbered inside it.
const handleStride = 100

// Adapter implements Transport over the host Bluetooth stack. The stack's
// API is blocking, so every discovery operation runs on its own goroutine
// and reports back through the event handler; the opBusy guard makes
// overlapping operations fail with ErrBusy instead of racing.
type Adapter struct {
	adapter *bluetooth.Adapter

	mu       sync.Mutex
	handler  func(Event)
	opBusy   bool
	scanStop chan struct{}
	addrs    map[string]bluetooth.Address
	device   bluetooth.Device
	haveDev  bool
	services []bluetooth.DeviceService
	chars    map[uint16]bluetooth.DeviceCharacteristic
}

// NewAdapter enables the default Bluetooth adapter and wraps it.
func NewAdapter() (*Adapter, error) {
	hw := bluetooth.DefaultAdapter
	if err := hw.Enable(); err != nil {
		return nil, fmt.Errorf("ble: enable adapter: %w", err)
	}
	a := &Adapter{
		adapter: hw,
		addrs:   make(map[string]bluetooth.Address),
		chars:   make(map[uint16]bluetooth.DeviceCharacteristic),
	}
	hw.SetConnectHandler(func(_ bluetooth.Device, connected bool) {
		if !connected {
			a.post(Event{Type: EventDisconnected})
		}
	})
	return a, nil
}

func (a *Adapter) SetEventHandler(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handler = fn
}

func (a *Adapter) post(e Event) {
	a.mu.Lock()
	fn := a.handler
	a.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

// begin claims the single-operation slot.
func (a *Adapter) begin() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opBusy {
		return ErrBusy
	}
	a.opBusy = true
	return nil
}

func (a *Adapter) end() {
	a.mu.Lock()
	a.opBusy = false
	a.mu.Unlock()
}

// StartScan begins scanning. Results are posted as they arrive; when the
// duration elapses (or StopScan is called) a scan-done event follows.
func (a *Adapter) StartScan(params ScanParams) error {
	if err := a.begin(); err != nil {
		return err
	}

	stop := make(chan struct{})
	a.mu.Lock()
	a.scanStop = stop
	a.mu.Unlock()

	if params.Duration > 0 {
		timer := time.AfterFunc(params.Duration, func() { _ = a.adapter.StopScan() })
		go func() {
			<-stop
			timer.Stop()
		}()
	}

	go func() {
		// A scan error surfaces the same as an elapsed window; the session
		// restarts the scan on a later tick.
		_ = a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			addr := result.Address.String()
			a.mu.Lock()
			a.addrs[addr] = result.Address
			a.mu.Unlock()
			a.post(Event{Type: EventScanResult, Addr: addr, RSSI: result.RSSI})
		})
		close(stop)
		a.end()
		a.post(Event{Type: EventScanDone})
	}()
	return nil
}

func (a *Adapter) StopScan() error {
	return a.adapter.StopScan()
}

// Connect connects to a device previously seen during a scan. The stack
// needs the parsed address, not its string form, so unseen addresses fail.
func (a *Adapter) Connect(addr string) error {
	a.mu.Lock()
	target, ok := a.addrs[addr]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	if err := a.begin(); err != nil {
		return err
	}

	go func() {
		defer a.end()
		device, err := a.adapter.Connect(target, bluetooth.ConnectionParams{})
		if err != nil {
			a.post(Event{Type: EventConnectFailed})
			return
		}
		a.mu.Lock()
		a.device = device
		a.haveDev = true
		a.mu.Unlock()
		a.post(Event{Type: EventConnected, Conn: 1})
	}()
	return nil
}

func (a *Adapter) Disconnect(ConnHandle) error {
	a.mu.Lock()
	device, ok := a.device, a.haveDev
	a.haveDev = false
	a.services = nil
	a.chars = make(map[uint16]bluetooth.DeviceCharacteristic)
	a.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	return device.Disconnect()
}

// DiscoverServices enumerates all services, assigning each a synthetic
// handle range.
func (a *Adapter) DiscoverServices(ConnHandle) error {
	a.mu.Lock()
	device, ok := a.device, a.haveDev
	a.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}
	if err := a.begin(); err != nil {
		return err
	}

	go func() {
		defer a.end()
		services, err := device.DiscoverServices(nil)
		if err != nil {
			a.post(Event{Type: EventServiceDone})
			return
		}
		a.mu.Lock()
		a.services = services
		a.mu.Unlock()
		for i := range services {
			start := uint16(i*handleStride + 1)
			a.post(Event{
				Type:  EventServiceResult,
				Start: start,
				End:   start + handleStride - 1,
				UUID:  services[i].UUID().String(),
			})
		}
		a.post(Event{Type: EventServiceDone})
	}()
	return nil
}

// DiscoverCharacteristics enumerates the characteristics of the service
// owning the given handle range. The stack does not report characteristic
// properties, so notify and write are assumed; enabling notifications on a
// characteristic without them fails later instead.
func (a *Adapter) DiscoverCharacteristics(_ ConnHandle, start, _ uint16) error {
	a.mu.Lock()
	idx := int(start-1) / handleStride
	if idx < 0 || idx >= len(a.services) {
		a.mu.Unlock()
		return ErrUnknownHandle
	}
	svc := a.services[idx]
	a.mu.Unlock()
	if err := a.begin(); err != nil {
		return err
	}

	go func() {
		defer a.end()
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			a.post(Event{Type: EventCharacteristicDone})
			return
		}
		for i := range chars {
			handle := start + uint16(i) + 1
			a.mu.Lock()
			a.chars[handle] = chars[i]
			a.mu.Unlock()
			a.post(Event{
				Type:        EventCharacteristicResult,
				ValueHandle: handle,
				UUID:        chars[i].UUID().String(),
				Properties:  PropertyNotify | PropertyWrite,
			})
		}
		a.post(Event{Type: EventCharacteristicDone})
	}()
	return nil
}

// EnableNotifications subscribes to a characteristic. The stack writes the
// configuration descriptor internally; a confirmation event is posted when
// the subscription call returns.
func (a *Adapter) EnableNotifications(_ ConnHandle, valueHandle uint16) error {
	a.mu.Lock()
	ch, ok := a.chars[valueHandle]
	a.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	if err := a.begin(); err != nil {
		return err
	}

	go func() {
		defer a.end()
		err := ch.EnableNotifications(func(buf []byte) {
			data := make([]byte, len(buf))
			copy(data, buf)
			a.post(Event{Type: EventNotify, ValueHandle: valueHandle, Data: data})
		})
		if err != nil {
			return
		}
		a.post(Event{Type: EventNotificationEnabled, ValueHandle: valueHandle})
	}()
	return nil
}

// WriteCharacteristic writes synchronously. Unacknowledged writes fall back
// to acknowledged ones on stacks that reject write-without-response.
func (a *Adapter) WriteCharacteristic(_ ConnHandle, valueHandle uint16, data []byte, mode WriteMode) error {
	a.mu.Lock()
	ch, ok := a.chars[valueHandle]
	a.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}

	if mode == WriteUnacknowledged {
		if _, err := ch.WriteWithoutResponse(data); err == nil {
			return nil
		}
	}
	return writeAcked(ch, data)
}
