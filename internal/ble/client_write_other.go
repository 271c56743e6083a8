//go:build !darwin && !windows

package ble

import "tinygo.org/x/bluetooth"

// The BlueZ binding exposes only write-without-response at this API level,
// so acknowledged delivery degrades to the unacknowledged write.
func writeAcked(ch bluetooth.DeviceCharacteristic, data []byte) error {
	_, err := ch.WriteWithoutResponse(data)
	return err
}
