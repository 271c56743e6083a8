//go:build darwin || windows

package ble

import "tinygo.org/x/bluetooth"

// writeAcked issues an acknowledged characteristic write.
func writeAcked(ch bluetooth.DeviceCharacteristic, data []byte) error {
	_, err := ch.Write(data)
	return err
}
