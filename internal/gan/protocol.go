// Package gan implements the GAN Gen3 smart cube wire protocol: per-device
// key derivation, the dual-window CBC frame cipher, and the bit-packed
// telemetry decoder.
package gan

// GAN Gen3 BLE service and characteristic UUIDs.
const (
	ServiceUUID     = "8653000a-43e6-47b7-9cb0-5fc21d4ae340"
	StateCharUUID   = "8653000b-43e6-47b7-9cb0-5fc21d4ae340" // Notify
	CommandCharUUID = "8653000c-43e6-47b7-9cb0-5fc21d4ae340" // Write
)

// Marker is the first byte of every correctly decrypted frame.
const Marker byte = 0x55

// Frame type selectors (second byte of a decrypted frame).
const (
	frameTypeMoveLegacy byte = 0x01
	frameTypeEvent      byte = 0x02
)

// Command opcodes. Each command is the opcode zero-padded to 16 bytes and
// encrypted before the write.
const (
	OpRequestHardware byte = 0x01
	OpRequestFacelets byte = 0x02
	OpRequestBattery  byte = 0x03
)

func command(op byte) []byte {
	cmd := make([]byte, 16)
	cmd[0] = op
	return cmd
}

// RequestFacelets builds the full-state poll command.
func RequestFacelets() []byte { return command(OpRequestFacelets) }

// RequestBattery builds the battery level request.
func RequestBattery() []byte { return command(OpRequestBattery) }

// RequestHardware builds the hardware info request.
func RequestHardware() []byte { return command(OpRequestHardware) }

// RequestReset builds the "mark cube as solved" command. The payload is a
// fixed literal from the cube firmware, not an opcode.
func RequestReset() []byte {
	return []byte{
		0x68, 0x05, 0x05, 0x39, 0x77, 0x00, 0x00, 0x01,
		0x23, 0x45, 0x67, 0x89, 0xAB, 0x00, 0x00, 0x00,
	}
}
