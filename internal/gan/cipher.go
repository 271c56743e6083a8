package gan

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Cipher errors.
var (
	ErrInvalidIdentity = errors.New("gan: invalid device identity")
	ErrShortFrame      = errors.New("gan: frame shorter than one cipher block")
	ErrInvalidLength   = errors.New("gan: command payload must be 16 or 32 bytes")
)

// Base key/IV constants from the GAN Gen3 firmware. The first six bytes of
// each are salted with the device address; the rest pass through unchanged.
var (
	baseKey = [16]byte{
		0x01, 0x02, 0x42, 0x28, 0x31, 0x91, 0x16, 0x07,
		0x20, 0x05, 0x18, 0x54, 0x42, 0x11, 0x12, 0x53,
	}
	baseIV = [16]byte{
		0x11, 0x03, 0x32, 0x28, 0x21, 0x01, 0x76, 0x27,
		0x20, 0x95, 0x78, 0x14, 0x32, 0x12, 0x02, 0x43,
	}
)

// SessionKeys holds the AES key and IV for one connection. Derived once per
// connection from the peripheral address and discarded on disconnect.
type SessionKeys struct {
	Key [16]byte
	IV  [16]byte
}

// DeriveKeys turns a device identity into session keys. The identity is
// either a 6-byte hardware address ("CF:AA:79:C9:96:9C", separators
// optional) or a 32-hex-char platform identifier, of which the first six
// bytes are used. Derivation is deterministic: the address bytes, reversed
// into wire order, are added to the first six bytes of the base key and IV
// modulo 0xFF.
func DeriveKeys(identity string) (SessionKeys, error) {
	clean := strings.NewReplacer(":", "", "-", "").Replace(identity)
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return SessionKeys{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}

	var salt [6]byte
	switch len(raw) {
	case 6:
		copy(salt[:], raw)
	case 16:
		copy(salt[:], raw[:6])
	default:
		return SessionKeys{}, fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	for i, j := 0, 5; i < j; i, j = i+1, j-1 {
		salt[i], salt[j] = salt[j], salt[i]
	}

	ks := SessionKeys{Key: baseKey, IV: baseIV}
	for i := 0; i < 6; i++ {
		ks.Key[i] = byte((uint16(baseKey[i]) + uint16(salt[i])) % 0xFF)
		ks.IV[i] = byte((uint16(baseIV[i]) + uint16(salt[i])) % 0xFF)
	}
	return ks, nil
}

// blockAt runs a single-block CBC operation over buf[off:off+16] in place,
// re-initialized with the session IV. The firmware never chains blocks; every
// window restarts from the IV.
func blockAt(buf []byte, off int, keys SessionKeys, encrypt bool) {
	block, err := aes.NewCipher(keys.Key[:])
	if err != nil {
		// Key length is fixed at 16 bytes, so this cannot happen.
		panic(err)
	}
	window := buf[off : off+aes.BlockSize]
	if encrypt {
		cipher.NewCBCEncrypter(block, keys.IV[:]).CryptBlocks(window, window)
	} else {
		cipher.NewCBCDecrypter(block, keys.IV[:]).CryptBlocks(window, window)
	}
}

// decryptInPlace decrypts the two cipher windows of buf sequentially. When
// trailingFirst is true the trailing window [n-16:n] is decrypted before the
// leading window [0:16], which is the order the firmware encrypts for; the
// windows overlap for frames under 32 bytes, so the order is observable.
func decryptInPlace(buf []byte, keys SessionKeys, trailingFirst bool) {
	n := len(buf)
	if n == aes.BlockSize {
		blockAt(buf, 0, keys, false)
		return
	}
	if trailingFirst {
		blockAt(buf, n-aes.BlockSize, keys, false)
		blockAt(buf, 0, keys, false)
	} else {
		blockAt(buf, 0, keys, false)
		blockAt(buf, n-aes.BlockSize, keys, false)
	}
}

// Decrypt decrypts one notification frame. Frames are one 16-byte CBC block,
// or a leading and a trailing 16-byte window each freshly keyed with the
// session IV. The window decrypt order is firmware-dependent, so both orders
// are tried and the one whose first plaintext byte is the 0x55 marker wins;
// if neither matches, the trailing-first result is returned so callers can
// still inspect it.
func Decrypt(ciphertext []byte, keys SessionKeys) ([]byte, error) {
	n := len(ciphertext)
	if n < aes.BlockSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, n)
	}

	primary := make([]byte, n)
	copy(primary, ciphertext)
	decryptInPlace(primary, keys, true)
	if n == aes.BlockSize || primary[0] == Marker {
		return primary, nil
	}

	alternate := make([]byte, n)
	copy(alternate, ciphertext)
	decryptInPlace(alternate, keys, false)
	if alternate[0] == Marker {
		return alternate, nil
	}
	return primary, nil
}

// Encrypt encrypts a command payload: a single block for 16 bytes, or the
// leading then trailing window for 32 bytes, each with the session IV.
func Encrypt(plaintext []byte, keys SessionKeys) ([]byte, error) {
	n := len(plaintext)
	if n != 16 && n != 32 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, n)
	}
	out := make([]byte, n)
	copy(out, plaintext)
	encryptInPlace(out, keys)
	return out, nil
}

// encryptInPlace is the inverse of trailing-first decryption for any frame
// of at least one block: leading window first, then the trailing window over
// the partially encrypted buffer.
func encryptInPlace(buf []byte, keys SessionKeys) {
	n := len(buf)
	blockAt(buf, 0, keys, true)
	if n > aes.BlockSize {
		blockAt(buf, n-aes.BlockSize, keys, true)
	}
}
