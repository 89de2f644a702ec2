package acceptor

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Client↔server wire format: a PacketHeaderSize-byte little-endian
// total length (header included), then the plaintext payload. The
// first payload byte is the opcode.
const (
	PacketHeaderSize = 2
	MaxPacketSize    = 1024

	OpcodeLogin        byte = 0x0D
	OpcodeLoginOK      byte = 0x00
	OpcodeLoginRefused byte = 0xFF
)

// Login refusal reasons.
const (
	RefuseOldVersion    byte = 0x02
	RefuseWrongPassword byte = 0x03
	RefuseServerFull    byte = 0x04
	RefuseInternal      byte = 0x05
)

// WritePacket frames and writes one payload.
// Precondition: payload lives at buf[PacketHeaderSize : PacketHeaderSize+payloadLen].
func WritePacket(w io.Writer, buf []byte, payloadLen int) error {
	if payloadLen < 0 || payloadLen > len(buf)-PacketHeaderSize {
		return fmt.Errorf("invalid payload length: %d", payloadLen)
	}

	totalSize := PacketHeaderSize + payloadLen
	if totalSize > MaxPacketSize {
		return fmt.Errorf("packet too large: %d bytes", totalSize)
	}
	binary.LittleEndian.PutUint16(buf[0:PacketHeaderSize], uint16(totalSize))

	if _, err := w.Write(buf[0:totalSize]); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}

// ReadPacket reads one packet from r into buf and returns a subslice
// of buf holding the payload.
func ReadPacket(r io.Reader, buf []byte) ([]byte, error) {
	var header [PacketHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading packet header: %w", err)
	}

	totalLen := binary.LittleEndian.Uint16(header[:])
	if totalLen < PacketHeaderSize || totalLen > MaxPacketSize {
		return nil, fmt.Errorf("invalid packet length: %d", totalLen)
	}

	payloadLen := int(totalLen) - PacketHeaderSize
	if payloadLen > len(buf) {
		return nil, fmt.Errorf("packet too large: %d bytes (buffer: %d)", payloadLen, len(buf))
	}

	payload := buf[0:payloadLen]
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return payload, nil
}

// LoginRequest is the decoded OpcodeLogin payload.
type LoginRequest struct {
	ClientVersion uint16
	Login         string
	Password      string
}

// AppendLogin encodes a login request payload into buf and returns the
// payload length. buf must start at the payload offset.
func AppendLogin(buf []byte, req LoginRequest) (int, error) {
	n := 0
	buf[n] = OpcodeLogin
	n++
	binary.LittleEndian.PutUint16(buf[n:], req.ClientVersion)
	n += 2
	for _, s := range []string{req.Login, req.Password} {
		written, err := putString(buf[n:], s)
		if err != nil {
			return 0, err
		}
		n += written
	}
	return n, nil
}

// ParseLogin decodes an OpcodeLogin payload (opcode byte included).
func ParseLogin(payload []byte) (LoginRequest, error) {
	var req LoginRequest
	if len(payload) < 3 || payload[0] != OpcodeLogin {
		return req, fmt.Errorf("malformed login payload (%d bytes)", len(payload))
	}
	req.ClientVersion = binary.LittleEndian.Uint16(payload[1:3])

	rest := payload[3:]
	var err error
	if req.Login, rest, err = getString(rest); err != nil {
		return req, fmt.Errorf("reading login field: %w", err)
	}
	if req.Password, rest, err = getString(rest); err != nil {
		return req, fmt.Errorf("reading password field: %w", err)
	}
	if len(rest) != 0 {
		return req, fmt.Errorf("trailing %d bytes in login payload", len(rest))
	}
	return req, nil
}

// AppendLoginOK encodes the success response payload.
func AppendLoginOK(buf []byte) int {
	buf[0] = OpcodeLoginOK
	return 1
}

// AppendLoginRefused encodes a refusal response payload.
func AppendLoginRefused(buf []byte, reason byte) int {
	buf[0] = OpcodeLoginRefused
	buf[1] = reason
	return 2
}

func putString(buf []byte, s string) (int, error) {
	if len(s) > 0xFFFF {
		return 0, fmt.Errorf("string too long: %d bytes", len(s))
	}
	if len(buf) < 2+len(s) {
		return 0, fmt.Errorf("buffer too small for %d byte string", len(s))
	}
	binary.LittleEndian.PutUint16(buf, uint16(len(s)))
	copy(buf[2:], s)
	return 2 + len(s), nil
}

func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, fmt.Errorf("truncated string length")
	}
	n := int(binary.LittleEndian.Uint16(buf))
	if len(buf) < 2+n {
		return "", nil, fmt.Errorf("truncated string body (%d of %d bytes)", len(buf)-2, n)
	}
	return string(buf[2 : 2+n]), buf[2+n:], nil
}
