package pkg

import "crypto/rand"

const (
	roomCodeLength  = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRoomCode - generates a short shareable room code, 6 uppercase
// alphanumeric characters drawn uniformly from the charset. Uniqueness is
// the caller's concern.
func GenerateRoomCode() string {
	// largest multiple of len(roomCodeCharset) that fits in a byte; values
	// above it are rejected to avoid modulo bias
	const limit = byte(256 - 256%len(roomCodeCharset))

	code := make([]byte, 0, roomCodeLength)
	b := make([]byte, roomCodeLength)

	for len(code) < roomCodeLength {
		if _, err := rand.Read(b); err != nil {
			panic(err)
		}

		for _, v := range b {
			if v >= limit || len(code) == roomCodeLength {
				continue
			}

			code = append(code, roomCodeCharset[int(v)%len(roomCodeCharset)])
		}
	}

	return string(code)
}
