package packet

import (
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// ByteArray is a byte buffer that JSON-encodes as an explicit numeric array
// rather than base64, keeping queued frames readable and byte-for-byte
// recoverable by consumers that do not share Go's []byte convention.
type ByteArray []byte

func (b ByteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	out = append(out, ']')
	return out, nil
}

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var raw []uint16
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(ErrMalformedPacket, "byte array payload")
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		if v > 0xff {
			return eris.Wrap(ErrMalformedPacket, "byte array value out of range")
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
