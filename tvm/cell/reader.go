package cell

import (
	"fmt"
)

type cellBytesReader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *cellBytesReader {
	return &cellBytesReader{
		data: data,
	}
}

func (r *cellBytesReader) ReadBytes(num int) ([]byte, error) {
	if num < 0 || r.LeftLen() < num {
		return nil, fmt.Errorf("not enough data in reader, need %d, has %d", num, r.LeftLen())
	}

	ret := r.data[r.pos : r.pos+num]
	r.pos += num
	return ret, nil
}

func (r *cellBytesReader) ReadByte() (byte, error) {
	b, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt reads a big endian unsigned integer of sz bytes.
func (r *cellBytesReader) ReadInt(sz int) (int, error) {
	b, err := r.ReadBytes(sz)
	if err != nil {
		return 0, err
	}

	var n int
	for _, v := range b {
		n = n<<8 | int(v)
	}
	return n, nil
}

func (r *cellBytesReader) Offset() int {
	return r.pos
}

func (r *cellBytesReader) LeftLen() int {
	return len(r.data) - r.pos
}
