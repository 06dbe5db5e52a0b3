package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/zhuczhuc/trame-slicer-sub000/slicer"
)

// EditRecord is one applied label field edit, suitable for audit trails and
// offline replay tooling.
type EditRecord struct {
	MutID      uint64
	Mode       Mode
	Extent     slicer.Extent
	LabelValue uint64
	Changed    int64
	UnixTime   int64
}

// MarshalMsg appends the msgpack encoding of the record to b.
func (r EditRecord) MarshalMsg(b []byte) []byte {
	b = msgp.AppendArrayHeader(b, 6)
	b = msgp.AppendUint64(b, r.MutID)
	b = msgp.AppendUint64(b, uint64(r.Mode))
	b = msgp.AppendArrayHeader(b, 6)
	for _, bound := range r.Extent {
		b = msgp.AppendInt64(b, int64(bound))
	}
	b = msgp.AppendUint64(b, r.LabelValue)
	b = msgp.AppendInt64(b, r.Changed)
	b = msgp.AppendInt64(b, r.UnixTime)
	return b
}

// UnmarshalMsg decodes a record from b, returning the remaining bytes.
func (r *EditRecord) UnmarshalMsg(b []byte) ([]byte, error) {
	sz, b, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return b, err
	}
	if sz != 6 {
		return b, fmt.Errorf("bad edit record field count %d", sz)
	}
	if r.MutID, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	var mode uint64
	if mode, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	r.Mode = Mode(mode)
	if sz, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return b, err
	}
	if sz != 6 {
		return b, fmt.Errorf("bad edit record extent length %d", sz)
	}
	for p := range r.Extent {
		var bound int64
		if bound, b, err = msgp.ReadInt64Bytes(b); err != nil {
			return b, err
		}
		r.Extent[p] = int32(bound)
	}
	if r.LabelValue, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return b, err
	}
	if r.Changed, b, err = msgp.ReadInt64Bytes(b); err != nil {
		return b, err
	}
	r.UnixTime, b, err = msgp.ReadInt64Bytes(b)
	return b, err
}

// EditLog appends length-delimited msgpack edit records to a writer.  Safe
// for concurrent appends even though the editing engine itself is
// single-goroutine, since log sinks may be shared.
type EditLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEditLog wraps a writer as an append-only edit log.
func NewEditLog(w io.Writer) *EditLog {
	return &EditLog{w: w}
}

// Append stamps the record with the current time if unset and writes it.
func (l *EditLog) Append(rec EditRecord) error {
	if rec.UnixTime == 0 {
		rec.UnixTime = time.Now().Unix()
	}
	payload := rec.MarshalMsg(nil)
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(length[:]); err != nil {
		return err
	}
	_, err := l.w.Write(payload)
	return err
}

// ReadEditRecords decodes every record from a serialized edit log.
func ReadEditRecords(r io.Reader) ([]EditRecord, error) {
	var out []EditRecord
	var length [4]byte
	for {
		if _, err := io.ReadFull(r, length[:]); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		payload := make([]byte, binary.LittleEndian.Uint32(length[:]))
		if _, err := io.ReadFull(r, payload); err != nil {
			return out, err
		}
		var rec EditRecord
		if _, err := rec.UnmarshalMsg(payload); err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
