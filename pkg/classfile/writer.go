package classfile

import "encoding/binary"

// writer accumulates a class file's bytes in big-endian order, the same
// manual append-and-advance style pkg/codebuilder uses for method bodies.
type writer struct {
	buf []byte
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) u1(v byte) {
	w.buf = append(w.buf, v)
}

func (w *writer) u2(v int) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u4(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) u8(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) raw(v []byte) {
	w.buf = append(w.buf, v...)
}

func (w *writer) bytes() []byte { return w.buf }
