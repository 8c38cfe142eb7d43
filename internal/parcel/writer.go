package parcel

import "encoding/binary"

// Writer builds parcels in the layout Cursor reads. It backs the inspect
// tooling and the tests.
type Writer struct {
	buf []byte
}

// Bytes returns the encoded parcel.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteUint32 appends one word.
func (w *Writer) WriteUint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

// WriteString16 appends a length-prefixed, NUL-terminated, padded UTF-16 string.
func (w *Writer) WriteString16(s string) *Writer {
	data := encodeUTF16LE(s)
	w.WriteUint32(uint32(len(data) / 2))
	w.buf = append(w.buf, data...)
	size := String16Size(len(data) / 2)
	w.buf = append(w.buf, make([]byte, size-len(data))...)
	return w
}

// WriteInterfaceToken appends the header words for shape and the descriptor.
func (w *Writer) WriteInterfaceToken(shape Shape, descriptor string) *Writer {
	for i := 0; i < int(shape); i++ {
		w.WriteUint32(headerWord(shape, i))
	}
	return w.WriteString16(descriptor)
}

// headerWord fills the strict-mode policy, work-source uid and 'SYST' header.
func headerWord(shape Shape, i int) uint32 {
	switch i {
	case 0:
		return 0x80000006
	case 1:
		return 0xffffffff
	default:
		return 0x53595354
	}
}

// PackageQuery encodes a package manager call carrying name, followed by the
// flags and user id words the real calls append.
func PackageQuery(shape Shape, name string) []byte {
	var w Writer
	w.WriteInterfaceToken(shape, PackageManagerDescriptor).
		WriteString16(name).
		WriteUint32(0).
		WriteUint32(0)
	return w.Bytes()
}
