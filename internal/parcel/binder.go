package parcel

import "encoding/binary"

// Binder driver constants for 64-bit binder_size_t.
const (
	// BinderWriteRead is _IOWR('b', 1, struct binder_write_read).
	BinderWriteRead uint32 = 0xc0306201
	// BCTransaction is _IOW('c', 0, struct binder_transaction_data).
	BCTransaction uint32 = 0x40406300
	// BCReply is _IOW('c', 1, struct binder_transaction_data).
	BCReply uint32 = 0x40406301
)

// Sizes of the driver structures.
const (
	WriteReadSize       = 48
	TransactionDataSize = 64
)

// WriteRead mirrors struct binder_write_read.
type WriteRead struct {
	WriteSize     uint64
	WriteConsumed uint64
	WriteBuffer   uint64
	ReadSize      uint64
	ReadConsumed  uint64
	ReadBuffer    uint64
}

// DecodeWriteRead decodes the ioctl argument block.
func DecodeWriteRead(b []byte) (WriteRead, error) {
	if len(b) < WriteReadSize {
		return WriteRead{}, ErrMalformed
	}
	le := binary.LittleEndian
	return WriteRead{
		WriteSize:     le.Uint64(b[0:]),
		WriteConsumed: le.Uint64(b[8:]),
		WriteBuffer:   le.Uint64(b[16:]),
		ReadSize:      le.Uint64(b[24:]),
		ReadConsumed:  le.Uint64(b[32:]),
		ReadBuffer:    le.Uint64(b[40:]),
	}, nil
}

// Encode is the inverse of DecodeWriteRead.
func (wr WriteRead) Encode() []byte {
	b := make([]byte, WriteReadSize)
	le := binary.LittleEndian
	le.PutUint64(b[0:], wr.WriteSize)
	le.PutUint64(b[8:], wr.WriteConsumed)
	le.PutUint64(b[16:], wr.WriteBuffer)
	le.PutUint64(b[24:], wr.ReadSize)
	le.PutUint64(b[32:], wr.ReadConsumed)
	le.PutUint64(b[40:], wr.ReadBuffer)
	return b
}

// TransactionData holds the fields of struct binder_transaction_data the
// dispatcher needs.
type TransactionData struct {
	Target      uint64
	Cookie      uint64
	Code        uint32
	Flags       uint32
	SenderPID   int32
	SenderEUID  uint32
	DataSize    uint64
	OffsetsSize uint64
	Buffer      uint64
	Offsets     uint64
}

// DecodeTransactionData decodes a binder_transaction_data record.
func DecodeTransactionData(b []byte) (TransactionData, error) {
	if len(b) < TransactionDataSize {
		return TransactionData{}, ErrMalformed
	}
	le := binary.LittleEndian
	return TransactionData{
		Target:      le.Uint64(b[0:]),
		Cookie:      le.Uint64(b[8:]),
		Code:        le.Uint32(b[16:]),
		Flags:       le.Uint32(b[20:]),
		SenderPID:   int32(le.Uint32(b[24:])),
		SenderEUID:  le.Uint32(b[28:]),
		DataSize:    le.Uint64(b[32:]),
		OffsetsSize: le.Uint64(b[40:]),
		Buffer:      le.Uint64(b[48:]),
		Offsets:     le.Uint64(b[56:]),
	}, nil
}

// Encode is the inverse of DecodeTransactionData.
func (td TransactionData) Encode() []byte {
	b := make([]byte, TransactionDataSize)
	le := binary.LittleEndian
	le.PutUint64(b[0:], td.Target)
	le.PutUint64(b[8:], td.Cookie)
	le.PutUint32(b[16:], td.Code)
	le.PutUint32(b[20:], td.Flags)
	le.PutUint32(b[24:], uint32(td.SenderPID))
	le.PutUint32(b[28:], td.SenderEUID)
	le.PutUint64(b[32:], td.DataSize)
	le.PutUint64(b[40:], td.OffsetsSize)
	le.PutUint64(b[48:], td.Buffer)
	le.PutUint64(b[56:], td.Offsets)
	return b
}

// Command is one BC_* command read from a write buffer.
type Command struct {
	Code uint32
	// Txn is set for BC_TRANSACTION and BC_REPLY.
	Txn *TransactionData
}

// NextCommand reads the command at the start of b. Only transaction commands
// carry a decoded payload; other commands are returned with a nil Txn and
// their payload left unread.
func NextCommand(b []byte) (Command, error) {
	c := NewCursor(b)
	code, err := c.ReadUint32()
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Code: code}
	if code != BCTransaction && code != BCReply {
		return cmd, nil
	}
	td, err := DecodeTransactionData(b[c.Offset():])
	if err != nil {
		return Command{}, err
	}
	cmd.Txn = &td
	return cmd, nil
}
