package protocol

import (
	"fmt"

	verrors "github.com/turtacn/Vigil/pkg/errors"
)

// Message is one handshake message. On the wire it is exactly one byte.
type Message uint8

const (
	MessageLogout Message = 0
	MessageAck    Message = 1
)

func (m Message) String() string {
	switch m {
	case MessageLogout:
		return "logout"
	case MessageAck:
		return "ack"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Encode returns the one-byte wire representation of m.
func (m Message) Encode() []byte {
	return []byte{byte(m)}
}

// DecodeByte maps a single wire byte to a Message.
func DecodeByte(b byte) (Message, error) {
	switch Message(b) {
	case MessageLogout, MessageAck:
		return Message(b), nil
	}
	return 0, verrors.New(verrors.ErrCodeProtocol, "Decode", fmt.Sprintf("unexpected message byte %d", b), nil)
}

// Decode interprets a full read. Anything other than exactly one valid byte
// is a protocol error.
func Decode(buf []byte) (Message, error) {
	if len(buf) != 1 {
		return 0, verrors.New(verrors.ErrCodeProtocol, "Decode", fmt.Sprintf("invalid message size %d", len(buf)), nil)
	}
	return DecodeByte(buf[0])
}

// Personal.AI order the ending
