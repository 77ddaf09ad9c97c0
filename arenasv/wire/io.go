package wire

import (
	"io"

	"github.com/pkg/errors"
)

// ErrShortTransfer is returned when a transport call moved zero bytes
// before a whole message was transferred.
var ErrShortTransfer = errors.New("short transfer")

func readFull(r io.Reader, buf []byte) error {
	sum := 0
	for sum < len(buf) {
		n, err := r.Read(buf[sum:])
		sum += n
		if sum == len(buf) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %d/%d bytes", sum, len(buf))
		}
		if n <= 0 {
			return errors.Wrapf(ErrShortTransfer, "read %d/%d bytes", sum, len(buf))
		}
	}
	return nil
}

func writeFull(w io.Writer, buf []byte) error {
	sum := 0
	for sum < len(buf) {
		n, err := w.Write(buf[sum:])
		if err != nil {
			return errors.Wrapf(err, "write %d/%d bytes", sum, len(buf))
		}
		if n <= 0 {
			return errors.Wrapf(ErrShortTransfer, "write %d/%d bytes", sum, len(buf))
		}
		sum += n
	}
	return nil
}

func ReadClientMessage(r io.Reader) (*ClientMessage, error) {
	buf := make([]byte, ClientMessageSize)
	if err := readFull(r, buf); err != nil {
		return nil, err
	}
	msg := new(ClientMessage)
	if err := msg.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return msg, nil
}

func WriteClientMessage(w io.Writer, msg *ClientMessage) error {
	buf, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	return writeFull(w, buf)
}

func ReadServerMessage(r io.Reader) (*ServerMessage, error) {
	buf := make([]byte, ServerMessageSize)
	if err := readFull(r, buf); err != nil {
		return nil, err
	}
	msg := new(ServerMessage)
	if err := msg.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	return msg, nil
}

func WriteServerMessage(w io.Writer, msg *ServerMessage) error {
	buf, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	return writeFull(w, buf)
}

// WriteFull writes an already encoded message, retrying partial writes.
func WriteFull(w io.Writer, buf []byte) error {
	return writeFull(w, buf)
}
