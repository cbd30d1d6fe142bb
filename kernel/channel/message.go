// Package channel implements paired, peered message queues with handle
// transfer and a synchronous call/reply protocol.
//
// Each endpoint owns its inbound FIFO of MessagePackets and a weak
// back-reference to its peer. Closing one endpoint permanently asserts
// SignalPeerClosed on the other; no further writes from the closed side
// are possible.
package channel

import "github.com/helixos/kernel/kernel/object"

// MessagePacket is one channel message: a byte payload, an ordered
// sequence of in-transit handles, and the transaction ID correlating a
// call with its reply (zero for plain writes).
//
// Ownership of the handles moves into the packet during the write-phase
// validate step, out to the reading process on a successful read, and
// back to the sender if the write fails.
type MessagePacket struct {
	Txid    uint32
	Data    []byte
	handles []*object.Handle
	owns    bool
}

// NewMessage creates a packet owning the given handles.
func NewMessage(txid uint32, data []byte, handles []*object.Handle) *MessagePacket {
	return &MessagePacket{
		Txid:    txid,
		Data:    data,
		handles: handles,
		owns:    len(handles) > 0,
	}
}

// NumBytes returns the payload size.
func (m *MessagePacket) NumBytes() uint32 { return uint32(len(m.Data)) }

// NumHandles returns the number of in-transit handles.
func (m *MessagePacket) NumHandles() uint32 { return uint32(len(m.handles)) }

// TakeHandles transfers handle ownership out of the packet.
func (m *MessagePacket) TakeHandles() []*object.Handle {
	if !m.owns {
		return nil
	}
	m.owns = false
	handles := m.handles
	m.handles = nil
	return handles
}

// Discard closes any handles the packet still owns. Called when a
// packet is dropped rather than delivered.
func (m *MessagePacket) Discard() {
	if !m.owns {
		return
	}
	m.owns = false
	for _, h := range m.handles {
		h.Close()
	}
	m.handles = nil
}
