package pipeline

import "fmt"

// MsgKind is the kind of a bus message.
type MsgKind uint8

// Bus message kinds.
const (
	// MsgWriteBack carries a computed result.
	MsgWriteBack MsgKind = iota
	// MsgGetAddr carries a load or store effective address.
	MsgGetAddr
	// MsgCommitReg announces a committed register write.
	MsgCommitReg
	// MsgCommitMem releases the head store's data to memory.
	MsgCommitMem
	// MsgStoreSuccess reports that the head store has written memory.
	MsgStoreSuccess
)

func (k MsgKind) String() string {
	switch k {
	case MsgWriteBack:
		return "WriteBack"
	case MsgGetAddr:
		return "GetAddr"
	case MsgCommitReg:
		return "CommitReg"
	case MsgCommitMem:
		return "CommitMem"
	case MsgStoreSuccess:
		return "StoreSuccess"
	default:
		return fmt.Sprintf("MsgKind(%d)", uint8(k))
	}
}

// Message is a tagged bus broadcast.
type Message struct {
	Kind  MsgKind
	Tag   int // reorder-buffer index
	Value uint32
}

// Bus is the common data bus. Messages sent during one Execute are read by
// every unit during the following Flush and then discarded.
type Bus struct {
	msgs     []Message
	capacity int
}

// NewBus creates a bus holding at most capacity messages per cycle.
func NewBus(capacity int) *Bus {
	return &Bus{
		msgs:     make([]Message, 0, capacity),
		capacity: capacity,
	}
}

// Send appends a message. Exceeding the capacity is a structural fault.
func (b *Bus) Send(m Message) error {
	if len(b.msgs) >= b.capacity {
		return newFault(StructuralOverflow, "bus", nil,
			"capacity %d exceeded by %s tag %d", b.capacity, m.Kind, m.Tag)
	}

	b.msgs = append(b.msgs, m)

	return nil
}

// Messages returns the messages currently on the bus.
func (b *Bus) Messages() []Message {
	return b.msgs
}

// Len returns the number of messages on the bus.
func (b *Bus) Len() int {
	return len(b.msgs)
}

// Capacity returns the per-cycle message limit.
func (b *Bus) Capacity() int {
	return b.capacity
}

// Clear drops every message.
func (b *Bus) Clear() {
	b.msgs = b.msgs[:0]
}
