package pipeline

import (
	"math"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
)

// DataCache times memory accesses by address. Access returns the number of
// cycles the access at addr takes.
type DataCache interface {
	Access(addr uint32, write bool) uint64
	Reset()
}

// LoadStoreBuffer keeps loads and stores in two issue-ordered queues. A load
// may read memory only when every store queued before it has completed; a
// store writes memory only after the reorder buffer releases it.
type LoadStoreBuffer struct {
	memory *emu.Memory

	loads  *Ring[LSBEntry]
	stores *Ring[LSBEntry]

	cache DataCache

	loadLatency  uint64
	storeLatency uint64
	loadCounter  uint64
	storeCounter uint64

	// latencies of the accesses in flight
	loadCycles  uint64
	storeCycles uint64

	storeEnable bool
	storeData   uint32
}

// NewLoadStoreBuffer creates the buffer.
func NewLoadStoreBuffer(
	memory *emu.Memory,
	loadQueueSize, storeQueueSize int,
	loadLatency, storeLatency uint64,
) *LoadStoreBuffer {
	return &LoadStoreBuffer{
		memory:       memory,
		loads:        NewRing[LSBEntry](loadQueueSize),
		stores:       NewRing[LSBEntry](storeQueueSize),
		loadLatency:  loadLatency,
		storeLatency: storeLatency,
	}
}

// Loads returns the load queue.
func (b *LoadStoreBuffer) Loads() *Ring[LSBEntry] { return b.loads }

// SetDataCache makes access latencies come from cache instead of the fixed
// load and store latencies. A nil cache restores the fixed latencies.
func (b *LoadStoreBuffer) SetDataCache(cache DataCache) { b.cache = cache }

func (b *LoadStoreBuffer) accessLatency(addr uint32, write bool) uint64 {
	switch {
	case b.cache != nil:
		return max(b.cache.Access(addr, write), 1)
	case write:
		return b.storeLatency
	default:
		return b.loadLatency
	}
}

// Stores returns the store queue.
func (b *LoadStoreBuffer) Stores() *Ring[LSBEntry] { return b.stores }

func (b *LoadStoreBuffer) reset() {
	b.loads.Clear()
	b.stores.Clear()
	b.loadCounter = 0
	b.storeCounter = 0
	b.storeEnable = false
	b.storeData = 0
}

func (b *LoadStoreBuffer) flush(cur *State) error {
	if cur.Clear {
		if b.storeCounter != 0 || b.storeEnable {
			return newFault(ProtocolViolation, "load/store buffer", nil,
				"squash with a store in flight")
		}
		b.reset()
	}

	if cur.LSBIn.Valid {
		e := cur.LSBIn.Value
		e.Timestamp = cur.Clock

		q, name := b.loads, "load queue"
		if e.Class == insts.ClassStore {
			q, name = b.stores, "store queue"
		}
		if _, err := q.Push(e); err != nil {
			return newFault(StructuralOverflow, name, nil, "tag %d: %v", e.Dest, err)
		}
	}

	for _, m := range cur.Bus.Messages() {
		switch m.Kind {
		case MsgGetAddr:
			if !b.setAddr(m.Tag, m.Value) {
				return newFault(ProtocolViolation, "load/store buffer", nil,
					"address for unknown tag %d", m.Tag)
			}
		case MsgCommitMem:
			if err := b.release(m); err != nil {
				return err
			}
		}
	}

	cur.LoadQueueFull = b.loads.Full()
	cur.StoreQueueFull = b.stores.Full()

	return nil
}

func (b *LoadStoreBuffer) setAddr(tag int, addr uint32) bool {
	found := false
	set := func(_ int, e *LSBEntry) {
		if e.Dest == tag {
			e.Addr = addr
			e.AddrReady = true
			found = true
		}
	}

	b.loads.Each(set)
	b.stores.Each(set)

	return found
}

// release lets the head store start writing memory.
func (b *LoadStoreBuffer) release(m Message) error {
	if b.stores.Empty() {
		return newFault(ProtocolViolation, "load/store buffer", nil,
			"commit of tag %d with no queued store", m.Tag)
	}

	head := b.stores.Front()
	if head.Dest != m.Tag || !head.AddrReady {
		return newFault(ProtocolViolation, "load/store buffer", nil,
			"commit of tag %d does not match head store %d (address ready %t)",
			m.Tag, head.Dest, head.AddrReady)
	}

	b.storeEnable = true
	b.storeData = m.Value

	return nil
}

// loadGate is the insertion time of the oldest queued store.
func (b *LoadStoreBuffer) loadGate() uint64 {
	if b.stores.Empty() {
		return math.MaxUint64
	}
	return b.stores.Front().Timestamp
}

func (b *LoadStoreBuffer) execute(_, next *State) error {
	if err := b.executeLoad(next); err != nil {
		return err
	}
	return b.executeStore(next)
}

func (b *LoadStoreBuffer) executeLoad(next *State) error {
	switch {
	case b.loadCounter == 0:
		if !b.loads.Empty() {
			head := b.loads.Front()
			if head.AddrReady && head.Timestamp <= b.loadGate() {
				b.loadCounter = 1
				b.loadCycles = b.accessLatency(head.Addr, false)
			}
		}
		return nil
	case b.loadCounter < b.loadCycles:
		b.loadCounter++
		return nil
	}

	e, _ := b.loads.Pop()
	b.loadCounter = 0

	return next.Bus.Send(Message{
		Kind:  MsgWriteBack,
		Tag:   e.Dest,
		Value: emu.LoadValue(b.memory, e.Op, e.Addr),
	})
}

func (b *LoadStoreBuffer) executeStore(next *State) error {
	switch {
	case b.storeCounter == 0:
		if b.storeEnable {
			b.storeCounter = 1
			b.storeEnable = false
			b.storeCycles = b.accessLatency(b.stores.Front().Addr, true)
		}
		return nil
	case b.storeCounter < b.storeCycles:
		b.storeCounter++
		return nil
	}

	e, _ := b.stores.Pop()
	b.storeCounter = 0
	emu.StoreValue(b.memory, e.Op, e.Addr, b.storeData)

	return next.Bus.Send(Message{Kind: MsgStoreSuccess, Tag: e.Dest})
}
