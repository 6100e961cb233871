package netlist

import "fmt"

// auxMem is one RAM or ROM bank, bit-addressed by word.
type auxMem struct {
	wordBits uint32
	bits     []bool
}

func newAuxMem(info MemInfo) *auxMem {
	return &auxMem{wordBits: info.WordBits, bits: make([]bool, int(info.WordBits)*info.Size)}
}

func (m *auxMem) read(address int) []bool {
	base := address * int(m.wordBits)
	out := make([]bool, m.wordBits)
	copy(out, m.bits[base:base+int(m.wordBits)])
	return out
}

func (m *auxMem) write(address int, data []bool) {
	base := address * int(m.wordBits)
	copy(m.bits[base:], data)
}

// Runner executes a sorted circuit tick by tick over one flat bit memory.
// Each tick first applies the memory operators (registers, RAM, ROM), then
// evaluates the combinational definitions in dependency order.
type Runner struct {
	mem     []bool
	auxMems []*auxMem
	ops     *OpsList
}

func NewRunner(ops *OpsList) *Runner {
	aux := make([]*auxMem, len(ops.Mems))
	for i, info := range ops.Mems {
		aux[i] = newAuxMem(info)
	}
	return &Runner{
		mem:     make([]bool, ops.MemSize),
		auxMems: aux,
		ops:     ops,
	}
}

// LoadROM initializes one memory bank's contents, most significant word
// first, truncating or zero-filling as needed.
func (r *Runner) LoadROM(memID int, bits []bool) error {
	if memID < 0 || memID >= len(r.auxMems) {
		return fmt.Errorf("netlist: no memory bank %d", memID)
	}
	mem := r.auxMems[memID].bits
	n := copy(mem, bits)
	for i := n; i < len(mem); i++ {
		mem[i] = false
	}
	return nil
}

// Write sets an input wire's bits for the next tick.
func (r *Runner) Write(port PortInfo, bits []bool) error {
	if uint32(len(bits)) != port.Bits {
		return fmt.Errorf("netlist: expected %d bits for input %q, got %d", port.Bits, port.Name, len(bits))
	}
	copy(r.mem[port.Address:], bits)
	return nil
}

// Read returns an output wire's bits after a tick.
func (r *Runner) Read(port PortInfo) []bool {
	out := make([]bool, port.Bits)
	copy(out, r.mem[port.Address:port.Address+int(port.Bits)])
	return out
}

func (r *Runner) value(a OpArg, offset uint32) bool {
	if a.Bits != nil {
		return a.Bits[offset]
	}
	return r.mem[a.Addr+int(offset)]
}

// address decodes a big-endian bit-vector operand into a word address.
func (r *Runner) address(a OpArg, bits uint32) int {
	addr := 0
	for i := uint32(0); i < bits; i++ {
		addr *= 2
		if r.value(a, i) {
			addr++
		}
	}
	return addr
}

func (r *Runner) tickLogic() {
	for _, op := range r.ops.Ops {
		out := op.Address
		switch d := op.Def.(type) {
		case InputVar, MemVar:
			// Already written, by the host or the memory phase.
		case FwdVar:
			for i := uint32(0); i < d.Bits; i++ {
				r.mem[out+int(i)] = r.value(d.A, i)
			}
		case NotVar:
			for i := uint32(0); i < d.Bits; i++ {
				r.mem[out+int(i)] = !r.value(d.A, i)
			}
		case BinVar:
			for i := uint32(0); i < d.Bits; i++ {
				l, rr := r.value(d.L, i), r.value(d.R, i)
				var res bool
				switch d.Op {
				case BinOr:
					res = l || rr
				case BinXor:
					res = l != rr
				case BinAnd:
					res = l && rr
				case BinNand:
					res = !(l && rr)
				}
				r.mem[out+int(i)] = res
			}
		case MuxVar:
			if r.value(d.Sel, 0) {
				r.mem[out] = r.value(d.R, 0)
			} else {
				r.mem[out] = r.value(d.L, 0)
			}
		case SelectVar:
			r.mem[out] = r.value(d.A, d.Index)
		case SliceVar:
			for i := uint32(0); i <= d.End-d.Start; i++ {
				r.mem[out+int(i)] = r.value(d.A, d.Start+i)
			}
		case ConcatVar:
			for i := uint32(0); i < d.LBits; i++ {
				r.mem[out+int(i)] = r.value(d.L, i)
			}
			for i := uint32(0); i < d.RBits; i++ {
				r.mem[out+int(d.LBits+i)] = r.value(d.R, i)
			}
		}
	}
}

func (r *Runner) tickMem() {
	type memUpdate struct {
		addr  int
		value bool
	}
	type auxUpdate struct {
		memID int
		addr  int
		data  []bool
	}
	var memUpdates []memUpdate
	var auxUpdates []auxUpdate

	for _, op := range r.ops.MemOps {
		switch m := op.(type) {
		case RegOp:
			for i := uint32(0); i < m.Bits; i++ {
				memUpdates = append(memUpdates, memUpdate{
					addr:  m.Output + int(i),
					value: r.mem[m.Input+int(i)],
				})
			}
		case RamOp:
			readAddr := r.address(m.ReadAddress, m.AddressSize)
			if r.value(m.WriteEnable, 0) {
				writeAddr := r.address(m.WriteAddr, m.AddressSize)
				data := make([]bool, m.WordSize)
				for i := uint32(0); i < m.WordSize; i++ {
					data[i] = r.value(m.Data, i)
				}
				auxUpdates = append(auxUpdates, auxUpdate{memID: m.MemID, addr: writeAddr, data: data})
			}
			data := r.auxMems[m.MemID].read(readAddr)
			for i := uint32(0); i < m.WordSize; i++ {
				memUpdates = append(memUpdates, memUpdate{addr: m.Output + int(i), value: data[i]})
			}
		case RomOp:
			readAddr := r.address(m.ReadAddress, m.AddressSize)
			data := r.auxMems[m.MemID].read(readAddr)
			for i := uint32(0); i < m.WordSize; i++ {
				memUpdates = append(memUpdates, memUpdate{addr: m.Output + int(i), value: data[i]})
			}
		}
	}

	// All reads happen against the previous tick's state; apply updates
	// only once everything is computed.
	for _, u := range memUpdates {
		r.mem[u.addr] = u.value
	}
	for _, u := range auxUpdates {
		r.auxMems[u.memID].write(u.addr, u.data)
	}
}

// Tick advances the circuit one clock cycle.
func (r *Runner) Tick() {
	r.tickMem()
	r.tickLogic()
}
