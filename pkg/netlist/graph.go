package netlist

import "fmt"

// varSlot is the allocation record of one declared wire.
type varSlot struct {
	id      int
	address int
	bits    uint32
}

// Build allocates every declared wire into one flat bit memory, checks the
// width discipline of every equation, and produces the dependency graph
// plus the memory-operator list.
func Build(n *Netlist) (*Graph, error) {
	slots := make(map[string]varSlot, len(n.Vars))
	memSize := 0
	for id, decl := range n.Vars {
		if _, ok := slots[decl.Name]; ok {
			return nil, fmt.Errorf("netlist: variable %q already declared", decl.Name)
		}
		slots[decl.Name] = varSlot{id: id, address: memSize, bits: decl.Type.Bits}
		memSize += int(decl.Type.Bits)
	}

	findVar := func(name string) (varSlot, error) {
		slot, ok := slots[name]
		if !ok {
			return varSlot{}, fmt.Errorf("netlist: can't find variable %q", name)
		}
		return slot, nil
	}

	// findArg resolves an operator input to (width, optional dependency id,
	// compiled OpArg).
	findArg := func(a Arg) (uint32, int, OpArg, error) {
		if a.Const != nil {
			return uint32(len(a.Const.Bits)), -1, OpArg{Bits: a.Const.Bits}, nil
		}
		slot, err := findVar(a.Var)
		if err != nil {
			return 0, -1, OpArg{}, err
		}
		return slot.bits, slot.id, OpArg{Addr: slot.address}, nil
	}

	edges := make([]varInfo, len(n.Vars))
	for _, decl := range n.Vars {
		slot := slots[decl.Name]
		edges[slot.id] = varInfo{name: decl.Name, address: slot.address}
	}

	defined := make([]bool, len(n.Vars))
	setDef := func(id int, def VarDef, deps []int, bits uint32) error {
		if defined[id] {
			return fmt.Errorf("netlist: variable %q defined twice", edges[id].name)
		}
		defined[id] = true
		edges[id].def = def
		edges[id].deps = deps
		edges[id].bits = bits
		return nil
	}

	deps := func(ids ...int) []int {
		var out []int
		for _, id := range ids {
			if id >= 0 {
				out = append(out, id)
			}
		}
		return out
	}

	for _, name := range n.Inputs {
		slot, err := findVar(name)
		if err != nil {
			return nil, err
		}
		if err := setDef(slot.id, InputVar{}, nil, slot.bits); err != nil {
			return nil, err
		}
	}
	for _, name := range n.Outputs {
		if _, err := findVar(name); err != nil {
			return nil, err
		}
	}

	ports := func(names []string) []PortInfo {
		out := make([]PortInfo, 0, len(names))
		for _, name := range names {
			slot := slots[name]
			out = append(out, PortInfo{Name: name, Bits: slot.bits, Address: slot.address})
		}
		return out
	}

	var memOps []MemOp
	var mems []MemInfo

	for _, nd := range n.Defs {
		slot, err := findVar(nd.Name)
		if err != nil {
			return nil, err
		}
		bits := slot.bits

		switch d := nd.Def.(type) {
		case FwdDef:
			aBits, aID, aArg, err := findArg(d.A)
			if err != nil {
				return nil, err
			}
			if bits != aBits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, FwdVar{Bits: bits, A: aArg}, deps(aID), bits); err != nil {
				return nil, err
			}

		case NotDef:
			aBits, aID, aArg, err := findArg(d.A)
			if err != nil {
				return nil, err
			}
			if bits != aBits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, NotVar{Bits: bits, A: aArg}, deps(aID), bits); err != nil {
				return nil, err
			}

		case BinDef:
			lBits, lID, lArg, err := findArg(d.L)
			if err != nil {
				return nil, err
			}
			rBits, rID, rArg, err := findArg(d.R)
			if err != nil {
				return nil, err
			}
			if bits != lBits || bits != rBits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, BinVar{Op: d.Op, Bits: bits, L: lArg, R: rArg}, deps(lID, rID), bits); err != nil {
				return nil, err
			}

		case MuxDef:
			selBits, selID, selArg, err := findArg(d.Sel)
			if err != nil {
				return nil, err
			}
			lBits, lID, lArg, err := findArg(d.L)
			if err != nil {
				return nil, err
			}
			rBits, rID, rArg, err := findArg(d.R)
			if err != nil {
				return nil, err
			}
			if selBits != 1 || lBits != 1 || rBits != 1 || bits != 1 {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q (expected 1)", nd.Name)
			}
			if err := setDef(slot.id, MuxVar{Sel: selArg, L: lArg, R: rArg}, deps(selID, lID, rID), 1); err != nil {
				return nil, err
			}

		case RegDef:
			src, err := findVar(d.Source)
			if err != nil {
				return nil, err
			}
			if bits != src.bits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, MemVar{}, nil, bits); err != nil {
				return nil, err
			}
			memOps = append(memOps, RegOp{Bits: bits, Input: src.address, Output: slot.address})

		case RamDef:
			raBits, _, raArg, err := findArg(d.ReadAddress)
			if err != nil {
				return nil, err
			}
			weBits, _, weArg, err := findArg(d.WriteEnable)
			if err != nil {
				return nil, err
			}
			waBits, _, waArg, err := findArg(d.WriteAddr)
			if err != nil {
				return nil, err
			}
			daBits, _, daArg, err := findArg(d.Data)
			if err != nil {
				return nil, err
			}
			if d.AddressSize != raBits || d.AddressSize != waBits ||
				weBits != 1 || d.WordSize != daBits || d.WordSize != bits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, MemVar{}, nil, bits); err != nil {
				return nil, err
			}
			memOps = append(memOps, RamOp{
				MemID:       len(mems),
				AddressSize: d.AddressSize,
				WordSize:    d.WordSize,
				ReadAddress: raArg,
				WriteEnable: weArg,
				WriteAddr:   waArg,
				Data:        daArg,
				Output:      slot.address,
			})
			mems = append(mems, MemInfo{Size: 1 << d.AddressSize, WordBits: d.WordSize})

		case RomDef:
			raBits, _, raArg, err := findArg(d.ReadAddress)
			if err != nil {
				return nil, err
			}
			if d.AddressSize != raBits || d.WordSize != bits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, MemVar{}, nil, bits); err != nil {
				return nil, err
			}
			memOps = append(memOps, RomOp{
				MemID:       len(mems),
				AddressSize: d.AddressSize,
				WordSize:    d.WordSize,
				ReadAddress: raArg,
				Output:      slot.address,
			})
			mems = append(mems, MemInfo{Size: 1 << d.AddressSize, WordBits: d.WordSize})

		case SelectDef:
			srcBits, srcID, srcArg, err := findArg(d.Bus)
			if err != nil {
				return nil, err
			}
			if d.Index >= srcBits {
				return nil, fmt.Errorf("netlist: index (%d) out of bounds (length is %d)", d.Index, srcBits)
			}
			if bits != 1 {
				return nil, fmt.Errorf("netlist: expected %q to be one bit wide", nd.Name)
			}
			if err := setDef(slot.id, SelectVar{Index: d.Index, A: srcArg}, deps(srcID), 1); err != nil {
				return nil, err
			}

		case SliceDef:
			srcBits, srcID, srcArg, err := findArg(d.Bus)
			if err != nil {
				return nil, err
			}
			if d.Start > d.End || d.End >= srcBits {
				return nil, fmt.Errorf("netlist: invalid slice bounds in definition of %q", nd.Name)
			}
			if bits != d.End-d.Start+1 { // inclusive range
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, SliceVar{Start: d.Start, End: d.End, A: srcArg}, deps(srcID), bits); err != nil {
				return nil, err
			}

		case ConcatDef:
			lBits, lID, lArg, err := findArg(d.L)
			if err != nil {
				return nil, err
			}
			rBits, rID, rArg, err := findArg(d.R)
			if err != nil {
				return nil, err
			}
			if bits != lBits+rBits {
				return nil, fmt.Errorf("netlist: mismatched lengths in definition of %q", nd.Name)
			}
			if err := setDef(slot.id, ConcatVar{LBits: lBits, L: lArg, RBits: rBits, R: rArg}, deps(lID, rID), bits); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("netlist: unknown definition for %q", nd.Name)
		}
	}

	for id := range edges {
		if !defined[id] {
			return nil, fmt.Errorf("netlist: variable %q has no definition", edges[id].name)
		}
	}

	return &Graph{
		MemSize: memSize,
		Inputs:  ports(n.Inputs),
		Outputs: ports(n.Outputs),
		Mems:    mems,
		edges:   edges,
		MemOps:  memOps,
	}, nil
}
