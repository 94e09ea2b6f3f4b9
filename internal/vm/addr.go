package vm

// Addr names one memory cell in a Process's address space. Unlike the
// teacher's asm.Addr (a handle into a pre-allocated contiguous []Value
// slice, indexed with unsafe.Pointer arithmetic), a Program's address space
// here is whatever the compiler assigned it and is not known to be
// contiguous or fixed-size ahead of time, so Addr is just a map key.
type Addr uint64

// Memory holds a Process's values, addressed by Addr.
type Memory map[Addr]Value

// Load returns the value at addr, or nil if nothing has been stored there
// yet.
func (m Memory) Load(addr Addr) Value {
	return m[addr]
}

// Store writes v to addr.
func (m Memory) Store(addr Addr, v Value) {
	m[addr] = v
}
