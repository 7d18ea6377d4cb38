// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package expr evaluates DWARF location expressions (§4.9): a small
// stack machine over target-address-sized values, generalised from the
// donor's fixed-width, ARM-shaped closure-table evaluator
// (dwarf_loclist.go/dwarf_loclist_operations.go) into a 64-bit machine
// covering the full DW_OP opcode table.
package expr

import (
	"encoding/binary"

	"github.com/quietloop/dwarfengine/target"
)

// FrameBaseResolver lazily evaluates the frame base of the subprogram an
// expression is being evaluated within, for DW_OP_fbreg. It is a
// function rather than a plain value because most expressions never use
// fbreg, and the frame base itself is usually another expression
// (commonly call_frame_cfa) that is wasteful to evaluate eagerly.
type FrameBaseResolver func() (uint64, error)

// TLSResolver resolves a thread-local storage offset to a target
// address for DW_OP_form_tls_address.
type TLSResolver func(offset uint64) (uint64, error)

// Context carries everything a single expression evaluation needs
// beyond the expression bytes themselves, per §4.9: the target's
// address width and byte order, the relocation delta applied to
// DW_OP_addr operands (the difference between an object's link-time and
// load-time addresses), an optional object address for
// DW_OP_push_object_address, a lazily-evaluated frame base, a TLS
// resolver, and the register/memory trait used by regN/bregN/deref and
// friends.
type Context struct {
	ByteOrder   binary.ByteOrder
	AddressSize int
	BigEndian   bool

	RelocationDelta uint64

	ObjectAddress    uint64
	HasObjectAddress bool

	// CFA is the canonical frame address of the frame an expression is
	// being evaluated within, consumed by DW_OP_call_frame_cfa. It is
	// distinct from InitialValue: InitialValue seeds the stack before a
	// CFI rule expression runs (the expression computes a value, not a
	// reference to an already-known CFA), whereas CFA is what a
	// subprogram's DW_AT_frame_base expression reads to name that CFA
	// explicitly, most commonly as the sole operator DW_OP_call_frame_cfa.
	CFA    uint64
	HasCFA bool

	FrameBase FrameBaseResolver
	TLS       TLSResolver

	Target     target.RegisterTarget
	CallTarget target.CallTarget
}

// InitialValue, if InitialValuePresent is set, is pushed onto the stack
// before evaluation begins. CFI rules built from
// DW_CFA_def_cfa_expression and friends are evaluated this way, with the
// canonical frame address pre-pushed per §4.8.4.
type InitialValue struct {
	Value   uint64
	Present bool
}
