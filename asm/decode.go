// Package asm decodes just enough x86-64 to validate the two RIP-relative idioms
// the host's interface machinery is built from, and to compute the addresses
// they reference. It is not a disassembler.
package asm

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// OperandKind classifies a decoded operand.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandRegister
	OperandMemory
	OperandImmediate
	OperandRelative
)

func (k OperandKind) String() string {
	switch k {
	case OperandRegister:
		return "reg"
	case OperandMemory:
		return "mem"
	case OperandImmediate:
		return "imm"
	case OperandRelative:
		return "rel"
	}
	return "none"
}

// Instruction is one decoded x86-64 instruction.
type Instruction struct {
	Mnemonic string
	Operands []OperandKind
	Len      int

	inst x86asm.Inst
	ip   uint64
}

// Decode decodes the first instruction in code, which lives at address ip.
func Decode(code []byte, ip uint64) (Instruction, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return Instruction{}, fmt.Errorf("decode at 0x%x: %w", ip, err)
	}

	ins := Instruction{
		Mnemonic: strings.ToLower(inst.Op.String()),
		Len:      inst.Len,
		inst:     inst,
		ip:       ip,
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		ins.Operands = append(ins.Operands, kindOf(arg))
	}
	return ins, nil
}

func (i Instruction) String() string {
	return strings.ToLower(x86asm.IntelSyntax(i.inst, i.ip, nil))
}

// Next is the address of the following instruction.
func (i Instruction) Next() uint64 {
	return i.ip + uint64(i.Len)
}

// ripTarget returns the absolute address of a [rip+disp] operand.
func (i Instruction) ripTarget(mem x86asm.Mem) uint64 {
	return uint64(int64(i.Next()) + mem.Disp)
}

func kindOf(arg x86asm.Arg) OperandKind {
	switch arg.(type) {
	case x86asm.Reg:
		return OperandRegister
	case x86asm.Mem:
		return OperandMemory
	case x86asm.Imm:
		return OperandImmediate
	case x86asm.Rel:
		return OperandRelative
	}
	return OperandNone
}

func isReg64(r x86asm.Reg) bool {
	return r >= x86asm.RAX && r <= x86asm.R15
}

// ripMem returns the memory operand if it is plain [rip+disp32].
func ripMem(arg x86asm.Arg) (x86asm.Mem, bool) {
	mem, ok := arg.(x86asm.Mem)
	if !ok {
		return x86asm.Mem{}, false
	}
	if mem.Base != x86asm.RIP || mem.Index != 0 || mem.Segment != 0 {
		return x86asm.Mem{}, false
	}
	return mem, true
}
