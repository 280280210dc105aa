package asm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"memscope/process"
)

const (
	// IdiomLeaRet is the shape of the host's interface factory stubs.
	IdiomLeaRet = "lea reg64,[rip+disp32]; ret"

	// IdiomMovIndirect is the first instruction of the interface registry export.
	IdiomMovIndirect = "mov r9,[rip+disp32]"

	// windowSize covers lea (7 bytes) plus ret (1), and mov r9 (7).
	windowSize = 8
)

// LeaRetTarget validates that code starts with lea reg64,[rip+disp32] followed by
// ret and returns the lea's absolute target. ip is the address of code[0].
func LeaRetTarget(code []byte, ip uint64) (uint64, error) {
	lea, err := Decode(code, ip)
	if err != nil {
		return 0, unexpected(ip, IdiomLeaRet, code, err.Error())
	}

	if lea.inst.Op != x86asm.LEA {
		return 0, unexpected(ip, IdiomLeaRet, code, lea.String())
	}
	dst, ok := lea.inst.Args[0].(x86asm.Reg)
	if !ok || !isReg64(dst) {
		return 0, unexpected(ip, IdiomLeaRet, code, lea.String())
	}
	mem, ok := ripMem(lea.inst.Args[1])
	if !ok {
		return 0, unexpected(ip, IdiomLeaRet, code, lea.String())
	}

	if lea.Len >= len(code) {
		return 0, unexpected(ip, IdiomLeaRet, code, lea.String()+"; <end of window>")
	}
	ret, err := Decode(code[lea.Len:], lea.Next())
	if err != nil || ret.inst.Op != x86asm.RET || ret.inst.Args[0] != nil {
		got := lea.String() + "; <undecodable>"
		if err == nil {
			got = lea.String() + "; " + ret.String()
		}
		return 0, unexpected(ip, IdiomLeaRet, code, got)
	}

	return lea.ripTarget(mem), nil
}

// MovIndirectTarget validates that code starts with mov r9,[rip+disp32] and
// returns the address of the memory slot it loads from.
func MovIndirectTarget(code []byte, ip uint64) (uint64, error) {
	mov, err := Decode(code, ip)
	if err != nil {
		return 0, unexpected(ip, IdiomMovIndirect, code, err.Error())
	}

	if mov.inst.Op != x86asm.MOV {
		return 0, unexpected(ip, IdiomMovIndirect, code, mov.String())
	}
	if dst, ok := mov.inst.Args[0].(x86asm.Reg); !ok || dst != x86asm.R9 {
		return 0, unexpected(ip, IdiomMovIndirect, code, mov.String())
	}
	mem, ok := ripMem(mov.inst.Args[1])
	if !ok || mov.inst.MemBytes != 8 {
		return 0, unexpected(ip, IdiomMovIndirect, code, mov.String())
	}

	return mov.ripTarget(mem), nil
}

// ResolveLeaRet reads the code at addr and resolves the lea;ret idiom. The result
// is untrusted: callers must null-check it before dereferencing.
func ResolveLeaRet(r process.MemoryReader, addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	code, err := readWindow(r, addr)
	if err != nil {
		return 0, err
	}
	target, err := LeaRetTarget(code, uint64(addr))
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(target), nil
}

// ResolveMovIndirect reads the code at addr and resolves the mov r9 idiom to the
// address of the slot it loads.
func ResolveMovIndirect(r process.MemoryReader, addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, error) {
	code, err := readWindow(r, addr)
	if err != nil {
		return 0, err
	}
	target, err := MovIndirectTarget(code, uint64(addr))
	if err != nil {
		return 0, err
	}
	return process.ProcessMemoryAddress(target), nil
}

// readWindow reads up to windowSize bytes, settling for a shorter window when
// addr sits near the end of a mapping.
func readWindow(r process.MemoryReader, addr process.ProcessMemoryAddress) ([]byte, error) {
	if addr == 0 {
		return nil, fmt.Errorf("read code: %w", process.ErrNullPointer)
	}

	var lastErr error
	for size := process.ProcessMemorySize(windowSize); size > 0; size-- {
		code, err := r.ReadMemory(addr, size)
		if err == nil {
			return code, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("read code at 0x%x: %w", addr, lastErr)
}
