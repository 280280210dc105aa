package asm

import (
	"errors"
	"testing"

	"memscope/process"
	"memscope/process_blob"
)

func TestDecode(t *testing.T) {
	code := []byte{0x48, 0x8D, 0x05, 0x10, 0x00, 0x00, 0x00} // lea rax, [rip+0x10]

	ins, err := Decode(code, 0x1000)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if ins.Mnemonic != "lea" || ins.Len != 7 || ins.Next() != 0x1007 {
		t.Fatalf("unexpected instruction %+v", ins)
	}
	if len(ins.Operands) != 2 || ins.Operands[0] != OperandRegister || ins.Operands[1] != OperandMemory {
		t.Fatalf("unexpected operands %v", ins.Operands)
	}

	if _, err := Decode([]byte{0x48}, 0); err == nil {
		t.Fatalf("expected error decoding a truncated instruction")
	}
}

func TestLeaRetTarget(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		want uint64
	}{
		{
			name: "rax",
			code: []byte{
				0x48, 0x8D, 0x05, 0xF9, 0x0D, 0x05, 0x00, // lea rax, [rip+0x50df9]
				0xC3, // ret
			},
			want: 0x180001000 + 7 + 0x50DF9,
		},
		{
			name: "negative displacement",
			code: []byte{
				0x48, 0x8D, 0x05, 0xF0, 0xFF, 0xFF, 0xFF, // lea rax, [rip-0x10]
				0xC3, // ret
			},
			want: 0x180001000 + 7 - 0x10,
		},
		{
			name: "r8",
			code: []byte{
				0x4C, 0x8D, 0x05, 0x00, 0x01, 0x00, 0x00, // lea r8, [rip+0x100]
				0xC3, // ret
			},
			want: 0x180001000 + 7 + 0x100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LeaRetTarget(tt.code, 0x180001000)
			if err != nil {
				t.Fatalf("LeaRetTarget returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("LeaRetTarget = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestLeaRetTargetRejectsOtherShapes(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"mov instead of lea", []byte{0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00, 0xC3}},
		{"lea without ret", []byte{0x48, 0x8D, 0x05, 0x10, 0x00, 0x00, 0x00, 0x90}},
		{"lea then ret imm16", []byte{0x48, 0x8D, 0x05, 0x10, 0x00, 0x00, 0x00, 0xC2, 0x08, 0x00}},
		{"lea from rsp", []byte{0x48, 0x8D, 0x04, 0x24, 0xC3}},
		{"lea 32-bit destination", []byte{0x8D, 0x05, 0x10, 0x00, 0x00, 0x00, 0xC3}},
		{"window ends after lea", []byte{0x48, 0x8D, 0x05, 0x10, 0x00, 0x00, 0x00}},
		{"ret only", []byte{0xC3}},
		{"garbage", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LeaRetTarget(tt.code, 0x1000)
			if err == nil {
				t.Fatalf("expected error, got %#x", got)
			}
			if got != 0 {
				t.Fatalf("a value was derived from mismatched bytes: %#x", got)
			}
			if !errors.Is(err, ErrUnexpectedInstruction) {
				t.Fatalf("expected ErrUnexpectedInstruction, got %v", err)
			}
			var ue *UnexpectedInstructionError
			if !errors.As(err, &ue) || ue.Address != 0x1000 || ue.Want != IdiomLeaRet {
				t.Fatalf("unexpected error details: %#v", err)
			}
		})
	}
}

func TestMovIndirectTarget(t *testing.T) {
	code := []byte{0x4C, 0x8B, 0x0D, 0x20, 0x30, 0x00, 0x00} // mov r9, [rip+0x3020]
	got, err := MovIndirectTarget(code, 0x180010000)
	if err != nil {
		t.Fatalf("MovIndirectTarget returned error: %v", err)
	}
	if want := uint64(0x180010000 + 7 + 0x3020); got != want {
		t.Fatalf("MovIndirectTarget = %#x, want %#x", got, want)
	}

	bad := map[string][]byte{
		"mov rax":      {0x48, 0x8B, 0x05, 0x20, 0x30, 0x00, 0x00},
		"lea r9":       {0x4C, 0x8D, 0x0D, 0x20, 0x30, 0x00, 0x00},
		"mov r9d":      {0x44, 0x8B, 0x0D, 0x20, 0x30, 0x00, 0x00},
		"mov r9 [rax]": {0x4C, 0x8B, 0x08},
		"mov r9 imm":   {0x49, 0xC7, 0xC1, 0x01, 0x00, 0x00, 0x00},
	}
	for name, code := range bad {
		t.Run(name, func(t *testing.T) {
			if _, err := MovIndirectTarget(code, 0x1000); !errors.Is(err, ErrUnexpectedInstruction) {
				t.Fatalf("expected ErrUnexpectedInstruction, got %v", err)
			}
		})
	}
}

func TestResolveFromMemory(t *testing.T) {
	const base = 0x140000000
	mem := make([]byte, 0x40)
	copy(mem[0x00:], []byte{0x48, 0x8D, 0x05, 0x19, 0x00, 0x00, 0x00, 0xC3}) // lea rax, [rip+0x19]; ret
	copy(mem[0x10:], []byte{0x4C, 0x8B, 0x0D, 0x09, 0x00, 0x00, 0x00})       // mov r9, [rip+0x9]
	// the mov stub sits at the very end of the mapping below
	tail := []byte{0x4C, 0x8B, 0x0D, 0xF0, 0xFF, 0xFF, 0xFF} // mov r9, [rip-0x10]
	r := process_blob.NewProcessBlob(base, append(mem, tail...))

	got, err := ResolveLeaRet(r, base)
	if err != nil || got != base+0x20 {
		t.Fatalf("ResolveLeaRet = %#x, %v", got, err)
	}

	got, err = ResolveMovIndirect(r, base+0x10)
	if err != nil || got != base+0x20 {
		t.Fatalf("ResolveMovIndirect = %#x, %v", got, err)
	}

	got, err = ResolveMovIndirect(r, base+0x40)
	if err != nil || got != base+0x40+7-0x10 {
		t.Fatalf("ResolveMovIndirect near mapping end = %#x, %v", got, err)
	}

	if _, err := ResolveLeaRet(r, base+0x10); !errors.Is(err, ErrUnexpectedInstruction) {
		t.Fatalf("expected ErrUnexpectedInstruction, got %v", err)
	}
	if _, err := ResolveLeaRet(r, 0); !errors.Is(err, process.ErrNullPointer) {
		t.Fatalf("expected ErrNullPointer, got %v", err)
	}
	if _, err := ResolveLeaRet(r, 0x1000); !errors.Is(err, process.ErrAddressNotMapped) {
		t.Fatalf("expected ErrAddressNotMapped, got %v", err)
	}
}
