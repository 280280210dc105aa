package asm

import (
	"errors"
	"fmt"
)

// ErrUnexpectedInstruction is matched by every *UnexpectedInstructionError.
var ErrUnexpectedInstruction = errors.New("unexpected instruction")

// UnexpectedInstructionError means the bytes at Address do not form the expected
// idiom, which points to a different build of the host binary.
type UnexpectedInstructionError struct {
	Address uint64
	Want    string
	Got     string
	Bytes   []byte
}

func (e *UnexpectedInstructionError) Error() string {
	return fmt.Sprintf("unexpected instruction at 0x%x: want %s, got %s (% x)", e.Address, e.Want, e.Got, e.Bytes)
}

func (e *UnexpectedInstructionError) Unwrap() error {
	return ErrUnexpectedInstruction
}

func unexpected(ip uint64, want string, code []byte, got string) error {
	return &UnexpectedInstructionError{
		Address: ip,
		Want:    want,
		Got:     got,
		Bytes:   append([]byte(nil), code...),
	}
}
