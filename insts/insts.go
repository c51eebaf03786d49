// Package insts provides RV32I instruction definitions, decoding and encoding.
//
// This package implements decoding of 32-bit RISC-V base integer machine code
// into structured instruction records. It supports the six base encodings:
//   - R-type: ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND
//   - I-type: ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI, loads, JALR
//   - S-type: SB, SH, SW
//   - B-type: BEQ, BNE, BLT, BGE, BLTU, BGEU
//   - U-type: LUI, AUIPC
//   - J-type: JAL
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x02a00513) // ADDI a0, zero, 42
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
//
// The Encode helpers go the other way and are used to build test programs and
// microbenchmarks without an external assembler.
package insts
