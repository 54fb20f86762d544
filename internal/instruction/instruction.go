// Package instruction decodes and encodes the pool program's instruction
// payloads.
//
// A payload is a single opcode byte followed by the opcode's little-endian
// u64 arguments:
//
//	0 Init              no arguments
//	1 ProvideLiquidity  amount_a u64, amount_b u64
//	2 ClaimLiquidity    amount u64
//	3 TradeAForB        amount u64
//	4 TradeBForA        amount u64
//	5 Close             no arguments
//
// Bytes after the required arguments are ignored. An empty payload, an unknown
// opcode or truncated arguments decode to ErrInvalidInstruction.
//
// The package also exposes builders that assemble a full instruction (program
// id, ordered account metas and payload) for clients and for the simulated
// host.
package instruction

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	cerrors "github.com/lugondev/go-amm/internal/errors"
)

// Opcode is the first byte of every instruction payload.
type Opcode uint8

const (
	OpcodeInit Opcode = iota
	OpcodeProvideLiquidity
	OpcodeClaimLiquidity
	OpcodeTradeAForB
	OpcodeTradeBForA
	OpcodeClose
)

var opcodeNames = [...]string{
	OpcodeInit:             "Init",
	OpcodeProvideLiquidity: "ProvideLiquidity",
	OpcodeClaimLiquidity:   "ClaimLiquidity",
	OpcodeTradeAForB:       "TradeAForB",
	OpcodeTradeBForA:       "TradeBForA",
	OpcodeClose:            "Close",
}

// String returns the operation name for the opcode.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Valid reports whether the opcode is one the program understands.
func (o Opcode) Valid() bool {
	return o <= OpcodeClose
}

// Instruction is the closed set of decoded pool instructions.
type Instruction interface {
	Opcode() Opcode
	String() string

	marshal(enc *bin.Encoder) error
}

// Init creates the pool record and hands vault ownership to the pool authority.
type Init struct{}

// ProvideLiquidity deposits AmountA of asset A and AmountB of asset B.
type ProvideLiquidity struct {
	AmountA uint64 `json:"amount_a"`
	AmountB uint64 `json:"amount_b"`
}

// ClaimLiquidity returns Amount receipt tokens to the pool.
type ClaimLiquidity struct {
	Amount uint64 `json:"amount"`
}

// TradeAForB sells Amount of asset A to the pool.
type TradeAForB struct {
	Amount uint64 `json:"amount"`
}

// TradeBForA sells Amount of asset B to the pool.
type TradeBForA struct {
	Amount uint64 `json:"amount"`
}

// Close tears the pool down and returns its lamports to the initializer.
type Close struct{}

func (Init) Opcode() Opcode             { return OpcodeInit }
func (ProvideLiquidity) Opcode() Opcode { return OpcodeProvideLiquidity }
func (ClaimLiquidity) Opcode() Opcode   { return OpcodeClaimLiquidity }
func (TradeAForB) Opcode() Opcode       { return OpcodeTradeAForB }
func (TradeBForA) Opcode() Opcode       { return OpcodeTradeBForA }
func (Close) Opcode() Opcode            { return OpcodeClose }

func (Init) String() string { return "Init" }

func (ix ProvideLiquidity) String() string {
	return fmt.Sprintf("ProvideLiquidity{amount_a=%d, amount_b=%d}", ix.AmountA, ix.AmountB)
}

func (ix ClaimLiquidity) String() string {
	return fmt.Sprintf("ClaimLiquidity{amount=%d}", ix.Amount)
}

func (ix TradeAForB) String() string {
	return fmt.Sprintf("TradeAForB{amount=%d}", ix.Amount)
}

func (ix TradeBForA) String() string {
	return fmt.Sprintf("TradeBForA{amount=%d}", ix.Amount)
}

func (Close) String() string { return "Close" }

func (Init) marshal(*bin.Encoder) error { return nil }

func (ix ProvideLiquidity) marshal(enc *bin.Encoder) error {
	if err := enc.WriteUint64(ix.AmountA, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint64(ix.AmountB, bin.LE)
}

func (ix ClaimLiquidity) marshal(enc *bin.Encoder) error {
	return enc.WriteUint64(ix.Amount, bin.LE)
}

func (ix TradeAForB) marshal(enc *bin.Encoder) error {
	return enc.WriteUint64(ix.Amount, bin.LE)
}

func (ix TradeBForA) marshal(enc *bin.Encoder) error {
	return enc.WriteUint64(ix.Amount, bin.LE)
}

func (Close) marshal(*bin.Encoder) error { return nil }

// Decode parses an instruction payload.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, cerrors.ErrInvalidInstruction.WithCause(fmt.Errorf("empty instruction data"))
	}

	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint8()
	if err != nil {
		return nil, cerrors.ErrInvalidInstruction.WithCause(err)
	}

	op := Opcode(tag)
	if !op.Valid() {
		return nil, unknownOpcode(op)
	}

	switch op {
	case OpcodeInit:
		return Init{}, nil

	case OpcodeProvideLiquidity:
		a, err := readAmount(dec, op)
		if err != nil {
			return nil, err
		}
		b, err := readAmount(dec, op)
		if err != nil {
			return nil, err
		}
		return ProvideLiquidity{AmountA: a, AmountB: b}, nil

	case OpcodeClaimLiquidity:
		amount, err := readAmount(dec, op)
		if err != nil {
			return nil, err
		}
		return ClaimLiquidity{Amount: amount}, nil

	case OpcodeTradeAForB:
		amount, err := readAmount(dec, op)
		if err != nil {
			return nil, err
		}
		return TradeAForB{Amount: amount}, nil

	case OpcodeTradeBForA:
		amount, err := readAmount(dec, op)
		if err != nil {
			return nil, err
		}
		return TradeBForA{Amount: amount}, nil

	case OpcodeClose:
		return Close{}, nil
	}
	return nil, unknownOpcode(op)
}

func unknownOpcode(op Opcode) error {
	return cerrors.ErrInvalidInstruction.WithDetails(map[string]any{"opcode": uint8(op)})
}

func readAmount(dec *bin.Decoder, op Opcode) (uint64, error) {
	v, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return 0, cerrors.ErrInvalidInstruction.
			WithCause(fmt.Errorf("%s: truncated amount: %w", op, err)).
			WithDetails(map[string]any{"opcode": uint8(op)})
	}
	return v, nil
}

// Encode produces the wire payload for ix.
func Encode(ix Instruction) ([]byte, error) {
	if ix == nil {
		return nil, cerrors.ErrInvalidInstruction.WithCause(fmt.Errorf("nil instruction"))
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteUint8(uint8(ix.Opcode())); err != nil {
		return nil, err
	}
	if err := ix.marshal(enc); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ix.Opcode(), err)
	}
	return buf.Bytes(), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(ix Instruction) []byte {
	data, err := Encode(ix)
	if err != nil {
		panic(err)
	}
	return data
}
