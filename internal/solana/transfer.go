// Package solana builds and serializes System Program transfer transactions
// for submission to a co-signing custody vendor. Only the small subset of the
// wire format needed for transfers is implemented; the vendor owns signing.
package solana

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// SystemProgramID is the base58 id of the System Program.
const SystemProgramID = "11111111111111111111111111111111"

// systemTransferIndex is the System Program instruction index for Transfer.
const systemTransferIndex uint32 = 2

const (
	pubkeyLen    = 32
	blockhashLen = 32
	signatureLen = 64
)

// TransferParams describes a lamport transfer from the fee payer.
type TransferParams struct {
	From            string // base58 pubkey, also the fee payer
	To              string // base58 pubkey
	Lamports        uint64
	RecentBlockhash string // base58
}

// BuildTransferTransaction serializes an unsigned transfer transaction:
// one signature slot for the fee payer (zeroed, the vendor fills it in),
// followed by the message. The result is base64, the encoding signing APIs
// accept.
func BuildTransferTransaction(p TransferParams) (string, error) {
	msg, err := buildTransferMessage(p)
	if err != nil {
		return "", err
	}

	// Compact array of signatures: count 1, zeroed 64-byte placeholder.
	out := make([]byte, 0, 1+signatureLen+len(msg))
	out = appendCompactU16(out, 1)
	out = append(out, make([]byte, signatureLen)...)
	out = append(out, msg...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// buildTransferMessage encodes the legacy message: header, account keys,
// recent blockhash, and the single transfer instruction.
func buildTransferMessage(p TransferParams) ([]byte, error) {
	from, err := decodePubkey(p.From, "from")
	if err != nil {
		return nil, err
	}
	to, err := decodePubkey(p.To, "to")
	if err != nil {
		return nil, err
	}
	program, err := decodePubkey(SystemProgramID, "program")
	if err != nil {
		return nil, err
	}
	blockhash, err := base58.Decode(p.RecentBlockhash)
	if err != nil || len(blockhash) != blockhashLen {
		return nil, fmt.Errorf("invalid recent blockhash: %q", p.RecentBlockhash)
	}
	if p.Lamports == 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if p.From == p.To {
		return nil, fmt.Errorf("self transfer: from and to are the same account")
	}

	var msg []byte

	// Header: 1 required signature (fee payer), 0 readonly signed,
	// 1 readonly unsigned (the program account).
	msg = append(msg, 1, 0, 1)

	// Account keys: fee payer, recipient, system program.
	msg = appendCompactU16(msg, 3)
	msg = append(msg, from...)
	msg = append(msg, to...)
	msg = append(msg, program...)

	msg = append(msg, blockhash...)

	// Instructions: one transfer. Data is the little-endian instruction
	// index followed by the lamport amount.
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], p.Lamports)

	msg = appendCompactU16(msg, 1)
	msg = append(msg, 2)          // program id index
	msg = appendCompactU16(msg, 2) // account index count
	msg = append(msg, 0, 1)       // from, to
	msg = appendCompactU16(msg, uint16(len(data)))
	msg = append(msg, data...)

	return msg, nil
}

func decodePubkey(s, field string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s address: %w", field, err)
	}
	if len(b) != pubkeyLen {
		return nil, fmt.Errorf("invalid %s address length: %d", field, len(b))
	}
	return b, nil
}

// appendCompactU16 appends a shortvec-encoded length.
func appendCompactU16(b []byte, v uint16) []byte {
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}

// ValidAddress reports whether s decodes to a 32-byte pubkey.
func ValidAddress(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == pubkeyLen
}
