package solana

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/brojonat/dustwatch/service/detector"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// tokenAccountInfo is what post-token balances tell us about a token account.
type tokenAccountInfo struct {
	owner    *solana.PublicKey
	mint     solana.PublicKey
	decimals *uint8
}

// parseTransactionFromResult builds an indexer-shaped record from a GetTransactionResult.
// Fee payer is the first account key, memo text becomes the description, and
// SPL transfers become token transfers. Accounts loaded from address lookup
// tables are not resolved.
func parseTransactionFromResult(signature string, result *rpc.GetTransactionResult) (*detector.RawTransaction, error) {
	if result.Transaction == nil {
		return nil, fmt.Errorf("transaction %s has no transaction body", signature)
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	source := Source
	raw := &detector.RawTransaction{
		Signature: signature,
		Source:    &source,
	}

	accountKeys := tx.Message.AccountKeys
	if len(accountKeys) > 0 {
		feePayer := accountKeys[0].String()
		raw.FeePayer = &feePayer
	}

	if result.BlockTime != nil {
		raw.Timestamp = detector.NewNumber(float64(*result.BlockTime))
	}

	tokenAccounts := tokenAccountsFromMeta(result.Meta, accountKeys)

	var memo string
	isTransfer := false
	for _, instruction := range tx.Message.Instructions {
		programID, ok := keyAt(accountKeys, instruction.ProgramIDIndex)
		if !ok {
			continue
		}

		raw.Instructions = append(raw.Instructions, detector.Instruction{
			ProgramID: programID.String(),
			Accounts:  resolveAccounts(instruction.Accounts, accountKeys),
		})

		switch {
		case programID.Equals(SystemProgramID):
			if _, err := parseSystemTransfer(instruction); err == nil {
				isTransfer = true
			}

		case programID.Equals(TokenProgramID) || programID.Equals(Token2022ProgramID):
			if transfer, err := parseTokenTransfer(instruction, accountKeys, tokenAccounts); err == nil {
				raw.TokenTransfers = append(raw.TokenTransfers, transfer)
				isTransfer = true
			}

		case programID.Equals(MemoProgramIDSPL) || programID.Equals(MemoProgramIDLegacy):
			if text := parseMemo(instruction.Data); text != "" {
				memo = text
			}
		}
	}

	if memo != "" {
		raw.Description = &memo
	}
	if isTransfer {
		txType := TransferType
		raw.Type = &txType
	}

	return raw, nil
}

// parseSystemTransfer extracts the lamports from a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction) (uint64, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)
	if len(instruction.Data) < 12 {
		return 0, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return 0, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	return binary.LittleEndian.Uint64(instruction.Data[4:12]), nil
}

// parseTokenTransfer converts an SPL Transfer or TransferChecked instruction
// into a token transfer. Recipient and decimals come from post-token balances
// when the instruction itself does not carry them.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey, tokenAccounts map[solana.PublicKey]tokenAccountInfo) (detector.TokenTransfer, error) {
	if len(instruction.Data) == 0 {
		return detector.TokenTransfer{}, fmt.Errorf("empty instruction data")
	}

	var (
		amount    uint64
		destIndex int
		authIndex int
		mint      *solana.PublicKey
		decimals  *uint8
	)

	switch instruction.Data[0] {
	case TokenProgramTransferInstruction:
		// [0] = type, [1..9] = amount; accounts: [source, destination, authority]
		if len(instruction.Data) < 9 {
			return detector.TokenTransfer{}, fmt.Errorf("transfer instruction data too short")
		}
		if len(instruction.Accounts) < 3 {
			return detector.TokenTransfer{}, fmt.Errorf("transfer missing accounts")
		}
		amount = binary.LittleEndian.Uint64(instruction.Data[1:9])
		destIndex, authIndex = 1, 2

	case TokenProgramTransferCheckedInstruction:
		// [0] = type, [1..9] = amount, [9] = decimals; accounts: [source, mint, destination, authority]
		if len(instruction.Data) < 10 {
			return detector.TokenTransfer{}, fmt.Errorf("transferChecked instruction data too short")
		}
		if len(instruction.Accounts) < 4 {
			return detector.TokenTransfer{}, fmt.Errorf("transferChecked missing accounts")
		}
		amount = binary.LittleEndian.Uint64(instruction.Data[1:9])
		d := instruction.Data[9]
		decimals = &d
		if m, ok := keyAt(accountKeys, instruction.Accounts[1]); ok {
			mint = &m
		}
		destIndex, authIndex = 2, 3

	default:
		return detector.TokenTransfer{}, fmt.Errorf("unknown token instruction type: %d", instruction.Data[0])
	}

	transfer := detector.TokenTransfer{}

	if authority, ok := keyAt(accountKeys, instruction.Accounts[authIndex]); ok {
		from := authority.String()
		transfer.FromUserAccount = &from
	}

	if dest, ok := keyAt(accountKeys, instruction.Accounts[destIndex]); ok {
		if info, ok := tokenAccounts[dest]; ok {
			if info.owner != nil {
				to := info.owner.String()
				transfer.ToUserAccount = &to
			}
			if mint == nil && !info.mint.IsZero() {
				m := info.mint
				mint = &m
			}
			if decimals == nil {
				decimals = info.decimals
			}
		}
	}

	if mint != nil {
		mintStr := mint.String()
		transfer.Mint = &mintStr
	}

	uiAmount := float64(amount)
	if decimals != nil {
		uiAmount = float64(amount) / math.Pow10(int(*decimals))
	}
	transfer.TokenAmount = detector.NewNumber(uiAmount)

	return transfer, nil
}

// tokenAccountsFromMeta indexes post-token balances by token account address.
func tokenAccountsFromMeta(meta *rpc.TransactionMeta, accountKeys []solana.PublicKey) map[solana.PublicKey]tokenAccountInfo {
	accounts := make(map[solana.PublicKey]tokenAccountInfo)
	if meta == nil {
		return accounts
	}

	for _, balance := range meta.PostTokenBalances {
		key, ok := keyAt(accountKeys, balance.AccountIndex)
		if !ok {
			continue
		}
		info := tokenAccountInfo{
			owner: balance.Owner,
			mint:  balance.Mint,
		}
		if balance.UiTokenAmount != nil {
			d := balance.UiTokenAmount.Decimals
			info.decimals = &d
		}
		accounts[key] = info
	}

	return accounts
}

// parseMemo extracts the memo text from a Memo Program instruction.
// Memo data is raw UTF-8; anything else is ignored.
func parseMemo(data []byte) string {
	if len(data) == 0 || !utf8.Valid(data) {
		return ""
	}
	for _, c := range data {
		if c == 0 {
			return ""
		}
	}
	return string(data)
}

// keyAt returns accountKeys[index] if the index is in range.
func keyAt(accountKeys []solana.PublicKey, index uint16) (solana.PublicKey, bool) {
	if int(index) >= len(accountKeys) {
		return solana.PublicKey{}, false
	}
	return accountKeys[index], true
}

// resolveAccounts maps instruction account indexes to base58 addresses.
// Indexes that point into address lookup tables resolve to "" to keep positions stable.
func resolveAccounts(indexes []uint16, accountKeys []solana.PublicKey) []string {
	accounts := make([]string, len(indexes))
	for i, idx := range indexes {
		if key, ok := keyAt(accountKeys, idx); ok {
			accounts[i] = key.String()
		}
	}
	return accounts
}
