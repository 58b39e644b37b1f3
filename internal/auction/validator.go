package auction

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidParameters   = errors.New("invalid bid parameters")
	ErrNotAccepting        = errors.New("no round is open for bids")
	ErrWrongSession        = errors.New("bid targets another session")
	ErrWrongRound          = errors.New("bid targets another round")
	ErrWrongCard           = errors.New("bid targets another card")
	ErrBidTooLow           = errors.New("bid must exceed the current highest bid")
	ErrDuplicateNonce      = errors.New("nonce already used")
	ErrBadSignature        = errors.New("signature does not match bidder")
	ErrInsufficientBalance = errors.New("insufficient chip balance")
	ErrBalanceUnavailable  = errors.New("balance check failed")
)

// maxExact is the largest integer a JSON number carries without loss.
const maxExact = 1 << 53

// BidMessage is the payload a bidder signs. Timestamp and Nonce travel with
// the message but are not part of the signed digest.
type BidMessage struct {
	SessionID float64 `json:"sessionId"`
	Round     float64 `json:"round"`
	CardID    float64 `json:"cardId"`
	Bidder    string  `json:"bidder"`
	Amount    float64 `json:"amount"`
	Timestamp float64 `json:"timestamp"`
	Nonce     float64 `json:"nonce"`
}

type BidRequest struct {
	Message   BidMessage `json:"message"`
	Signature string     `json:"signature"`
}

// Slot is the auction slot a bid is checked against.
type Slot struct {
	SessionID uint64
	Round     int
	CardID    int
	Highest   uint64
	Accepting bool
}

// Bid is a validated bid.
type Bid struct {
	SessionID uint64
	Round     int
	CardID    int
	Bidder    common.Address
	Amount    uint64
	Nonce     uint64
}

type BalanceReader interface {
	Balance(ctx context.Context, player common.Address) (uint64, error)
}

type Validator struct {
	balances BalanceReader
}

func NewValidator(balances BalanceReader) *Validator {
	return &Validator{balances: balances}
}

// Validate authenticates req against slot. The only side effect is one
// ledger balance read, done after every local check has passed.
func (v *Validator) Validate(ctx context.Context, req BidRequest, slot Slot) (Bid, error) {
	bid, err := parseMessage(req.Message)
	if err != nil {
		return Bid{}, err
	}
	if err := checkSlot(bid, slot); err != nil {
		return Bid{}, err
	}
	if err := verifySignature(bid, req.Signature); err != nil {
		return Bid{}, err
	}

	balance, err := v.balances.Balance(ctx, bid.Bidder)
	if err != nil {
		return Bid{}, fmt.Errorf("%w: %v", ErrBalanceUnavailable, err)
	}
	if balance < bid.Amount {
		return Bid{}, fmt.Errorf("balance %d < %d: %w", balance, bid.Amount, ErrInsufficientBalance)
	}
	return bid, nil
}

func checkSlot(bid Bid, slot Slot) error {
	switch {
	case !slot.Accepting:
		return ErrNotAccepting
	case bid.SessionID != slot.SessionID:
		return ErrWrongSession
	case bid.Round != slot.Round:
		return ErrWrongRound
	case bid.CardID != slot.CardID:
		return ErrWrongCard
	case bid.Amount <= slot.Highest:
		return fmt.Errorf("%d <= %d: %w", bid.Amount, slot.Highest, ErrBidTooLow)
	}
	return nil
}

func parseMessage(m BidMessage) (Bid, error) {
	positive := map[string]float64{
		"sessionId": m.SessionID,
		"round":     m.Round,
		"cardId":    m.CardID,
		"amount":    m.Amount,
	}
	for name, v := range positive {
		if !wholeNumber(v) || v <= 0 {
			return Bid{}, fmt.Errorf("%s: %w", name, ErrInvalidParameters)
		}
	}
	for name, v := range map[string]float64{"timestamp": m.Timestamp, "nonce": m.Nonce} {
		if !wholeNumber(v) || v < 0 {
			return Bid{}, fmt.Errorf("%s: %w", name, ErrInvalidParameters)
		}
	}
	if !common.IsHexAddress(m.Bidder) {
		return Bid{}, fmt.Errorf("bidder: %w", ErrInvalidParameters)
	}

	return Bid{
		SessionID: uint64(m.SessionID),
		Round:     int(m.Round),
		CardID:    int(m.CardID),
		Bidder:    common.HexToAddress(m.Bidder),
		Amount:    uint64(m.Amount),
		Nonce:     uint64(m.Nonce),
	}, nil
}

func wholeNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v) && math.Abs(v) <= maxExact
}

// BidDigest is keccak256 over the packed (uint256 sessionId, uint256 round,
// uint256 cardId, address bidder, uint256 amount).
func BidDigest(sessionID uint64, round, cardID int, bidder common.Address, amount uint64) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(uint256(sessionID))
	h.Write(uint256(uint64(round)))
	h.Write(uint256(uint64(cardID)))
	h.Write(bidder.Bytes())
	h.Write(uint256(amount))
	return h.Sum(nil)
}

func uint256(v uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], v)
	return b
}

// verifySignature compares the recovered signer with the parsed bidder, so
// case and a missing 0x prefix in the claimed address do not matter.
func verifySignature(bid Bid, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return fmt.Errorf("malformed signature: %w", ErrBadSignature)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := BidDigest(bid.SessionID, bid.Round, bid.CardID, bid.Bidder, bid.Amount)
	pub, err := crypto.SigToPub(accounts.TextHash(digest), sig)
	if err != nil {
		return fmt.Errorf("recovering signer: %w", ErrBadSignature)
	}
	signer := crypto.PubkeyToAddress(*pub)
	if signer != bid.Bidder {
		return ErrBadSignature
	}
	return nil
}

// SignBid produces the personal-sign signature a wallet would attach to
// msg. Bidder in msg must be key's address for the result to validate.
func SignBid(key *ecdsa.PrivateKey, msg BidMessage) (string, error) {
	bid, err := parseMessage(msg)
	if err != nil {
		return "", err
	}
	digest := BidDigest(bid.SessionID, bid.Round, bid.CardID, bid.Bidder, bid.Amount)
	sig, err := crypto.Sign(accounts.TextHash(digest), key)
	if err != nil {
		return "", fmt.Errorf("signing bid: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
