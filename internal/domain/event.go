package domain

import (
	"encoding/json"
	"time"
)

// Block reference delivered with every raw event
type Block struct {
	Height    uint64    `json:"height"`
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// Raw event from the block source; Args is the already-parsed structured record for SpecVersion
type RawEvent struct {
	ID          string          `json:"id"`   // stable event id, used as record id
	Name        string          `json:"name"` // pallet.Event, e.g. "loans.Borrowed"
	SpecVersion uint32          `json:"spec_version"`
	Block       Block           `json:"block"`
	Args        json.RawMessage `json:"args"`
}

// Denormalized height embedded in every emitted record
type Height struct {
	Absolute  uint64 `json:"absolute"`
	Parachain uint64 `json:"parachain"`
}

// Event names understood by the decoder
const (
	EventNewMarket          = "loans.NewMarket"
	EventUpdatedMarket      = "loans.UpdatedMarket"
	EventActivatedMarket    = "loans.ActivatedMarket"
	EventBorrowed           = "loans.Borrowed"
	EventDepositCollateral  = "loans.DepositCollateral"
	EventWithdrawCollateral = "loans.WithdrawCollateral"
	EventDeposited          = "loans.Deposited"
	EventRepaidBorrow       = "loans.RepaidBorrow"
	EventRedeemed           = "loans.Redeemed"
	EventInterestAccrued    = "loans.InterestAccrued"
	EventAssetSwap          = "dexGeneral.AssetSwap"
	EventCurrencyExchange   = "dexStable.CurrencyExchange"
)
