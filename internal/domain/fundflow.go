package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlowType represents the direction of an investor cash movement
type FlowType string

const (
	FlowTypeContribution FlowType = "CONTRIBUTION"
	FlowTypeWithdrawal   FlowType = "WITHDRAWAL"
)

// FlowStatus represents the lifecycle state of a fund flow request
// Requests progress pending -> matched -> processed, or -> rejected.
// Only a matched request may be processed: matching means an external
// reconciliation step confirmed the cash actually settled.
type FlowStatus string

const (
	FlowStatusPending   FlowStatus = "PENDING"
	FlowStatusMatched   FlowStatus = "MATCHED"
	FlowStatusProcessed FlowStatus = "PROCESSED"
	FlowStatusRejected  FlowStatus = "REJECTED"
)

// FundFlowRequest is the lifecycle record for an investor-initiated cash
// movement. Created by the external intake step; consumed exactly once by
// the share ledger, which transitions it to PROCESSED and stamps the
// linkage fields.
type FundFlowRequest struct {
	ID              uuid.UUID
	InvestorID      uuid.UUID
	FlowType        FlowType
	Status          FlowStatus
	RequestedAmount decimal.Decimal
	ActualAmount    decimal.Decimal // Settled amount confirmed by matching; zero until matched
	SettlementDate  time.Time

	// Stamped when processed
	SharesTransacted decimal.Decimal
	NAVPerShare      decimal.Decimal
	TransactionID    *uuid.UUID
	RealizedGain     decimal.Decimal
	TaxWithheld      decimal.Decimal
	NetProceeds      decimal.Decimal

	RejectReason string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// Validate ensures the request adheres to domain rules
func (r *FundFlowRequest) Validate() error {
	if r.InvestorID == uuid.Nil {
		return errors.New("fund flow request investor id cannot be empty")
	}

	if r.FlowType != FlowTypeContribution && r.FlowType != FlowTypeWithdrawal {
		return errors.New("fund flow type must be CONTRIBUTION or WITHDRAWAL")
	}

	switch r.Status {
	case FlowStatusPending, FlowStatusMatched, FlowStatusProcessed, FlowStatusRejected:
	default:
		return errors.New("unknown fund flow status: " + string(r.Status))
	}

	if !r.RequestedAmount.IsPositive() {
		return errors.New("requested amount must be positive")
	}

	return nil
}

// SettledAmount returns the amount to transact: the matched actual amount
// when present, otherwise the requested amount.
func (r *FundFlowRequest) SettledAmount() decimal.Decimal {
	if r.ActualAmount.IsPositive() {
		return r.ActualAmount
	}
	return r.RequestedAmount
}

// Processable reports whether the share ledger may act on this request.
// The MATCHED -> PROCESSED transition is the sole gate against double
// processing.
func (r *FundFlowRequest) Processable() error {
	switch r.Status {
	case FlowStatusMatched:
		return nil
	case FlowStatusPending:
		return errors.New("fund flow request has not been matched to settled cash")
	case FlowStatusProcessed:
		return ErrAlreadyProcessed
	case FlowStatusRejected:
		return errors.New("fund flow request was rejected")
	default:
		return errors.New("unknown fund flow status: " + string(r.Status))
	}
}
