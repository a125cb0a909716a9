package etl

import (
	"strings"

	"github.com/oakfund/fundcore-backend/internal/domain"
)

// Canonical subcategories
const (
	SubcategoryStockBuy   = "Stock Buy"
	SubcategoryStockSell  = "Stock Sell"
	SubcategoryOptionCall = "Option Call"
	SubcategoryOptionPut  = "Option Put"
	SubcategoryDeposit    = "Deposit"
	SubcategoryWithdrawal = "Withdrawal"
	SubcategoryDividend   = "Dividend"
	SubcategoryInterest   = "Interest"
	SubcategoryCommission = "Commission"
	SubcategoryRegulatory = "Regulatory Fee"
	SubcategoryUnknown    = "Unknown"
)

// MapCategory maps a brokerage's native type/subtype vocabulary into the
// canonical taxonomy. Pure function of the raw type strings. Unmappable
// combinations fall into OTHER rather than failing, and ok=false flags
// the row for manual review.
func MapCategory(transactionType, transactionSubtype string) (category domain.TradeCategory, subcategory string, ok bool) {
	t := strings.ToLower(strings.TrimSpace(transactionType))
	st := strings.ToLower(strings.TrimSpace(transactionSubtype))

	switch t {
	case "trade", "buy", "sell", "order":
		return mapTrade(t, st)
	case "option", "option_trade":
		return mapOption(st)
	case "transfer", "ach", "wire", "journal":
		switch st {
		case "deposit", "incoming", "in", "ach_in", "":
			return domain.TradeCategoryTransfer, SubcategoryDeposit, true
		case "withdrawal", "outgoing", "out", "ach_out":
			return domain.TradeCategoryTransfer, SubcategoryWithdrawal, true
		}
	case "deposit", "contribution":
		return domain.TradeCategoryTransfer, SubcategoryDeposit, true
	case "withdrawal", "distribution":
		return domain.TradeCategoryTransfer, SubcategoryWithdrawal, true
	case "dividend", "div":
		return domain.TradeCategoryIncome, SubcategoryDividend, true
	case "interest", "int":
		return domain.TradeCategoryIncome, SubcategoryInterest, true
	case "income":
		switch st {
		case "dividend", "div":
			return domain.TradeCategoryIncome, SubcategoryDividend, true
		case "interest", "int":
			return domain.TradeCategoryIncome, SubcategoryInterest, true
		}
	case "fee", "fees", "charge":
		switch st {
		case "commission":
			return domain.TradeCategoryFee, SubcategoryCommission, true
		case "regulatory", "sec", "taf":
			return domain.TradeCategoryFee, SubcategoryRegulatory, true
		default:
			return domain.TradeCategoryFee, SubcategoryUnknown, true
		}
	case "commission":
		return domain.TradeCategoryFee, SubcategoryCommission, true
	}

	return domain.TradeCategoryOther, SubcategoryUnknown, false
}

func mapTrade(t, st string) (domain.TradeCategory, string, bool) {
	side := st
	if t == "buy" || t == "sell" {
		side = t
	}

	switch side {
	case "buy", "stock_buy", "equity_buy":
		return domain.TradeCategoryTrade, SubcategoryStockBuy, true
	case "sell", "stock_sell", "equity_sell":
		return domain.TradeCategoryTrade, SubcategoryStockSell, true
	case "call", "option_call":
		return domain.TradeCategoryTrade, SubcategoryOptionCall, true
	case "put", "option_put":
		return domain.TradeCategoryTrade, SubcategoryOptionPut, true
	}

	return domain.TradeCategoryOther, SubcategoryUnknown, false
}

func mapOption(st string) (domain.TradeCategory, string, bool) {
	switch st {
	case "call", "buy_call", "sell_call":
		return domain.TradeCategoryTrade, SubcategoryOptionCall, true
	case "put", "buy_put", "sell_put":
		return domain.TradeCategoryTrade, SubcategoryOptionPut, true
	}
	return domain.TradeCategoryOther, SubcategoryUnknown, false
}
