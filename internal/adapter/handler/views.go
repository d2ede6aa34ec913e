package handler

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/rl1809/vending/internal/core/domain"
	"github.com/rl1809/vending/internal/core/service"
)

type ItemView struct {
	Position int             `json:"position"`
	Code     string          `json:"code"`
	Name     string          `json:"name,omitempty"`
	Count    int             `json:"count"`
	Price    decimal.Decimal `json:"price"`
}

type named interface {
	Name() string
}

func newItemView(pos int, item domain.Item) ItemView {
	view := ItemView{
		Position: pos,
		Code:     item.Code(),
		Count:    item.Count(),
		Price:    item.Price(),
	}
	if n, ok := item.(named); ok {
		view.Name = n.Name()
	}
	return view
}

func changePtr(change decimal.NullDecimal) *decimal.Decimal {
	if !change.Valid {
		return nil
	}
	return &change.Decimal
}

// classify maps a service error to an HTTP status and a client message.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidPosition):
		return http.StatusNotFound, "invalid position"
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusGone, "unavailable"
	case errors.Is(err, service.ErrCashNotSupported):
		return http.StatusUnprocessableEntity, "cash not supported"
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid amount"
	case errors.Is(err, service.ErrTransactionFailed):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, service.ErrDispenseFailed):
		if errors.Is(err, service.ErrReversalFailed) {
			return http.StatusInternalServerError, "dispense failed, refund pending"
		}
		return http.StatusInternalServerError, "dispense failed, payment refunded"
	case errors.Is(err, service.ErrNoTransaction):
		return http.StatusConflict, "no transaction"
	case errors.Is(err, service.ErrAlreadySettled):
		return http.StatusConflict, "nothing to cancel"
	case errors.Is(err, service.ErrReversalFailed):
		return http.StatusBadGateway, "reversal failed"
	case errors.Is(err, service.ErrSlotUnavailable):
		return http.StatusConflict, "slot unavailable"
	case errors.Is(err, service.ErrUnknownItem):
		return http.StatusNotFound, "unknown item"
	}
	return http.StatusInternalServerError, "internal error"
}

// chargeFree reports whether a failed purchase left no charge behind, so its
// request id may be reused.
func chargeFree(err error) bool {
	return errors.Is(err, service.ErrTransactionFailed) ||
		errors.Is(err, service.ErrInvalidPosition) ||
		errors.Is(err, service.ErrUnavailable)
}
