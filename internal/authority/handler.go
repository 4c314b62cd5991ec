package authority

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/roach88/posync/internal/pos"
)

// handler holds the ledger and implements the authority's HTTP handlers.
type handler struct {
	ledger Ledger
	logger *zap.Logger
}

// pricesRequest is the body of POST /prices.
// Prices may be JSON numbers or decimal strings.
type pricesRequest struct {
	Date   string                     `json:"date"`
	Prices map[string]decimal.Decimal `json:"prices"`
}

// handleSetPrices handles POST /prices.
func (h *handler) handleSetPrices(c *gin.Context) {
	var req pricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind prices request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	sheet, err := req.toSheet()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ledger.SavePrices(sheet); err != nil {
		h.logger.Error("failed to save prices", zap.String("date", req.Date), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("prices saved", zap.String("date", req.Date))
	c.JSON(http.StatusOK, gin.H{"message": "Prices saved successfully"})
}

// toSheet validates the request. The authority only accepts strictly
// positive prices, unlike the client store which also allows zero.
func (r pricesRequest) toSheet() (pos.PriceSheet, error) {
	if r.Date == "" {
		return pos.PriceSheet{}, errors.New("Date is required")
	}
	date, err := pos.ParseDate(r.Date)
	if err != nil {
		return pos.PriceSheet{}, fmt.Errorf("Invalid date %q", r.Date)
	}
	if len(r.Prices) == 0 {
		return pos.PriceSheet{}, errors.New("Prices are required")
	}

	prices := make(map[pos.ItemKind]decimal.Decimal, len(r.Prices))
	for name, price := range r.Prices {
		item := pos.ItemKind(name)
		if !item.Valid() {
			return pos.PriceSheet{}, fmt.Errorf("Unknown item %s", name)
		}
		if !price.IsPositive() {
			return pos.PriceSheet{}, fmt.Errorf("Invalid price for %s", name)
		}
		prices[item] = price
	}
	return pos.PriceSheet{Date: date, Prices: prices}, nil
}

// handleSync handles POST /sync.
func (h *handler) handleSync(c *gin.Context) {
	var sale pos.SaleRecord
	if err := c.ShouldBindJSON(&sale); err != nil {
		h.logger.Warn("failed to bind sale", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if sale.Ref == "" {
		sale.Ref = c.GetHeader("Idempotency-Key")
	}
	if sale.Ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ref is required"})
		return
	}
	if err := pos.ValidateSale(sale); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.ledger.RecordSale(sale)
	if err != nil {
		h.logger.Error("failed to record sale", zap.String("ref", sale.Ref), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if created {
		h.logger.Info("sale recorded",
			zap.String("ref", sale.Ref),
			zap.String("type", string(sale.TransactionType)),
			zap.Stringer("total", sale.Total))
	} else {
		h.logger.Info("duplicate sale ignored", zap.String("ref", sale.Ref))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleHealth handles GET /health, the connectivity probe target.
func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
