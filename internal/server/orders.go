package server

import (
	"net/http"

	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListOrders(c *gin.Context) {
	m := currentMerchant(c)
	orders, err := s.orderSvc.List(c.Request.Context(), m.ID, 100)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// GetOrderInvoice returns the latest snapshot for an order,
// materializing one on first read.
func (s *Server) GetOrderInvoice(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	m := currentMerchant(c)
	if _, err := s.orderSvc.GetByID(c.Request.Context(), m.ID, orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.LatestForOrder(c.Request.Context(), m.ID, orderID)
	if err == invoicedomain.ErrInvoiceNotFound {
		if _, merr := s.invoiceSvc.Materialize(c.Request.Context(), orderID); merr != nil {
			AbortWithError(c, merr)
			return
		}
		inv, err = s.invoiceSvc.LatestForOrder(c.Request.Context(), m.ID, orderID)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// RegenerateOrderInvoice issues a fresh snapshot from the order's
// current state.
func (s *Server) RegenerateOrderInvoice(c *gin.Context) {
	orderID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	m := currentMerchant(c)
	if _, err := s.orderSvc.GetByID(c.Request.Context(), m.ID, orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	inv, err := s.invoiceSvc.Regenerate(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}
