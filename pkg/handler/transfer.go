package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"fund_transfer_back/models"
	"fund_transfer_back/pkg/service"
)

// Ставит перевод в очередь. Тело: {accountOrigin, accountDestination, value, email?}
func (h *Handler) CreateTransfer(c *gin.Context) {
	var input models.TransferInput
	if err := c.ShouldBindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := h.service.Transfer.CreateTransfer(c.Request.Context(), input)
	if err != nil {
		var inputErr *service.InputError
		if errors.As(err, &inputErr) {
			newErrorResponse(c, http.StatusBadRequest, inputErr.Message)
			return
		}
		logrus.WithError(err).Error("create transfer")
		newErrorResponse(c, http.StatusInternalServerError, "could not queue transfer")
		return
	}

	c.JSON(http.StatusCreated, models.TransactionIDResponse{TransactionID: id})
}

func (h *Handler) GetTransferStatus(c *gin.Context) {
	transactionID := c.Param("transactionId")

	resp, err := h.service.Transfer.GetTransferStatus(c.Request.Context(), transactionID)
	if err != nil {
		var inputErr *service.InputError
		switch {
		case errors.As(err, &inputErr):
			newErrorResponse(c, http.StatusBadRequest, inputErr.Message)
		case errors.Is(err, service.ErrTransferNotFound):
			newErrorResponse(c, http.StatusNotFound, fmt.Sprintf("Transaction '%s' not found", transactionID))
		default:
			logrus.WithError(err).Error("get transfer status")
			newErrorResponse(c, http.StatusInternalServerError, "something went wrong")
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Health(c *gin.Context) {
	wrapOkJSON(c, map[string]interface{}{
		"status": "ok",
	})
}
