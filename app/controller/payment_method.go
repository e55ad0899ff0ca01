package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/factory"
	"github.com/wali-delivery/ms-go-payments/app/mapper"
	"github.com/wali-delivery/ms-go-payments/app/service"
	"github.com/wali-delivery/ms-go-payments/app/types"
)

type PaymentMethodController struct {
	methodService *service.PaymentMethodService
	logger        logrus.FieldLogger
}

func NewPaymentMethodController(methodService *service.PaymentMethodService) *PaymentMethodController {
	return &PaymentMethodController{
		methodService: methodService,
		logger:        factory.NewModuleLogger("payment-methods-controller"),
	}
}

func (c *PaymentMethodController) Create(ctx echo.Context) error {
	req, err := types.NewCreatePaymentMethodRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.methodService.CreatePaymentMethod(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrMethodAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).Error("Create payment method failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.PaymentMethodEnvelopeResponse{PaymentMethod: mapper.PaymentMethodToView(item)})
}

func (c *PaymentMethodController) List(ctx echo.Context) error {
	userID := strings.TrimSpace(ctx.QueryParam("user_id"))

	items, err := c.methodService.ListPaymentMethods(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("List payment methods failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentMethodsResponse{PaymentMethods: mapper.PaymentMethodsToView(items)})
}

func (c *PaymentMethodController) SetDefault(ctx echo.Context) error {
	methodID := strings.TrimSpace(ctx.Param("id"))
	userID := strings.TrimSpace(ctx.QueryParam("user_id"))

	err := c.methodService.SetDefaultPaymentMethod(ctx.Request().Context(), userID, methodID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentMethodNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment method not found")
		default:
			c.logger.WithError(err).Error("Set default payment method failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Default payment method updated"})
}

func (c *PaymentMethodController) Delete(ctx echo.Context) error {
	methodID := strings.TrimSpace(ctx.Param("id"))
	userID := strings.TrimSpace(ctx.QueryParam("user_id"))

	err := c.methodService.DeletePaymentMethod(ctx.Request().Context(), userID, methodID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentMethodNotFound):
			return c.writeError(ctx, http.StatusNotFound, "payment method not found")
		default:
			c.logger.WithError(err).Error("Delete payment method failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Payment method deleted"})
}

func (c *PaymentMethodController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
