package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/access"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/dto"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/factory"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/gateway"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/mapper"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/service"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/types"
)

type apiSubscriptionService interface {
	ListActive(ctx context.Context, caller access.Caller, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error)
	ListDeleted(ctx context.Context, caller access.Caller, ownerID string) ([]*entity.APISubscription, error)
	Get(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error)
	CreateOrUpdate(ctx context.Context, caller access.Caller, id string, payload *service.SubscriptionPayload) (*service.UpsertResult, error)
	Delete(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error)
	RegenerateKey(ctx context.Context, caller access.Caller, id, keyName string) (*entity.APISubscription, error)
}

type callerResolver interface {
	FromHeader(header http.Header) (access.Caller, error)
}

type APISubscriptionController struct {
	subscriptionService apiSubscriptionService
	callers             callerResolver
	logger              logrus.FieldLogger
}

func NewAPISubscriptionController(subscriptionService apiSubscriptionService, callers callerResolver) *APISubscriptionController {
	return &APISubscriptionController{
		subscriptionService: subscriptionService,
		callers:             callers,
		logger:              factory.NewModuleLogger("api-subscriptions-controller"),
	}
}

func (c *APISubscriptionController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

func (c *APISubscriptionController) ListAPISubscriptions(ctx echo.Context) error {
	caller, err := c.callers.FromHeader(ctx.Request().Header)
	if err != nil {
		return c.writeServiceError(ctx, err, "List api subscriptions")
	}
	req, err := types.NewListAPISubscriptionsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, err.Error())
	}

	items, err := c.subscriptionService.ListActive(ctx.Request().Context(), caller, req.GetOwner(), req.GetStatuses())
	if err != nil {
		return c.writeServiceError(ctx, err, "List api subscriptions")
	}

	return ctx.JSON(http.StatusOK, &dto.ListAPISubscriptionsResponse{
		Subscriptions: mapper.APISubscriptionsToResponse(items),
	})
}

func (c *APISubscriptionController) ListDeletedAPISubscriptions(ctx echo.Context) error {
	caller, err := c.callers.FromHeader(ctx.Request().Header)
	if err != nil {
		return c.writeServiceError(ctx, err, "List deleted api subscriptions")
	}
	req, err := types.NewListDeletedAPISubscriptionsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, "invalid query params")
	}

	items, err := c.subscriptionService.ListDeleted(ctx.Request().Context(), caller, req.GetOwner())
	if err != nil {
		return c.writeServiceError(ctx, err, "List deleted api subscriptions")
	}

	return ctx.JSON(http.StatusOK, &dto.ListAPISubscriptionsResponse{
		Subscriptions: mapper.APISubscriptionsToResponse(items),
	})
}

func (c *APISubscriptionController) GetAPISubscription(ctx echo.Context) error {
	caller, err := c.callers.FromHeader(ctx.Request().Header)
	if err != nil {
		return c.writeServiceError(ctx, err, "Get api subscription")
	}
	req, err := types.NewGetAPISubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, err.Error())
	}

	item, err := c.subscriptionService.Get(ctx.Request().Context(), caller, req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Get api subscription")
	}

	return ctx.JSON(http.StatusOK, &dto.APISubscriptionEnvelopeResponse{
		Subscription: mapper.APISubscriptionToResponse(item),
	})
}

func (c *APISubscriptionController) CreateOrUpdateAPISubscription(ctx echo.Context) error {
	caller, err := c.callers.FromHeader(ctx.Request().Header)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create or update api subscription")
	}
	req, err := types.NewCreateOrUpdateAPISubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, err.Error())
	}

	result, err := c.subscriptionService.CreateOrUpdate(ctx.Request().Context(), caller, req.GetId(), req.ServicePayload())
	if err != nil {
		return c.writeServiceError(ctx, err, "Create or update api subscription")
	}

	response := &dto.APISubscriptionEnvelopeResponse{
		Subscription: mapper.APISubscriptionToResponse(result.Subscription),
	}
	if result.Created {
		ctx.Response().Header().Set(echo.HeaderLocation, "/api-subscriptions/"+result.Subscription.ID)
		return ctx.JSON(http.StatusCreated, response)
	}
	return ctx.JSON(http.StatusOK, response)
}

func (c *APISubscriptionController) DeleteAPISubscription(ctx echo.Context) error {
	caller, err := c.callers.FromHeader(ctx.Request().Header)
	if err != nil {
		return c.writeServiceError(ctx, err, "Delete api subscription")
	}
	req, err := types.NewDeleteAPISubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, err.Error())
	}

	item, err := c.subscriptionService.Delete(ctx.Request().Context(), caller, req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Delete api subscription")
	}

	return ctx.JSON(http.StatusOK, &dto.MessageWithAPISubscriptionResponse{
		Message:      "API subscription deleted successfully",
		Subscription: mapper.APISubscriptionToResponse(item),
	})
}

func (c *APISubscriptionController) RegenerateAPISubscriptionKey(ctx echo.Context) error {
	caller, err := c.callers.FromHeader(ctx.Request().Header)
	if err != nil {
		return c.writeServiceError(ctx, err, "Regenerate api subscription key")
	}
	req, err := types.NewRegenerateAPISubscriptionKeyRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, service.KindBadRequest, err.Error())
	}

	item, err := c.subscriptionService.RegenerateKey(ctx.Request().Context(), caller, req.GetId(), req.GetKeyName())
	if err != nil {
		return c.writeServiceError(ctx, err, "Regenerate api subscription key")
	}

	return ctx.JSON(http.StatusOK, &dto.APISubscriptionEnvelopeResponse{
		Subscription: mapper.APISubscriptionToResponse(item),
	})
}

func (c *APISubscriptionController) writeServiceError(ctx echo.Context, err error, operation string) error {
	kind := service.KindOf(err)
	switch kind {
	case service.KindBadRequest:
		return c.writeError(ctx, http.StatusBadRequest, kind, err.Error())
	case service.KindUnauthenticated:
		return c.writeError(ctx, http.StatusUnauthorized, kind, err.Error())
	case service.KindForbidden:
		return c.writeError(ctx, http.StatusForbidden, kind, "forbidden")
	case service.KindNotFound:
		return c.writeError(ctx, http.StatusNotFound, kind, err.Error())
	case service.KindConflict:
		return c.writeError(ctx, http.StatusConflict, kind, err.Error())
	}

	logger := factory.LoggerWithContext(c.logger, ctx).WithError(err)
	if kind == service.KindFatal {
		logger.Error(operation + " hit a store integrity violation")
		return c.writeError(ctx, http.StatusInternalServerError, kind, "internal server error")
	}
	logger.Error(operation + " failed")
	if errors.Is(err, gateway.ErrGatewayFailure) || errors.Is(err, service.ErrDivergence) {
		return c.writeError(ctx, http.StatusInternalServerError, kind, err.Error())
	}
	return c.writeError(ctx, http.StatusInternalServerError, kind, "internal server error")
}

func (c *APISubscriptionController) writeError(ctx echo.Context, statusCode int, kind service.Kind, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message, Kind: string(kind)})
}
