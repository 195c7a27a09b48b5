package types

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/service"
)

var errInvalidID = errors.New("invalid api subscription id")

func NewListAPISubscriptionsRequestFromContext(ctx echo.Context) (*ListAPISubscriptionsRequest, error) {
	return &ListAPISubscriptionsRequest{
		Owner:  strings.TrimSpace(ctx.QueryParam("owner")),
		Status: strings.TrimSpace(ctx.QueryParam("status")),
	}, nil
}

func (r *ListAPISubscriptionsRequest) Validate() error {
	return nil
}

func NewListDeletedAPISubscriptionsRequestFromContext(ctx echo.Context) (*ListDeletedAPISubscriptionsRequest, error) {
	return &ListDeletedAPISubscriptionsRequest{Owner: strings.TrimSpace(ctx.QueryParam("owner"))}, nil
}

func (r *ListDeletedAPISubscriptionsRequest) Validate() error {
	return nil
}

func NewGetAPISubscriptionRequestFromContext(ctx echo.Context) (*GetAPISubscriptionRequest, error) {
	return &GetAPISubscriptionRequest{Id: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *GetAPISubscriptionRequest) Validate() error {
	return validateID(r.GetId())
}

// NewCreateOrUpdateAPISubscriptionRequestFromContext leaves Subscription nil
// when the body is empty so the service can reject the missing payload.
func NewCreateOrUpdateAPISubscriptionRequestFromContext(ctx echo.Context) (*CreateOrUpdateAPISubscriptionRequest, error) {
	req := &CreateOrUpdateAPISubscriptionRequest{Id: strings.TrimSpace(ctx.Param("id"))}
	if ctx.Request().ContentLength == 0 {
		return req, nil
	}

	var body APISubscriptionPayload
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &body); err != nil {
		return nil, err
	}
	req.Subscription = &body
	return req, nil
}

func (r *CreateOrUpdateAPISubscriptionRequest) Validate() error {
	return validateID(r.GetId())
}

// ServicePayload converts the wire payload; a missing payload stays nil.
func (r *CreateOrUpdateAPISubscriptionRequest) ServicePayload() *service.SubscriptionPayload {
	body := r.GetSubscription()
	if body == nil {
		return nil
	}
	return &service.SubscriptionPayload{
		ID:             strings.TrimSpace(body.Id),
		Name:           strings.TrimSpace(body.Name),
		ProductName:    strings.TrimSpace(body.ProductName),
		DeploymentName: strings.TrimSpace(body.DeploymentName),
		OwnerID:        strings.TrimSpace(body.OwnerId),
		Status:         strings.TrimSpace(body.Status),
	}
}

func NewDeleteAPISubscriptionRequestFromContext(ctx echo.Context) (*DeleteAPISubscriptionRequest, error) {
	return &DeleteAPISubscriptionRequest{Id: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *DeleteAPISubscriptionRequest) Validate() error {
	return validateID(r.GetId())
}

func NewRegenerateAPISubscriptionKeyRequestFromContext(ctx echo.Context) (*RegenerateAPISubscriptionKeyRequest, error) {
	var body struct {
		KeyName string `json:"key_name"`
	}
	if ctx.Request().ContentLength != 0 {
		if err := (&echo.DefaultBinder{}).BindBody(ctx, &body); err != nil {
			return nil, err
		}
	}
	return &RegenerateAPISubscriptionKeyRequest{
		Id:      strings.TrimSpace(ctx.Param("id")),
		KeyName: strings.TrimSpace(body.KeyName),
	}, nil
}

func (r *RegenerateAPISubscriptionKeyRequest) Validate() error {
	if err := validateID(r.GetId()); err != nil {
		return err
	}
	if strings.TrimSpace(r.GetKeyName()) == "" {
		return errors.New("key_name is required")
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return errInvalidID
	}
	return nil
}
