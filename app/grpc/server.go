package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/access"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/dto"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/gateway"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/mapper"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/service"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
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
	FromMetadata(ctx context.Context) (access.Caller, error)
}

type Server struct {
	subscriptionService apiSubscriptionService
	callers             callerResolver
}

var _ APISubscriptionsServer = (*Server)(nil)

func NewServer(subscriptionService apiSubscriptionService, callers callerResolver) *Server {
	return &Server{subscriptionService: subscriptionService, callers: callers}
}

func (s *Server) ListAPISubscriptions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.callers.FromMetadata(ctx)
	if err != nil {
		return nil, toStatus(ctx, err, "List api subscriptions")
	}
	var req types.ListAPISubscriptionsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	items, err := s.subscriptionService.ListActive(ctx, caller, strings.TrimSpace(req.GetOwner()), req.GetStatuses())
	if err != nil {
		return nil, toStatus(ctx, err, "List api subscriptions")
	}
	return encodeResponse(&dto.ListAPISubscriptionsResponse{Subscriptions: mapper.APISubscriptionsToResponse(items)})
}

func (s *Server) ListDeletedAPISubscriptions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.callers.FromMetadata(ctx)
	if err != nil {
		return nil, toStatus(ctx, err, "List deleted api subscriptions")
	}
	var req types.ListDeletedAPISubscriptionsRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}

	items, err := s.subscriptionService.ListDeleted(ctx, caller, strings.TrimSpace(req.GetOwner()))
	if err != nil {
		return nil, toStatus(ctx, err, "List deleted api subscriptions")
	}
	return encodeResponse(&dto.ListAPISubscriptionsResponse{Subscriptions: mapper.APISubscriptionsToResponse(items)})
}

func (s *Server) GetAPISubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.callers.FromMetadata(ctx)
	if err != nil {
		return nil, toStatus(ctx, err, "Get api subscription")
	}
	var req types.GetAPISubscriptionRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptionService.Get(ctx, caller, strings.TrimSpace(req.GetId()))
	if err != nil {
		return nil, toStatus(ctx, err, "Get api subscription")
	}
	return encodeResponse(&dto.APISubscriptionEnvelopeResponse{Subscription: mapper.APISubscriptionToResponse(item)})
}

func (s *Server) CreateOrUpdateAPISubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.callers.FromMetadata(ctx)
	if err != nil {
		return nil, toStatus(ctx, err, "Create or update api subscription")
	}
	var req types.CreateOrUpdateAPISubscriptionRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.subscriptionService.CreateOrUpdate(ctx, caller, strings.TrimSpace(req.GetId()), req.ServicePayload())
	if err != nil {
		return nil, toStatus(ctx, err, "Create or update api subscription")
	}
	return encodeResponse(&createOrUpdateResponse{
		Subscription: mapper.APISubscriptionToResponse(result.Subscription),
		Created:      result.Created,
	})
}

func (s *Server) DeleteAPISubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.callers.FromMetadata(ctx)
	if err != nil {
		return nil, toStatus(ctx, err, "Delete api subscription")
	}
	var req types.DeleteAPISubscriptionRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptionService.Delete(ctx, caller, strings.TrimSpace(req.GetId()))
	if err != nil {
		return nil, toStatus(ctx, err, "Delete api subscription")
	}
	return encodeResponse(&dto.MessageWithAPISubscriptionResponse{
		Message:      "API subscription deleted successfully",
		Subscription: mapper.APISubscriptionToResponse(item),
	})
}

func (s *Server) RegenerateAPISubscriptionKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := s.callers.FromMetadata(ctx)
	if err != nil {
		return nil, toStatus(ctx, err, "Regenerate api subscription key")
	}
	var req types.RegenerateAPISubscriptionKeyRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptionService.RegenerateKey(ctx, caller, strings.TrimSpace(req.GetId()), strings.TrimSpace(req.GetKeyName()))
	if err != nil {
		return nil, toStatus(ctx, err, "Regenerate api subscription key")
	}
	return encodeResponse(&dto.APISubscriptionEnvelopeResponse{Subscription: mapper.APISubscriptionToResponse(item)})
}

type createOrUpdateResponse struct {
	Subscription *dto.APISubscriptionResponse `json:"subscription"`
	Created      bool                         `json:"created"`
}

func decodeRequest(in *structpb.Struct, target interface{}) error {
	if in == nil {
		return nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request")
	}
	return nil
}

func encodeResponse(payload interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

func toStatus(ctx context.Context, err error, operation string) error {
	kind := service.KindOf(err)
	switch kind {
	case service.KindBadRequest:
		return status.Error(codes.InvalidArgument, err.Error())
	case service.KindUnauthenticated:
		return status.Error(codes.Unauthenticated, err.Error())
	case service.KindForbidden:
		return status.Error(codes.PermissionDenied, "forbidden")
	case service.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case service.KindConflict:
		return status.Error(codes.AlreadyExists, err.Error())
	}

	l := loggerWithContext(ctx).WithError(err)
	if kind == service.KindFatal {
		l.Error(operation + " hit a store integrity violation")
		return status.Error(codes.DataLoss, "internal server error")
	}
	l.Error(operation + " failed")
	if errors.Is(err, gateway.ErrGatewayFailure) || errors.Is(err, service.ErrDivergence) {
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}
