package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/access"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/gateway"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/service"
)

const testID = "5f0c3a52-8a3b-4f43-9d6e-3f1b2a7c9e10"

type controllerService struct {
	listActiveFn     func(ctx context.Context, caller access.Caller, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error)
	listDeletedFn    func(ctx context.Context, caller access.Caller, ownerID string) ([]*entity.APISubscription, error)
	getFn            func(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error)
	createOrUpdateFn func(ctx context.Context, caller access.Caller, id string, payload *service.SubscriptionPayload) (*service.UpsertResult, error)
	deleteFn         func(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error)
	regenerateKeyFn  func(ctx context.Context, caller access.Caller, id, keyName string) (*entity.APISubscription, error)
}

func (s *controllerService) ListActive(ctx context.Context, caller access.Caller, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error) {
	if s.listActiveFn != nil {
		return s.listActiveFn(ctx, caller, ownerID, statuses)
	}
	return nil, nil
}

func (s *controllerService) ListDeleted(ctx context.Context, caller access.Caller, ownerID string) ([]*entity.APISubscription, error) {
	if s.listDeletedFn != nil {
		return s.listDeletedFn(ctx, caller, ownerID)
	}
	return nil, nil
}

func (s *controllerService) Get(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error) {
	if s.getFn != nil {
		return s.getFn(ctx, caller, id)
	}
	return nil, service.ErrSubscriptionNotFound
}

func (s *controllerService) CreateOrUpdate(ctx context.Context, caller access.Caller, id string, payload *service.SubscriptionPayload) (*service.UpsertResult, error) {
	if s.createOrUpdateFn != nil {
		return s.createOrUpdateFn(ctx, caller, id, payload)
	}
	return nil, service.ErrInvalidRequest
}

func (s *controllerService) Delete(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, caller, id)
	}
	return nil, service.ErrSubscriptionNotFound
}

func (s *controllerService) RegenerateKey(ctx context.Context, caller access.Caller, id, keyName string) (*entity.APISubscription, error) {
	if s.regenerateKeyFn != nil {
		return s.regenerateKeyFn(ctx, caller, id, keyName)
	}
	return nil, service.ErrSubscriptionNotFound
}

func newControllerForTest(svc *controllerService) *APISubscriptionController {
	return NewAPISubscriptionController(svc, access.NewResolver("admin"))
}

func newRequestContext(method, target, body string, callerID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if callerID != "" {
		req.Header.Set(access.HeaderCallerID, callerID)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func sampleSubscription() *entity.APISubscription {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &entity.APISubscription{
		ID:             testID,
		ProductName:    "vision",
		DeploymentName: "basic",
		OwnerID:        "alice",
		Status:         lifecycle.StatusPendingFulfillmentStart,
		PrimaryKey:     "p",
		SecondaryKey:   "s",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	return body.Error, body.Kind
}

func TestMissingCallerIsUnauthorized(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{})
	ctx, rec := newRequestContext(http.MethodGet, "/api-subscriptions", "", "")

	if err := ctrl.ListAPISubscriptions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListAPISubscriptionsPassesFilters(t *testing.T) {
	var gotCaller access.Caller
	var gotOwner string
	var gotStatuses []lifecycle.Status
	ctrl := newControllerForTest(&controllerService{listActiveFn: func(_ context.Context, caller access.Caller, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error) {
		gotCaller, gotOwner, gotStatuses = caller, ownerID, statuses
		return []*entity.APISubscription{sampleSubscription()}, nil
	}})
	ctx, rec := newRequestContext(http.MethodGet, "/api-subscriptions?owner=alice&status=Suspended", "", "alice")
	ctx.Request().Header.Set(access.HeaderCallerRoles, "reader, admin")

	_ = ctrl.ListAPISubscriptions(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !gotCaller.Admin || gotOwner != "alice" || len(gotStatuses) != 1 || gotStatuses[0] != lifecycle.StatusSuspended {
		t.Fatalf("unexpected filters: %+v %q %v", gotCaller, gotOwner, gotStatuses)
	}

	var body struct {
		Subscriptions []struct {
			ID          string `json:"id"`
			CreatedTime string `json:"created_time"`
		} `json:"subscriptions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(body.Subscriptions) != 1 || body.Subscriptions[0].ID != testID || body.Subscriptions[0].CreatedTime == "" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestListDeletedForbidden(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{listDeletedFn: func(context.Context, access.Caller, string) ([]*entity.APISubscription, error) {
		return nil, access.ErrForbidden
	}})
	ctx, rec := newRequestContext(http.MethodGet, "/deleted-api-subscriptions", "", "alice")

	_ = ctrl.ListDeletedAPISubscriptions(ctx)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if _, kind := decodeError(t, rec); kind != string(service.KindForbidden) {
		t.Fatalf("unexpected kind: %s", kind)
	}
}

func TestGetAPISubscriptionInvalidID(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{})
	ctx, rec := newRequestContext(http.MethodGet, "/api-subscriptions/9", "", "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues("9")

	_ = ctrl.GetAPISubscription(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetAPISubscriptionNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{})
	ctx, rec := newRequestContext(http.MethodGet, "/api-subscriptions/"+testID, "", "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.GetAPISubscription(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateOrUpdateCreatedReturns201(t *testing.T) {
	var gotPayload *service.SubscriptionPayload
	ctrl := newControllerForTest(&controllerService{createOrUpdateFn: func(_ context.Context, _ access.Caller, id string, payload *service.SubscriptionPayload) (*service.UpsertResult, error) {
		gotPayload = payload
		return &service.UpsertResult{Subscription: sampleSubscription(), Created: true}, nil
	}})
	body := fmt.Sprintf(`{"id":%q,"product_name":"vision","deployment_name":"basic","owner_id":"alice"}`, testID)
	ctx, rec := newRequestContext(http.MethodPut, "/api-subscriptions/"+testID, body, "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.CreateOrUpdateAPISubscription(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderLocation) != "/api-subscriptions/"+testID {
		t.Fatalf("unexpected location: %q", rec.Header().Get(echo.HeaderLocation))
	}
	if gotPayload == nil || gotPayload.DeploymentName != "basic" {
		t.Fatalf("unexpected payload: %+v", gotPayload)
	}
}

func TestCreateOrUpdateUpdatedReturns200(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{createOrUpdateFn: func(context.Context, access.Caller, string, *service.SubscriptionPayload) (*service.UpsertResult, error) {
		return &service.UpsertResult{Subscription: sampleSubscription()}, nil
	}})
	body := fmt.Sprintf(`{"id":%q,"product_name":"vision","deployment_name":"pro"}`, testID)
	ctx, rec := newRequestContext(http.MethodPut, "/api-subscriptions/"+testID, body, "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.CreateOrUpdateAPISubscription(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateOrUpdateBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{})
	ctx, rec := newRequestContext(http.MethodPut, "/api-subscriptions/"+testID, "{bad", "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.CreateOrUpdateAPISubscription(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateOrUpdateServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind service.Kind
	}{
		{fmt.Errorf("%w: basic", service.ErrSamePlan), http.StatusConflict, service.KindConflict},
		{service.ErrImmutableField, http.StatusBadRequest, service.KindBadRequest},
		{&gateway.ResponseError{Method: "PUT", StatusCode: 500, Body: "apim exploded"}, http.StatusInternalServerError, service.KindServerError},
		{service.ErrIntegrityViolation, http.StatusInternalServerError, service.KindFatal},
	}

	for _, tc := range cases {
		ctrl := newControllerForTest(&controllerService{createOrUpdateFn: func(context.Context, access.Caller, string, *service.SubscriptionPayload) (*service.UpsertResult, error) {
			return nil, tc.err
		}})
		ctx, rec := newRequestContext(http.MethodPut, "/api-subscriptions/"+testID, `{"id":"x"}`, "alice")
		ctx.SetParamNames("id")
		ctx.SetParamValues(testID)

		_ = ctrl.CreateOrUpdateAPISubscription(ctx)
		if rec.Code != tc.code {
			t.Fatalf("expected %d for %v, got %d", tc.code, tc.err, rec.Code)
		}
		message, kind := decodeError(t, rec)
		if kind != string(tc.kind) {
			t.Fatalf("expected kind %s, got %s", tc.kind, kind)
		}
		if tc.kind == service.KindServerError && message != tc.err.Error() {
			t.Fatalf("expected gateway body in message, got %q", message)
		}
		if tc.kind == service.KindFatal && message != "internal server error" {
			t.Fatalf("expected generic message, got %q", message)
		}
	}
}

func TestDeleteAPISubscriptionSuccess(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{deleteFn: func(_ context.Context, _ access.Caller, id string) (*entity.APISubscription, error) {
		item := sampleSubscription()
		item.Status = lifecycle.StatusUnsubscribed
		return item, nil
	}})
	ctx, rec := newRequestContext(http.MethodDelete, "/api-subscriptions/"+testID, "", "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.DeleteAPISubscription(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Subscription struct {
			Status string `json:"status"`
		} `json:"subscription"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body.Subscription.Status != "Unsubscribed" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestRegenerateKeyRequiresKeyName(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{})
	ctx, rec := newRequestContext(http.MethodPost, "/api-subscriptions/"+testID+"/regenerate-key", `{}`, "ops")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.RegenerateAPISubscriptionKey(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegenerateKeyNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{regenerateKeyFn: func(_ context.Context, _ access.Caller, id, keyName string) (*entity.APISubscription, error) {
		if keyName != "primaryKey" {
			t.Fatalf("unexpected key name: %s", keyName)
		}
		return nil, fmt.Errorf("%w: api subscription %s doesn't exist or you don't have permission", service.ErrSubscriptionNotFound, id)
	}})
	ctx, rec := newRequestContext(http.MethodPost, "/api-subscriptions/"+testID+"/regenerate-key", `{"key_name":"primaryKey"}`, "alice")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	_ = ctrl.RegenerateAPISubscriptionKey(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	ctrl := newControllerForTest(&controllerService{})
	ctx, rec := newRequestContext(http.MethodGet, "/health", "", "")

	_ = ctrl.Health(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
