package types

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
)

const testID = "5f0c3a52-8a3b-4f43-9d6e-3f1b2a7c9e10"

func newContext(method, target, body string) echo.Context {
	e := echo.New()
	var req = httptest.NewRequest(method, target, nil)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestNewListAPISubscriptionsRequestFromContext(t *testing.T) {
	ctx := newContext("GET", "/api-subscriptions?owner=alice&status=Suspended,subscribed", "")

	parsed, err := NewListAPISubscriptionsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetOwner() != "alice" {
		t.Fatalf("unexpected owner: %q", parsed.GetOwner())
	}
	statuses := parsed.GetStatuses()
	if len(statuses) != 2 || statuses[0] != lifecycle.StatusSuspended || statuses[1] != lifecycle.StatusSubscribed {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
}

func TestListStatusesFallBackOnUnknownToken(t *testing.T) {
	req := &ListAPISubscriptionsRequest{Status: "Subscribed,bogus"}
	if got := req.GetStatuses(); len(got) != 3 {
		t.Fatalf("expected default active filter, got %v", got)
	}
}

func TestGetRequestValidate(t *testing.T) {
	if err := (&GetAPISubscriptionRequest{Id: "123"}).Validate(); err == nil {
		t.Fatal("expected invalid id error")
	}
	if err := (&GetAPISubscriptionRequest{Id: testID}).Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestCreateOrUpdateRequestFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("PUT", "/api-subscriptions/"+testID, strings.NewReader(`{"id":"`+testID+`","product_name":" vision ","deployment_name":"basic","owner_id":"alice"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	parsed, err := NewCreateOrUpdateAPISubscriptionRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	payload := parsed.ServicePayload()
	if payload == nil || payload.ID != testID || payload.ProductName != "vision" || payload.OwnerID != "alice" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestCreateOrUpdateRequestWithoutBody(t *testing.T) {
	ctx := newContext("PUT", "/api-subscriptions/"+testID, "")
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	parsed, err := NewCreateOrUpdateAPISubscriptionRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.ServicePayload() != nil {
		t.Fatal("expected nil payload for empty body")
	}
}

func TestCreateOrUpdateRequestMalformedBody(t *testing.T) {
	ctx := newContext("PUT", "/api-subscriptions/"+testID, `{"id":`)
	if _, err := NewCreateOrUpdateAPISubscriptionRequestFromContext(ctx); err == nil {
		t.Fatal("expected bind error")
	}
}

func TestRegenerateKeyRequest(t *testing.T) {
	ctx := newContext("POST", "/api-subscriptions/"+testID+"/regenerate-key", `{"key_name":"secondaryKey"}`)
	ctx.SetParamNames("id")
	ctx.SetParamValues(testID)

	parsed, err := NewRegenerateAPISubscriptionKeyRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetKeyName() != "secondaryKey" {
		t.Fatalf("unexpected key name: %q", parsed.GetKeyName())
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	if err := (&RegenerateAPISubscriptionKeyRequest{Id: testID}).Validate(); err == nil {
		t.Fatal("expected key_name validation error")
	}
}
