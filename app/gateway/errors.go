package gateway

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

var (
	ErrGatewayFailure = errors.New("gateway request failed")
	ErrInvalidKeyName = errors.New("key name must be primaryKey or secondaryKey")
)

// ResponseError carries a non-success gateway response verbatim.
type ResponseError struct {
	Operation  string
	StatusCode int
	ErrorCode  string
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("gateway %s failed with status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *ResponseError) Unwrap() error {
	return ErrGatewayFailure
}

func wrapError(operation string, err error) error {
	var responseErr *azcore.ResponseError
	if !errors.As(err, &responseErr) {
		return fmt.Errorf("%w: %s: %v", ErrGatewayFailure, operation, err)
	}

	out := &ResponseError{
		Operation:  operation,
		StatusCode: responseErr.StatusCode,
		ErrorCode:  responseErr.ErrorCode,
	}
	if responseErr.RawResponse != nil {
		if body, readErr := runtime.Payload(responseErr.RawResponse); readErr == nil {
			out.Body = string(body)
		}
	}
	return out
}
