package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/apimanagement/armapimanagement"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
)

const anyETag = "*"

type KeyName string

const (
	PrimaryKey   KeyName = "primaryKey"
	SecondaryKey KeyName = "secondaryKey"
)

func ParseKeyName(raw string) (KeyName, error) {
	switch {
	case strings.EqualFold(strings.TrimSpace(raw), string(PrimaryKey)):
		return PrimaryKey, nil
	case strings.EqualFold(strings.TrimSpace(raw), string(SecondaryKey)):
		return SecondaryKey, nil
	default:
		return "", ErrInvalidKeyName
	}
}

// Properties is the authoritative gateway-side view of a subscription.
type Properties struct {
	PrimaryKey   string
	SecondaryKey string
	State        string
	ETag         string
}

// subscriptionAPI is the part of armapimanagement.SubscriptionClient the
// gateway drives.
type subscriptionAPI interface {
	CreateOrUpdate(ctx context.Context, resourceGroupName string, serviceName string, sid string, parameters armapimanagement.SubscriptionCreateParameters, options *armapimanagement.SubscriptionClientCreateOrUpdateOptions) (armapimanagement.SubscriptionClientCreateOrUpdateResponse, error)
	Delete(ctx context.Context, resourceGroupName string, serviceName string, sid string, ifMatch string, options *armapimanagement.SubscriptionClientDeleteOptions) (armapimanagement.SubscriptionClientDeleteResponse, error)
	RegeneratePrimaryKey(ctx context.Context, resourceGroupName string, serviceName string, sid string, options *armapimanagement.SubscriptionClientRegeneratePrimaryKeyOptions) (armapimanagement.SubscriptionClientRegeneratePrimaryKeyResponse, error)
	RegenerateSecondaryKey(ctx context.Context, resourceGroupName string, serviceName string, sid string, options *armapimanagement.SubscriptionClientRegenerateSecondaryKeyOptions) (armapimanagement.SubscriptionClientRegenerateSecondaryKeyResponse, error)
	ListSecrets(ctx context.Context, resourceGroupName string, serviceName string, sid string, options *armapimanagement.SubscriptionClientListSecretsOptions) (armapimanagement.SubscriptionClientListSecretsResponse, error)
}

// SubscriptionGateway mirrors API subscriptions into one API Management
// service instance.
type SubscriptionGateway struct {
	client        subscriptionAPI
	resourceGroup string
	serviceName   string
}

func NewSubscriptionGateway(client subscriptionAPI, resourceGroup, serviceName string) *SubscriptionGateway {
	return &SubscriptionGateway{
		client:        client,
		resourceGroup: resourceGroup,
		serviceName:   serviceName,
	}
}

func (g *SubscriptionGateway) Create(ctx context.Context, subscription *entity.APISubscription) (*Properties, error) {
	return g.put(ctx, subscription, nil)
}

func (g *SubscriptionGateway) Update(ctx context.Context, subscription *entity.APISubscription) (*Properties, error) {
	return g.put(ctx, subscription, to.Ptr(etagOrAny(subscription.GatewayETag)))
}

// Delete removes the gateway object. The request is conditional on the last
// known entity tag, so a concurrent change at the gateway fails the call.
func (g *SubscriptionGateway) Delete(ctx context.Context, subscription *entity.APISubscription) error {
	_, err := g.client.Delete(ctx, g.resourceGroup, g.serviceName, subscription.ID, etagOrAny(subscription.GatewayETag), nil)
	if err != nil {
		return wrapError("delete subscription "+subscription.ID, err)
	}
	return nil
}

// RotateKey regenerates one key slot and returns both current keys.
func (g *SubscriptionGateway) RotateKey(ctx context.Context, id string, keyName KeyName) (*Properties, error) {
	var err error
	switch keyName {
	case PrimaryKey:
		_, err = g.client.RegeneratePrimaryKey(ctx, g.resourceGroup, g.serviceName, id, nil)
	case SecondaryKey:
		_, err = g.client.RegenerateSecondaryKey(ctx, g.resourceGroup, g.serviceName, id, nil)
	default:
		return nil, ErrInvalidKeyName
	}
	if err != nil {
		return nil, wrapError(fmt.Sprintf("regenerate %s of subscription %s", keyName, id), err)
	}

	return g.listSecrets(ctx, id, &Properties{})
}

func (g *SubscriptionGateway) put(ctx context.Context, subscription *entity.APISubscription, ifMatch *string) (*Properties, error) {
	state := armapimanagement.SubscriptionState(lifecycle.GatewayState(subscription.Status))
	parameters := armapimanagement.SubscriptionCreateParameters{
		Properties: &armapimanagement.SubscriptionCreateParameterProperties{
			DisplayName: to.Ptr(displayName(subscription)),
			Scope:       to.Ptr(Scope(subscription.ProductName, subscription.DeploymentName)),
			OwnerID:     to.Ptr("/users/" + subscription.OwnerID),
			State:       &state,
		},
	}

	resp, err := g.client.CreateOrUpdate(ctx, g.resourceGroup, g.serviceName, subscription.ID, parameters,
		&armapimanagement.SubscriptionClientCreateOrUpdateOptions{IfMatch: ifMatch})
	if err != nil {
		return nil, wrapError("put subscription "+subscription.ID, err)
	}

	props := &Properties{ETag: stringValue(resp.ETag)}
	if contract := resp.Properties; contract != nil {
		props.PrimaryKey = stringValue(contract.PrimaryKey)
		props.SecondaryKey = stringValue(contract.SecondaryKey)
		if contract.State != nil {
			props.State = string(*contract.State)
		}
	}
	if props.PrimaryKey != "" && props.SecondaryKey != "" {
		return props, nil
	}

	// Newer API versions never echo keys on PUT.
	return g.listSecrets(ctx, subscription.ID, props)
}

func (g *SubscriptionGateway) listSecrets(ctx context.Context, id string, props *Properties) (*Properties, error) {
	resp, err := g.client.ListSecrets(ctx, g.resourceGroup, g.serviceName, id, nil)
	if err != nil {
		return nil, wrapError("list secrets of subscription "+id, err)
	}

	primary, secondary := stringValue(resp.PrimaryKey), stringValue(resp.SecondaryKey)
	if primary == "" || secondary == "" {
		return nil, fmt.Errorf("%w: gateway returned empty keys for subscription %s", ErrGatewayFailure, id)
	}

	props.PrimaryKey = primary
	props.SecondaryKey = secondary
	if etag := stringValue(resp.ETag); etag != "" {
		props.ETag = etag
	}
	return props, nil
}

// Scope is the gateway product a subscription grants access to.
func Scope(productName, deploymentName string) string {
	return "/products/" + strings.ToLower(productName) + "-" + strings.ToLower(deploymentName)
}

func displayName(subscription *entity.APISubscription) string {
	if strings.TrimSpace(subscription.Name) != "" {
		return subscription.Name
	}
	return subscription.ID
}

func etagOrAny(etag string) string {
	if etag == "" {
		return anyETag
	}
	return etag
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
