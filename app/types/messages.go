package types

import "github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"

type ListAPISubscriptionsRequest struct {
	Owner  string `json:"owner,omitempty"`
	Status string `json:"status,omitempty"`
}

func (r *ListAPISubscriptionsRequest) GetOwner() string {
	if r == nil {
		return ""
	}
	return r.Owner
}

// GetStatuses resolves the raw status filter. Unknown tokens fall back to
// the default active set.
func (r *ListAPISubscriptionsRequest) GetStatuses() []lifecycle.Status {
	if r == nil {
		return lifecycle.DefaultActiveFilter()
	}
	return lifecycle.ParseFilter(r.Status)
}

type ListDeletedAPISubscriptionsRequest struct {
	Owner string `json:"owner,omitempty"`
}

func (r *ListDeletedAPISubscriptionsRequest) GetOwner() string {
	if r == nil {
		return ""
	}
	return r.Owner
}

type GetAPISubscriptionRequest struct {
	Id string `json:"id"`
}

func (r *GetAPISubscriptionRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

type APISubscriptionPayload struct {
	Id             string `json:"id"`
	Name           string `json:"name,omitempty"`
	ProductName    string `json:"product_name"`
	DeploymentName string `json:"deployment_name"`
	OwnerId        string `json:"owner_id,omitempty"`
	Status         string `json:"status,omitempty"`
}

type CreateOrUpdateAPISubscriptionRequest struct {
	Id           string                  `json:"id"`
	Subscription *APISubscriptionPayload `json:"subscription,omitempty"`
}

func (r *CreateOrUpdateAPISubscriptionRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

func (r *CreateOrUpdateAPISubscriptionRequest) GetSubscription() *APISubscriptionPayload {
	if r == nil {
		return nil
	}
	return r.Subscription
}

type DeleteAPISubscriptionRequest struct {
	Id string `json:"id"`
}

func (r *DeleteAPISubscriptionRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

type RegenerateAPISubscriptionKeyRequest struct {
	Id      string `json:"id"`
	KeyName string `json:"key_name"`
}

func (r *RegenerateAPISubscriptionKeyRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

func (r *RegenerateAPISubscriptionKeyRequest) GetKeyName() string {
	if r == nil {
		return ""
	}
	return r.KeyName
}
