package dto

type APISubscriptionResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	ProductName     string `json:"product_name"`
	DeploymentName  string `json:"deployment_name"`
	OwnerID         string `json:"owner_id"`
	Status          string `json:"status"`
	PrimaryKey      string `json:"primary_key"`
	SecondaryKey    string `json:"secondary_key"`
	CreatedTime     string `json:"created_time"`
	LastUpdatedTime string `json:"last_updated_time"`
}

type APISubscriptionEnvelopeResponse struct {
	Subscription *APISubscriptionResponse `json:"subscription"`
}

type ListAPISubscriptionsResponse struct {
	Subscriptions []*APISubscriptionResponse `json:"subscriptions"`
}

type MessageWithAPISubscriptionResponse struct {
	Message      string                   `json:"message"`
	Subscription *APISubscriptionResponse `json:"subscription"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
