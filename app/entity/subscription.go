package entity

import (
	"time"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
)

type APISubscription struct {
	ID             string
	Name           string
	ProductName    string
	DeploymentName string
	OwnerID        string
	Status         lifecycle.Status
	PrimaryKey     string
	SecondaryKey   string
	GatewayETag    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *APISubscription) Clone() *APISubscription {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
