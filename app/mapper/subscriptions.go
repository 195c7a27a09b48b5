package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-api-subscriptions/app/dto"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
)

func APISubscriptionToResponse(item *entity.APISubscription) *dto.APISubscriptionResponse {
	if item == nil {
		return nil
	}

	return &dto.APISubscriptionResponse{
		ID:              item.ID,
		Name:            item.Name,
		ProductName:     item.ProductName,
		DeploymentName:  item.DeploymentName,
		OwnerID:         item.OwnerID,
		Status:          string(item.Status),
		PrimaryKey:      item.PrimaryKey,
		SecondaryKey:    item.SecondaryKey,
		CreatedTime:     formatTime(item.CreatedAt),
		LastUpdatedTime: formatTime(item.UpdatedAt),
	}
}

func APISubscriptionsToResponse(items []*entity.APISubscription) []*dto.APISubscriptionResponse {
	result := make([]*dto.APISubscriptionResponse, 0, len(items))
	for _, item := range items {
		result = append(result, APISubscriptionToResponse(item))
	}
	return result
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
