package lifecycle

import "strings"

type Status string

const (
	StatusPendingFulfillmentStart Status = "PendingFulfillmentStart"
	StatusSubscribed              Status = "Subscribed"
	StatusSuspended               Status = "Suspended"
	StatusUnsubscribed            Status = "Unsubscribed"
	StatusPurged                  Status = "Purged"
)

var allStatuses = []Status{
	StatusPendingFulfillmentStart,
	StatusSubscribed,
	StatusSuspended,
	StatusUnsubscribed,
	StatusPurged,
}

// IsActive reports whether a subscription in this state still owns a gateway object.
func IsActive(status Status) bool {
	switch status {
	case StatusPendingFulfillmentStart, StatusSubscribed, StatusSuspended:
		return true
	default:
		return false
	}
}

func IsTerminal(status Status) bool {
	return status == StatusUnsubscribed || status == StatusPurged
}

func DefaultActiveFilter() []Status {
	return []Status{StatusPendingFulfillmentStart, StatusSubscribed, StatusSuspended}
}

func DefaultDeletedFilter() []Status {
	return []Status{StatusUnsubscribed, StatusPurged}
}

// Parse matches a status token case-insensitively.
func Parse(token string) (Status, bool) {
	token = strings.TrimSpace(token)
	for _, status := range allStatuses {
		if strings.EqualFold(string(status), token) {
			return status, true
		}
	}
	return "", false
}

// ParseFilter turns a comma separated list of status tokens into a filter.
// An empty list, or one holding any unknown token, yields DefaultActiveFilter.
func ParseFilter(raw string) []Status {
	if strings.TrimSpace(raw) == "" {
		return DefaultActiveFilter()
	}

	result := make([]Status, 0, len(allStatuses))
	seen := make(map[Status]struct{}, len(allStatuses))
	for _, token := range strings.Split(raw, ",") {
		status, ok := Parse(token)
		if !ok {
			return DefaultActiveFilter()
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		result = append(result, status)
	}
	return result
}

// GatewayState maps a lifecycle state onto the API Management subscription state.
func GatewayState(status Status) string {
	switch status {
	case StatusSubscribed:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusUnsubscribed:
		return "cancelled"
	case StatusPurged:
		return "expired"
	default:
		return "submitted"
	}
}

func Strings(statuses []Status) []string {
	result := make([]string, 0, len(statuses))
	for _, status := range statuses {
		result = append(result, string(status))
	}
	return result
}
