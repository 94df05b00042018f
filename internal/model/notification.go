package model

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationOrderReceived NotificationType = "order_received"
	NotificationOrderReady    NotificationType = "order_ready"
)

// Notification is a persisted in-app message.  TitleKey and
// DescriptionKey are i18n keys resolved by the client; Params carries the
// interpolation values.
type Notification struct {
	ID             string           `json:"id"`
	Type           NotificationType `json:"type"`
	TitleKey       string           `json:"titleKey"`
	DescriptionKey string           `json:"descriptionKey,omitempty"`
	Params         map[string]any   `json:"params,omitempty"`
	Read           bool             `json:"read"`
	CreatedAt      int64            `json:"createdAt"` // unix milliseconds
}

// NotificationInput holds the caller-supplied part of a Notification.
type NotificationInput struct {
	Type           NotificationType `json:"type"`
	TitleKey       string           `json:"titleKey"`
	DescriptionKey string           `json:"descriptionKey,omitempty"`
	Params         map[string]any   `json:"params,omitempty"`
}
