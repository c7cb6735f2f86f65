// Package keybuilder builds namespaced Redis keys so every cache
// client in the service constructs keys the same way.
package keybuilder

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	namespaceRedis        = "notifysvc"
	segmentNotification   = "notification"
)

// NotificationKey builds the cache key for a Notification aggregate.
func NotificationKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:%s", namespaceRedis, segmentNotification, id)
}
