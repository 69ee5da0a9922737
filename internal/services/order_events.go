package services

import (
	"encoding/json"
	"fmt"
	"log"
)

// HandleOrderEvent is the order event consumer. It logs each event so the
// back office has a trail of order activity.
func HandleOrderEvent(routingKey string, body []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("malformed %s event: %w", routingKey, err)
	}
	switch routingKey {
	case "order.created":
		log.Printf("Order %s created for %s, total %s", event.OrderID, event.Email, event.Total)
	case "order.status_updated":
		log.Printf("Order %s moved from %s to %s", event.OrderID, event.PreviousStatus, event.Status)
	default:
		log.Printf("Ignoring unknown order event %s for order %s", routingKey, event.OrderID)
	}
	return nil
}
