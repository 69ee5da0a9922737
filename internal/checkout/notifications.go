package checkout

import (
	"fmt"

	"grocer/internal/cart"
	"grocer/internal/notify"
)

const cartToastMs = 3000

func cartNotification(ev cart.Event) notify.Notification {
	switch ev.Kind {
	case cart.ItemAdded:
		return notify.Notification{
			Title:       "Added to cart",
			Description: fmt.Sprintf("%s has been added to your cart.", ev.Name),
			DurationMs:  cartToastMs,
		}
	case cart.ItemUpdated:
		return notify.Notification{
			Title:       "Cart updated",
			Description: fmt.Sprintf("%s quantity is now %d.", ev.Name, ev.Quantity),
			DurationMs:  cartToastMs,
		}
	case cart.ItemRemoved:
		return notify.Notification{
			Title:       "Removed from cart",
			Description: fmt.Sprintf("%s has been removed from your cart.", ev.Name),
			DurationMs:  cartToastMs,
		}
	default:
		return notify.Notification{
			Title:       "Cart cleared",
			Description: "All items have been removed from your cart.",
			DurationMs:  cartToastMs,
		}
	}
}
