package analytics

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/storefront/analytics/internal/domain/commerce"
	"github.com/storefront/analytics/internal/domain/customer"
	"github.com/storefront/analytics/internal/domain/tracking"
)

const currencyUSD = "USD"

// ProductAddedToCart records an add-to-cart across every enabled destination.
func (d *Dispatcher) ProductAddedToCart(ctx context.Context, user *customer.User, cart *commerce.Cart, product *commerce.Product, quantity int, feature, correlationID string) {
	if user != nil {
		d.recordEngagement(ctx, tracking.Event{
			Name: "ProductAdded",
			Attributes: map[string]string{
				"userId":                  user.ID,
				"cartId":                  cart.ID,
				"productId":               product.ID,
				"name":                    product.Name,
				"category":                product.Category,
				"image":                   product.Image,
				"feature":                 feature,
				"experimentCorrelationId": correlationID,
			},
			Metrics: map[string]float64{
				"quantity": float64(quantity),
				"price":    product.RoundedPrice(),
			},
		})
		d.updateCartPresence(ctx, user.ID, true, len(cart.Items))
	}

	d.recordTrackerItemEvent(ctx, "ProductAdded", user, product.ID, "No")

	var userID any
	if user != nil {
		userID = user.ID
	}
	props := map[string]any{
		"userId":                  userID,
		"cartId":                  cart.ID,
		"productId":               product.ID,
		"name":                    product.Name,
		"category":                product.Category,
		"image":                   product.Image,
		"feature":                 feature,
		"experimentCorrelationId": correlationID,
		"quantity":                quantity,
		"price":                   product.RoundedPrice(),
	}

	d.trackEventBus(ctx, "ProductAdded", props)
	d.logProductAnalyticsEvent("ProductAdded", props)
	d.trackConversion(ctx, "ProductAdded", user)

	if d.webTagEnabled() {
		d.webTag.Event("add_to_cart", map[string]any{
			"currency": currencyUSD,
			"value":    product.RoundedPrice(),
			"items": []map[string]any{{
				"item_id":       product.ID,
				"item_name":     product.Name,
				"item_category": product.Category,
				"quantity":      quantity,
				"currency":      currencyUSD,
				"price":         product.RoundedPrice(),
			}},
		})
	}
}

// ProductRemovedFromCart records a cart-line removal. origQuantity is the
// quantity the line held before removal.
func (d *Dispatcher) ProductRemovedFromCart(ctx context.Context, user *customer.User, cart *commerce.Cart, item commerce.CartItem, origQuantity int) {
	if user != nil && user.ID != "" {
		d.recordEngagement(ctx, tracking.Event{
			Name: "ProductRemoved",
			Attributes: map[string]string{
				"userId":    user.ID,
				"cartId":    cart.ID,
				"productId": item.ProductID,
			},
			Metrics: map[string]float64{
				"quantity": float64(origQuantity),
				"price":    item.RoundedPrice(),
			},
		})
		d.updateCartPresence(ctx, user.ID, cart.HasItems(), len(cart.Items))
	}

	props := map[string]any{
		"cartId":    cart.ID,
		"productId": item.ProductID,
		"quantity":  origQuantity,
		"price":     item.RoundedPrice(),
	}

	d.trackEventBus(ctx, "ProductRemoved", props)
	d.logProductAnalyticsEvent("ProductRemoved", props)

	if d.webTagEnabled() {
		d.webTag.Event("remove_from_cart", map[string]any{
			"currency": currencyUSD,
			"value":    item.RoundedPrice(),
			"items": []map[string]any{{
				"item_id":   item.ProductID,
				"item_name": item.ProductName,
				"quantity":  origQuantity,
				"currency":  currencyUSD,
				"price":     item.RoundedPrice(),
			}},
		})
	}
}

// ProductQuantityUpdatedInCart records a cart-line quantity change. change is
// the signed delta applied to the line.
func (d *Dispatcher) ProductQuantityUpdatedInCart(ctx context.Context, user *customer.User, cart *commerce.Cart, item commerce.CartItem, change int) {
	if user != nil && user.ID != "" {
		d.recordEngagement(ctx, tracking.Event{
			Name: "ProductQuantityUpdated",
			Attributes: map[string]string{
				"userId":    user.ID,
				"cartId":    cart.ID,
				"productId": item.ProductID,
			},
			Metrics: map[string]float64{
				"quantity": float64(item.Quantity),
				"change":   float64(change),
				"price":    item.RoundedPrice(),
			},
		})
	}

	d.recordTrackerItemEvent(ctx, "ProductQuantityUpdated", user, item.ProductID, "No")

	props := map[string]any{
		"cartId":    cart.ID,
		"productId": item.ProductID,
		"quantity":  item.Quantity,
		"change":    change,
		"price":     item.RoundedPrice(),
	}

	d.trackEventBus(ctx, "ProductQuantityUpdated", props)
	d.logProductAnalyticsEvent("ProductQuantityUpdated", props)
}

// ProductLiked records a product-detail interaction and, when the like is
// attributed to an experiment, reports the outcome to the recommendations
// service.
func (d *Dispatcher) ProductLiked(ctx context.Context, user *customer.User, product *commerce.Product, feature, correlationID string, discount bool) {
	if user != nil {
		d.recordEngagement(ctx, tracking.Event{
			Name: "ProductLiked",
			Attributes: map[string]string{
				"userId":                  user.ID,
				"productId":               product.ID,
				"name":                    product.Name,
				"category":                product.Category,
				"image":                   product.Image,
				"feature":                 feature,
				"experimentCorrelationId": correlationID,
			},
			Metrics: map[string]float64{
				"price": product.RoundedPrice(),
			},
		})
	}

	discountTag := "No"
	if discount {
		discountTag = "Yes"
	}
	d.recordTrackerItemEvent(ctx, "ProductLiked", user, product.ID, discountTag)

	if correlationID != "" && d.recommendations != nil {
		d.dispatch(ctx, destRecommendations, "experiment_outcome", func() error {
			return d.recommendations.RecordExperimentOutcome(ctx, correlationID)
		})
	}

	props := map[string]any{
		"productId":               product.ID,
		"name":                    product.Name,
		"category":                product.Category,
		"image":                   product.Image,
		"feature":                 feature,
		"experimentCorrelationId": correlationID,
		"price":                   product.RoundedPrice(),
	}

	d.trackEventBus(ctx, "ProductLiked", props)
	d.logProductAnalyticsEvent("ProductLiked", props)
	d.trackConversion(ctx, "ProductLiked", user)

	if d.webTagEnabled() {
		d.webTag.Event("view_item", map[string]any{
			"currency": currencyUSD,
			"value":    product.RoundedPrice(),
			"items": []map[string]any{{
				"item_id":       product.ID,
				"item_name":     product.Name,
				"item_category": product.Category,
				"quantity":      1,
				"currency":      currencyUSD,
				"price":         product.RoundedPrice(),
			}},
		})
	}
}

// CartViewed records a cart page view. The recommendation tracker receives
// one event per cart line.
func (d *Dispatcher) CartViewed(ctx context.Context, user *customer.User, cart *commerce.Cart, cartQuantity int, cartTotal decimal.Decimal) {
	d.recordCartMilestone(ctx, "CartViewed", "view_cart", user, cart, cartQuantity, cartTotal)
}

// CheckoutStarted records the start of checkout. The recommendation tracker
// receives one event per cart line.
func (d *Dispatcher) CheckoutStarted(ctx context.Context, user *customer.User, cart *commerce.Cart, cartQuantity int, cartTotal decimal.Decimal) {
	d.recordCartMilestone(ctx, "CheckoutStarted", "begin_checkout", user, cart, cartQuantity, cartTotal)
}

// recordCartMilestone is the shared fan-out for whole-cart events; CartViewed
// and CheckoutStarted differ only in their event names.
func (d *Dispatcher) recordCartMilestone(ctx context.Context, name, tagName string, user *customer.User, cart *commerce.Cart, cartQuantity int, cartTotal decimal.Decimal) {
	roundedTotal := commerce.RoundMoney(cartTotal)

	if user != nil {
		d.recordEngagement(ctx, tracking.Event{
			Name: name,
			Attributes: map[string]string{
				"userId": user.ID,
				"cartId": cart.ID,
			},
			Metrics: map[string]float64{
				"cartTotal":    roundedTotal,
				"cartQuantity": float64(cartQuantity),
			},
		})
	}

	for _, item := range cart.Items {
		d.recordTrackerItemEvent(ctx, name, user, item.ProductID, "No")
	}

	props := map[string]any{
		"cartId":       cart.ID,
		"cartTotal":    roundedTotal,
		"cartQuantity": cartQuantity,
	}

	d.trackEventBus(ctx, name, props)
	d.logProductAnalyticsEvent(name, props)

	if d.webTagEnabled() {
		d.webTag.Event(tagName, map[string]any{
			"value":    roundedTotal,
			"currency": currencyUSD,
			"items":    webTagCartItems(cart.Items),
		})
	}
}

// OrderCompleted records a completed purchase: one order-level event, one
// monetization sub-event, tracker event and revenue record per line item,
// and a profile reset clearing the cart-presence attributes.
func (d *Dispatcher) OrderCompleted(ctx context.Context, user *customer.User, cart *commerce.Cart, order *commerce.Order) {
	if user != nil {
		d.recordEngagement(ctx, tracking.Event{
			Name: "OrderCompleted",
			Attributes: map[string]string{
				"userId":  user.ID,
				"cartId":  cart.ID,
				"orderId": order.ID,
			},
			Metrics: map[string]float64{
				"orderTotal": order.RoundedTotal(),
			},
		})
	}

	for _, item := range order.Items {
		if user != nil {
			d.recordEngagement(ctx, tracking.Event{
				Name: "_monetization.purchase",
				Attributes: map[string]string{
					"userId":      user.ID,
					"cartId":      cart.ID,
					"orderId":     order.ID,
					"_currency":   currencyUSD,
					"_product_id": item.ProductID,
				},
				Metrics: map[string]float64{
					"_quantity":   float64(item.Quantity),
					"_item_price": item.RoundedPrice(),
				},
			})
		}

		d.recordTrackerItemEvent(ctx, "OrderCompleted", user, item.ProductID, "No")

		if d.productAnalyticsEnabled() {
			d.productAnalytics.LogRevenue(tracking.RevenueRecord{
				ProductID: item.ProductID,
				Price:     item.RoundedPrice(),
				Quantity:  item.Quantity,
			})
		}
	}

	if user != nil && user.ID != "" {
		d.updateEndpoint(ctx, tracking.EndpointUpdate{
			UserID: user.ID,
			UserAttributes: map[string][]string{
				"HasShoppingCart":   {"false"},
				"HasCompletedOrder": {"true"},
			},
			Metrics: map[string]float64{
				"ItemsInCart": 0,
			},
		})
	}

	props := map[string]any{
		"cartId":     cart.ID,
		"orderId":    order.ID,
		"orderTotal": order.RoundedTotal(),
	}

	d.trackEventBus(ctx, "OrderCompleted", props)
	d.logProductAnalyticsEvent("OrderCompleted", props)

	if d.webTagEnabled() {
		d.webTag.Event("purchase", map[string]any{
			"transaction_id": order.ID,
			"value":          order.RoundedTotal(),
			"currency":       currencyUSD,
			"items":          webTagOrderItems(order.Items),
		})
	}
}

// ProductSearched records a catalog search and its result count.
func (d *Dispatcher) ProductSearched(ctx context.Context, user *customer.User, query string, resultCount int) {
	reranked := "false"
	if user != nil {
		reranked = "true"
	}

	if user != nil && user.ID != "" {
		d.recordEngagement(ctx, tracking.Event{
			Name: "ProductSearched",
			Attributes: map[string]string{
				"userId":   user.ID,
				"query":    query,
				"reranked": reranked,
			},
			Metrics: map[string]float64{
				"resultCount": float64(resultCount),
			},
		})
		d.updateEndpoint(ctx, tracking.EndpointUpdate{
			UserID: user.ID,
			Attributes: map[string][]string{
				"HashPerformedSearch": {"true"},
			},
		})
	}

	props := map[string]any{
		"query":       query,
		"reranked":    reranked,
		"resultCount": resultCount,
	}

	d.trackEventBus(ctx, "ProductSearched", props)
	d.logProductAnalyticsEvent("ProductSearched", props)

	if d.webTagEnabled() {
		d.webTag.Event("search", map[string]any{"search_term": query})
	}
}

// RecordShoppingCart pushes a cart snapshot to the shopper's engagement
// profile: asset links plus the first cart item's image, title and URL. It
// reports whether the cart holds any items.
func (d *Dispatcher) RecordShoppingCart(ctx context.Context, user *customer.User, cart *commerce.Cart) (bool, error) {
	if user == nil || cart == nil {
		return false, nil
	}

	hasItem := cart.HasItems()
	productImages := []string{}
	productTitles := []string{}
	productURLs := []string{}
	if hasItem && d.products != nil {
		product, err := d.products.GetProduct(ctx, cart.Items[0].ProductID)
		if err != nil {
			return false, err
		}
		productImages = []string{product.Image}
		productTitles = []string{product.Name}
		productURLs = []string{product.URL}
	}

	hasCart := "false"
	if hasItem {
		hasCart = "true"
	}
	d.updateEndpoint(ctx, tracking.EndpointUpdate{
		UserID: user.ID,
		UserAttributes: map[string][]string{
			"WebsiteCartURL":           {d.cfg.WebRootURL + "#/cart"},
			"WebsiteLogoImageURL":      {d.cfg.WebRootURL + "/fmb-logo-white.svg"},
			"WebsitePinpointImageURL":  {d.cfg.WebRootURL + "/icon_Pinpoint_orange.svg"},
			"ShoppingCartItemImageURL": productImages,
			"ShoppingCartItemTitle":    productTitles,
			"ShoppingCartItemURL":      productURLs,
			"HasShoppingCart":          {hasCart},
		},
	})
	return hasItem, nil
}

// RecordAbandonedCartEvent snapshots the cart to the shopper's profile and,
// when the cart holds items, records a session-stop event so downstream
// campaigns can target the abandonment.
func (d *Dispatcher) RecordAbandonedCartEvent(ctx context.Context, user *customer.User, cart *commerce.Cart) error {
	hasItem, err := d.RecordShoppingCart(ctx, user, cart)
	if err != nil {
		return err
	}
	if hasItem {
		d.recordEngagement(ctx, tracking.Event{Name: "_session.stop"})
	}
	return nil
}

// updateCartPresence pushes the best-effort cart-presence profile attributes
// after a cart mutation. Independent of the primary event record.
func (d *Dispatcher) updateCartPresence(ctx context.Context, userID string, hasCart bool, itemCount int) {
	presence := "false"
	if hasCart {
		presence = "true"
	}
	d.updateEndpoint(ctx, tracking.EndpointUpdate{
		UserID: userID,
		UserAttributes: map[string][]string{
			"HasShoppingCart": {presence},
		},
		Metrics: map[string]float64{
			"ItemsInCart": float64(itemCount),
		},
	})
}

func (d *Dispatcher) trackEventBus(ctx context.Context, name string, props map[string]any) {
	if !d.eventBusEnabled() {
		return
	}
	d.dispatch(ctx, destEventBus, "track", func() error {
		return d.eventBus.Track(ctx, name, props)
	})
}

func (d *Dispatcher) logProductAnalyticsEvent(name string, props map[string]any) {
	if !d.productAnalyticsEnabled() {
		return
	}
	d.productAnalytics.LogEvent(name, props)
}

func webTagCartItems(items []commerce.CartItem) []map[string]any {
	tagItems := make([]map[string]any, 0, len(items))
	for _, item := range items {
		tagItems = append(tagItems, map[string]any{
			"item_id":   item.ProductID,
			"item_name": item.ProductName,
			"quantity":  item.Quantity,
			"index":     len(tagItems) + 1,
			"currency":  currencyUSD,
			"price":     item.RoundedPrice(),
		})
	}
	return tagItems
}

func webTagOrderItems(items []commerce.OrderItem) []map[string]any {
	tagItems := make([]map[string]any, 0, len(items))
	for _, item := range items {
		tagItems = append(tagItems, map[string]any{
			"item_id":   item.ProductID,
			"item_name": item.ProductName,
			"quantity":  item.Quantity,
			"index":     len(tagItems) + 1,
			"currency":  currencyUSD,
			"price":     item.RoundedPrice(),
		})
	}
	return tagItems
}
