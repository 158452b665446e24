package router

// This file registers the marketplace routes: the public storefront, and the
// authenticated listing, cart, checkout and handoff endpoints.  Browse
// endpoints take an extra cache middleware since they serve anonymous
// traffic; everything that mutates state sits behind the JWT middleware.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-reservation/internal/handler"
	"github.com/iliyamo/marketplace-reservation/internal/middleware"
)

// RegisterMarket mounts all marketplace endpoints under /v1.  browseCache is
// applied to the public read-only routes; pass the middleware returned by
// middleware.NewRedisCache, which degrades to a pass-through when caching is
// disabled.
func RegisterMarket(
	e *echo.Echo,
	items *handler.ItemHandler,
	carts *handler.CartHandler,
	orders *handler.OrderHandler,
	profile *handler.ProfileHandler,
	jwtSecret string,
	browseCache echo.MiddlewareFunc,
) {
	// ---- Public storefront ----
	e.GET("/v1/items", items.List, browseCache)
	e.GET("/v1/items/:id", items.Get, browseCache)
	e.GET("/v1/sellers/:id/reviews", profile.ListReviews, browseCache)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// ---- Listings ----
	g.POST("/items", items.Create)
	g.GET("/my/items", items.Mine)
	g.PUT("/items/:id", items.Update)
	g.PATCH("/items/:id", items.Update)
	g.DELETE("/items/:id", items.Delete)
	// Unlist hides a listing without disturbing an existing hold; relist
	// brings it back to the storefront.
	g.POST("/items/:id/unlist", items.Unlist)
	g.POST("/items/:id/relist", items.Relist)

	// ---- Cart ----
	g.GET("/cart", carts.View)
	g.POST("/cart/items/:item_id", carts.Add)
	g.DELETE("/cart/items/:item_id", carts.Remove)

	// ---- Checkout and handoff ----
	g.POST("/checkout", orders.Checkout)
	g.GET("/orders", orders.History)
	g.GET("/sales", orders.Sales)
	// The seller verifies the buyer's code; the buyer may cancel or, once
	// the code has expired, regenerate it.
	g.POST("/orders/:id/items/:item_id/verify", orders.Verify)
	g.POST("/orders/:id/items/:item_id/cancel", orders.Cancel)
	g.POST("/orders/:id/items/:item_id/regenerate-code", orders.RegenerateCode)

	// ---- Profile and reviews ----
	g.PUT("/profile", profile.Update)
	g.PATCH("/profile", profile.Update)
	g.POST("/sellers/:id/reviews", profile.CreateReview)
}
