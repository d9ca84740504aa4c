// Package storefront provides the commerce core of an NFC / QR product
// storefront: catalog lookups, session carts with coupons, checkout against a
// hosted payment gateway, and server-side payment verification.
//
// Storefront is designed as a library, not a service. cmd/storefrontd wraps it
// in an HTTP daemon, and the extension package mounts it in a forge app.
//
// # Quick Start
//
//	s := memory.New()
//	sf, err := storefront.New(s,
//	    storefront.WithGateway(payment.NewHTTPGateway(keyID, keySecret)),
//	    storefront.WithSecret(payment.StaticSecret(keySecret)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := sf.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sf.Stop(ctx)
//
// # Carts
//
// Each shopper session owns one cart. Every mutation returns the cart
// snapshot and the notifications it raised, in order:
//
//	out, err := sf.AddProduct(ctx, sessionID, productID, 2)
//	c, _ := sf.Cart(ctx, sessionID)
//	out, err = c.ApplyCoupon(ctx, "save20")
//
// Coupon codes are case-insensitive. A coupon whose minimum order is no
// longer met after the cart shrinks is detached with a warning.
//
// # Checkout
//
// PlaceOrder prices the cart, records a pending order and payment, and opens
// a gateway order for the total in minor units. VerifyPayment recomputes the
// HMAC-SHA256 signature over "gatewayOrderID|gatewayPaymentID" with the
// server secret; a match confirms the order and payment in one atomic write
// and clears the cart.
//
// # Money
//
// All monetary calculations use integer arithmetic. Money holds amounts in
// the currency's smallest unit (paise for INR, cents for USD).
//
// # TypeID
//
// Entities use TypeID identifiers:
//
//	prod_01h2xcejqtf2nbrexx3vqjhp41  // Product ID
//	ord_01h2xcejqtf2nbrexx3vqjhp41   // Order ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
package storefront
