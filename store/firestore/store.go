// Package firestore implements store.Store on Google Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
	sfstore "github.com/xraph/storefront/store"
)

// Collection name constants.
const (
	colProducts  = "storefront_products"
	colCoupons   = "storefront_coupons"
	colOrders    = "storefront_orders"
	colPayments  = "storefront_payments"
	colCartState = "storefront_cart_state"
)

var errNilClient = errors.New("storefront/firestore: client is nil")

// compile-time interface check
var _ sfstore.Store = (*Store)(nil)

// Store implements store.Store using Firestore. Documents are keyed by the
// record's typeid string.
type Store struct {
	client *firestore.Client
}

// New creates a Firestore store on an existing client. The store takes
// ownership of the client and closes it in Close.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Client returns the underlying Firestore client.
func (s *Store) Client() *firestore.Client { return s.client }

// Migrate is a no-op. Composite indexes are declared in firestore.indexes.json
// and deployed with the Firebase CLI.
func (s *Store) Migrate(_ context.Context) error {
	if s.client == nil {
		return errNilClient
	}
	return nil
}

// Ping reads at most one cart state document to check connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return errNilClient
	}
	iter := s.client.Collection(colCartState).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("storefront/firestore: ping: %w", err)
	}
	return nil
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) col(name string) *firestore.CollectionRef {
	return s.client.Collection(name)
}

// ==================== Product Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	ref := s.col(colProducts).Doc(p.ID.String())
	slugQuery := s.col(colProducts).Where("slug", "==", p.Slug).Limit(1)

	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		taken, err := exists(tx.Documents(slugQuery))
		if err != nil {
			return err
		}
		if taken {
			return storefront.ErrAlreadyExists
		}
		return mapCreateErr(tx.Create(ref, toProductDoc(p)))
	})
}

func (s *Store) GetProduct(ctx context.Context, productID id.ProductID) (*product.Product, error) {
	snap, err := s.col(colProducts).Doc(productID.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, storefront.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get product: %w", err)
	}
	return decodeProduct(snap)
}

func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*product.Product, error) {
	snap, err := first(s.col(colProducts).Where("slug", "==", slug).Limit(1).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get product by slug: %w", err)
	}
	if snap == nil {
		return nil, storefront.ErrProductNotFound
	}
	return decodeProduct(snap)
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	q := s.col(colProducts).Query
	if opts.Category != "" {
		q = q.Where("category", "==", opts.Category)
	}
	if opts.ActiveOnly {
		q = q.Where("active", "==", true)
	}
	q = q.OrderBy("created_at", firestore.Asc)
	q = paginate(q, opts.Offset, opts.Limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	result := make([]*product.Product, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storefront/firestore: list products: %w", err)
		}
		p, err := decodeProduct(snap)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *product.Product) error {
	d := toProductDoc(p)
	d.UpdatedAt = now()
	return s.replace(ctx, s.col(colProducts).Doc(p.ID.String()), d, storefront.ErrProductNotFound)
}

// ==================== Coupon Store ====================

func (s *Store) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	d := toCouponDoc(c)
	ref := s.col(colCoupons).Doc(c.ID.String())
	codeQuery := s.col(colCoupons).Where("code", "==", d.Code).Limit(1)

	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		taken, err := exists(tx.Documents(codeQuery))
		if err != nil {
			return err
		}
		if taken {
			return storefront.ErrAlreadyExists
		}
		return mapCreateErr(tx.Create(ref, d))
	})
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	q := s.col(colCoupons).Where("code", "==", coupon.Normalize(code)).Limit(1)
	snap, err := first(q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get coupon: %w", err)
	}
	if snap == nil {
		return nil, storefront.ErrCouponNotFound
	}
	return decodeCoupon(snap)
}

func (s *Store) GetCouponByID(ctx context.Context, couponID id.CouponID) (*coupon.Coupon, error) {
	snap, err := s.col(colCoupons).Doc(couponID.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, storefront.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get coupon by id: %w", err)
	}
	return decodeCoupon(snap)
}

func (s *Store) ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	q := s.col(colCoupons).Query
	if opts.Active {
		q = q.Where("active", "==", true)
	}
	q = q.OrderBy("created_at", firestore.Desc)

	iter := q.Documents(ctx)
	defer iter.Stop()

	// valid_until can be null, which Firestore range filters skip, so expiry
	// is filtered here and pagination follows it.
	current := now()
	result := make([]*coupon.Coupon, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storefront/firestore: list coupons: %w", err)
		}
		c, err := decodeCoupon(snap)
		if err != nil {
			return nil, err
		}
		if opts.Active && c.ValidUntil != nil && current.After(*c.ValidUntil) {
			continue
		}
		result = append(result, c)
	}

	start := min(opts.Offset, len(result))
	end := len(result)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return result[start:end], nil
}

func (s *Store) UpdateCoupon(ctx context.Context, c *coupon.Coupon) error {
	d := toCouponDoc(c)
	d.UpdatedAt = now()
	return s.replace(ctx, s.col(colCoupons).Doc(c.ID.String()), d, storefront.ErrCouponNotFound)
}

func (s *Store) DeleteCoupon(ctx context.Context, couponID id.CouponID) error {
	ref := s.col(colCoupons).Doc(couponID.String())
	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return storefront.ErrCouponNotFound
			}
			return err
		}
		return tx.Delete(ref)
	})
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := s.col(colOrders).Doc(o.ID.String()).Create(ctx, toOrderDoc(o))
	return mapCreateErr(err)
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	snap, err := s.col(colOrders).Doc(orderID.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, storefront.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get order: %w", err)
	}
	return decodeOrder(snap)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	q := s.col(colOrders).Query
	if opts.SessionID != "" {
		q = q.Where("session_id", "==", opts.SessionID)
	}
	if opts.Status != "" {
		q = q.Where("status", "==", string(opts.Status))
	}
	q = q.OrderBy("created_at", firestore.Desc)
	q = paginate(q, opts.Offset, opts.Limit)

	iter := q.Documents(ctx)
	defer iter.Stop()

	result := make([]*order.Order, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storefront/firestore: list orders: %w", err)
		}
		o, err := decodeOrder(snap)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	d := toOrderDoc(o)
	d.UpdatedAt = now()
	return s.replace(ctx, s.col(colOrders).Doc(o.ID.String()), d, storefront.ErrOrderNotFound)
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.col(colPayments).Doc(p.ID.String()).Create(ctx, toPaymentDoc(p))
	return mapCreateErr(err)
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	snap, err := s.col(colPayments).Doc(paymentID.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, storefront.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get payment: %w", err)
	}
	return decodePayment(snap)
}

func (s *Store) GetPaymentByOrder(ctx context.Context, orderID id.OrderID) (*payment.Payment, error) {
	q := s.col(colPayments).Where("order_id", "==", orderID.String()).Limit(1)
	snap, err := first(q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("storefront/firestore: get payment by order: %w", err)
	}
	if snap == nil {
		return nil, storefront.ErrPaymentNotFound
	}
	return decodePayment(snap)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	d := toPaymentDoc(p)
	d.UpdatedAt = now()
	return s.replace(ctx, s.col(colPayments).Doc(p.ID.String()), d, storefront.ErrPaymentNotFound)
}

// ConfirmPayment runs in a Firestore transaction. Every read happens before
// the first write, as Firestore transactions require, and a failed
// precondition aborts with nothing written.
func (s *Store) ConfirmPayment(ctx context.Context, orderID id.OrderID, txRef string, at time.Time) error {
	orderRef := s.col(colOrders).Doc(orderID.String())
	paymentQuery := s.col(colPayments).Where("order_id", "==", orderID.String()).Limit(1)
	at = at.UTC()

	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return storefront.ErrOrderNotFound
			}
			return err
		}
		var od orderDoc
		if err := orderSnap.DataTo(&od); err != nil {
			return err
		}
		if od.Status == string(order.StatusConfirmed) {
			return nil
		}

		paymentSnap, err := first(tx.Documents(paymentQuery))
		if err != nil {
			return err
		}
		if paymentSnap == nil {
			return storefront.ErrPaymentNotFound
		}

		var couponSnap *firestore.DocumentSnapshot
		if od.CouponCode != "" {
			couponQuery := s.col(colCoupons).Where("code", "==", od.CouponCode).Limit(1)
			if couponSnap, err = first(tx.Documents(couponQuery)); err != nil {
				return err
			}
		}

		if err := tx.Update(paymentSnap.Ref, []firestore.Update{
			{Path: "status", Value: string(payment.StatusCompleted)},
			{Path: "transaction_ref", Value: txRef},
			{Path: "paid_at", Value: at},
			{Path: "updated_at", Value: at},
		}); err != nil {
			return err
		}
		if err := tx.Update(orderRef, []firestore.Update{
			{Path: "status", Value: string(order.StatusConfirmed)},
			{Path: "payment_ref", Value: txRef},
			{Path: "confirmed_at", Value: at},
			{Path: "updated_at", Value: at},
		}); err != nil {
			return err
		}
		if couponSnap != nil {
			return tx.Update(couponSnap.Ref, []firestore.Update{
				{Path: "current_uses", Value: firestore.Increment(1)},
				{Path: "updated_at", Value: at},
			})
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storefront.ErrOrderNotFound) || errors.Is(err, storefront.ErrPaymentNotFound) {
			return err
		}
		return fmt.Errorf("storefront/firestore: confirm payment: %w: %w", storefront.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Cart State Store ====================

func (s *Store) GetCartState(ctx context.Context, key string) (string, bool, error) {
	snap, err := s.col(colCartState).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storefront/firestore: get cart state: %w", err)
	}
	var d cartStateDoc
	if err := snap.DataTo(&d); err != nil {
		return "", false, err
	}
	return d.Value, true, nil
}

func (s *Store) PutCartState(ctx context.Context, key, value string) error {
	_, err := s.col(colCartState).Doc(key).Set(ctx, cartStateDoc{Value: value, UpdatedAt: now()})
	if err != nil {
		return fmt.Errorf("storefront/firestore: put cart state: %w", err)
	}
	return nil
}

func (s *Store) DeleteCartState(ctx context.Context, key string) error {
	if _, err := s.col(colCartState).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("storefront/firestore: delete cart state: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// replace overwrites an existing document, failing with notFound when it
// doesn't exist. Set would silently create it.
func (s *Store) replace(ctx context.Context, ref *firestore.DocumentRef, data any, notFound error) error {
	return s.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return notFound
			}
			return err
		}
		return tx.Set(ref, data)
	})
}

func paginate(q firestore.Query, offset, limit int) firestore.Query {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// first returns the first document of iter, or nil when there is none.
func first(iter *firestore.DocumentIterator) (*firestore.DocumentSnapshot, error) {
	defer iter.Stop()
	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func exists(iter *firestore.DocumentIterator) (bool, error) {
	snap, err := first(iter)
	return snap != nil, err
}

func mapCreateErr(err error) error {
	if status.Code(err) == codes.AlreadyExists {
		return storefront.ErrAlreadyExists
	}
	return err
}

func decodeProduct(snap *firestore.DocumentSnapshot) (*product.Product, error) {
	var d productDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return fromProductDoc(snap.Ref.ID, &d)
}

func decodeCoupon(snap *firestore.DocumentSnapshot) (*coupon.Coupon, error) {
	var d couponDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return fromCouponDoc(snap.Ref.ID, &d)
}

func decodeOrder(snap *firestore.DocumentSnapshot) (*order.Order, error) {
	var d orderDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return fromOrderDoc(snap.Ref.ID, &d)
}

func decodePayment(snap *firestore.DocumentSnapshot) (*payment.Payment, error) {
	var d paymentDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return fromPaymentDoc(snap.Ref.ID, &d)
}
