package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

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

// compile-time interface check
var _ sfstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all storefront collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("storefront/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Product Store ====================

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	m := toProductModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storefront.ErrAlreadyExists
		}
		return fmt.Errorf("storefront/mongo: create product: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, productID id.ProductID) (*product.Product, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": productID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrProductNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get product: %w", err)
	}
	return fromProductModel(&m)
}

func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*product.Product, error) {
	var m productModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"slug": slug}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrProductNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get product by slug: %w", err)
	}
	return fromProductModel(&m)
}

func (s *Store) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	var models []productModel

	filter := bson.M{}
	if opts.Category != "" {
		filter["category"] = opts.Category
	}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("storefront/mongo: list products: %w", err)
	}

	result := make([]*product.Product, len(models))
	for i := range models {
		p, err := fromProductModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *product.Product) error {
	m := toProductModel(p)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: update product: %w", err)
	}
	if res.MatchedCount() == 0 {
		return storefront.ErrProductNotFound
	}
	return nil
}

// ==================== Coupon Store ====================

func (s *Store) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	m := toCouponModel(c)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storefront.ErrAlreadyExists
		}
		return fmt.Errorf("storefront/mongo: create coupon: %w", err)
	}
	return nil
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var m couponModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"code": coupon.Normalize(code)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrCouponNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get coupon: %w", err)
	}
	return fromCouponModel(&m)
}

func (s *Store) GetCouponByID(ctx context.Context, couponID id.CouponID) (*coupon.Coupon, error) {
	var m couponModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": couponID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrCouponNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get coupon by id: %w", err)
	}
	return fromCouponModel(&m)
}

func (s *Store) ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	var models []couponModel

	filter := bson.M{}
	if opts.Active {
		filter["active"] = true
		filter["$or"] = bson.A{
			bson.M{"valid_until": bson.M{"$exists": false}},
			bson.M{"valid_until": nil},
			bson.M{"valid_until": bson.M{"$gte": now()}},
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("storefront/mongo: list coupons: %w", err)
	}

	result := make([]*coupon.Coupon, len(models))
	for i := range models {
		c, err := fromCouponModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

func (s *Store) UpdateCoupon(ctx context.Context, c *coupon.Coupon) error {
	m := toCouponModel(c)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: update coupon: %w", err)
	}
	if res.MatchedCount() == 0 {
		return storefront.ErrCouponNotFound
	}
	return nil
}

func (s *Store) DeleteCoupon(ctx context.Context, couponID id.CouponID) error {
	res, err := s.mdb.NewDelete((*couponModel)(nil)).
		Filter(bson.M{"_id": couponID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: delete coupon: %w", err)
	}
	if res.DeletedCount() == 0 {
		return storefront.ErrCouponNotFound
	}
	return nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	var m orderModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": orderID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrOrderNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error) {
	var models []orderModel

	filter := bson.M{}
	if opts.SessionID != "" {
		filter["session_id"] = opts.SessionID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("storefront/mongo: list orders: %w", err)
	}

	result := make([]*order.Order, len(models))
	for i := range models {
		o, err := fromOrderModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o *order.Order) error {
	m := toOrderModel(o)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: update order: %w", err)
	}
	if res.MatchedCount() == 0 {
		return storefront.ErrOrderNotFound
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": paymentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) GetPaymentByOrder(ctx context.Context, orderID id.OrderID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"order_id": orderID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, storefront.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("storefront/mongo: get payment by order: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) UpdatePayment(ctx context.Context, p *payment.Payment) error {
	m := toPaymentModel(p)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: update payment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return storefront.ErrPaymentNotFound
	}
	return nil
}

// ConfirmPayment runs the three writes in a multi-document transaction.
// Transactions need a replica set or sharded cluster.
func (s *Store) ConfirmPayment(ctx context.Context, orderID id.OrderID, txRef string, at time.Time) error {
	orders := s.mdb.Collection(colOrders)
	payments := s.mdb.Collection(colPayments)
	coupons := s.mdb.Collection(colCoupons)

	sess, err := orders.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("storefront/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	at = at.UTC()
	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		var o orderModel
		if err := orders.FindOne(txCtx, bson.M{"_id": orderID.String()}).Decode(&o); err != nil {
			if isNoDocuments(err) {
				return nil, storefront.ErrOrderNotFound
			}
			return nil, err
		}
		if o.Status == string(order.StatusConfirmed) {
			return nil, nil
		}

		res, err := payments.UpdateOne(txCtx,
			bson.M{"order_id": o.ID},
			bson.M{"$set": bson.M{
				"status":          string(payment.StatusCompleted),
				"transaction_ref": txRef,
				"paid_at":         at,
				"updated_at":      at,
			}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, storefront.ErrPaymentNotFound
		}

		if _, err := orders.UpdateOne(txCtx,
			bson.M{"_id": o.ID},
			bson.M{"$set": bson.M{
				"status":       string(order.StatusConfirmed),
				"payment_ref":  txRef,
				"confirmed_at": at,
				"updated_at":   at,
			}},
		); err != nil {
			return nil, err
		}

		if o.CouponCode != "" {
			if _, err := coupons.UpdateOne(txCtx,
				bson.M{"code": o.CouponCode},
				bson.M{
					"$inc": bson.M{"current_uses": 1},
					"$set": bson.M{"updated_at": at},
				},
			); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, storefront.ErrOrderNotFound) || errors.Is(err, storefront.ErrPaymentNotFound) {
			return err
		}
		return fmt.Errorf("storefront/mongo: confirm payment: %w: %w", storefront.ErrTransactionFailed, err)
	}
	return nil
}

// ==================== Cart State Store ====================

func (s *Store) GetCartState(ctx context.Context, key string) (string, bool, error) {
	var m cartStateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": key}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storefront/mongo: get cart state: %w", err)
	}
	return m.Value, true, nil
}

func (s *Store) PutCartState(ctx context.Context, key, value string) error {
	_, err := s.mdb.Collection(colCartState).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": now()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("storefront/mongo: put cart state: %w", err)
	}
	return nil
}

func (s *Store) DeleteCartState(ctx context.Context, key string) error {
	_, err := s.mdb.NewDelete((*cartStateModel)(nil)).
		Filter(bson.M{"_id": key}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storefront/mongo: delete cart state: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all storefront collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colProducts: {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "active", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colCoupons: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colOrders: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "gateway_order_id", Value: 1}}},
		},
		colPayments: {
			{
				Keys:    bson.D{{Key: "order_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colCartState: {
			{Keys: bson.D{{Key: "updated_at", Value: 1}}},
		},
	}
}
