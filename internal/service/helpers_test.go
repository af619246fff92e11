package service

import (
	"context"
	"testing"
	"time"

	"restaurant-order-engine/internal/cache"
	"restaurant-order-engine/internal/client"
	"restaurant-order-engine/internal/logger"
	"restaurant-order-engine/internal/notify"
	"restaurant-order-engine/internal/repository"
	"restaurant-order-engine/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	notifier *notify.Recorder
	gateway  *client.SimulatedGateway
	cache    cache.Cache

	productRepo  repository.ProductRepository
	basketRepo   repository.BasketRepository
	discountRepo repository.DiscountRepository
	groupRepo    repository.GroupRepository
	orderRepo    repository.OrderRepository
	fidelityRepo repository.FidelityRepository

	pointRules PointRuleService
	fidelity   FidelityService
	discounts  DiscountService
	groups     GroupService
	orders     OrderService
	baskets    BasketService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvOn(t, testutil.NewDB(t))
}

func newTestEnvOn(t *testing.T, db *gorm.DB) *testEnv {
	t.Helper()

	log := logger.Discard()

	memCache, err := cache.NewMemoryCache(128, time.Minute)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}

	env := &testEnv{
		db:           db,
		notifier:     notify.NewRecorder(),
		gateway:      client.NewSimulatedGateway(),
		cache:        memCache,
		productRepo:  repository.NewProductRepository(db),
		basketRepo:   repository.NewBasketRepository(db),
		discountRepo: repository.NewDiscountRepository(db),
		groupRepo:    repository.NewGroupRepository(db),
		orderRepo:    repository.NewOrderRepository(db),
	}
	env.fidelityRepo = repository.NewFidelityRepository(db)
	pointRuleRepo := repository.NewPointRuleRepository(db)

	env.pointRules = NewPointRuleService(db, log, pointRuleRepo)
	env.fidelity = NewFidelityService(db, log, env.fidelityRepo, pointRuleRepo)
	env.discounts = NewDiscountService(db, log, env.discountRepo, env.groupRepo)
	env.groups = NewGroupService(db, log, env.groupRepo, "test-signing-key")
	env.orders = NewOrderService(
		db, log, DefaultPricing(), env.notifier, env.gateway,
		env.productRepo, env.orderRepo, env.discountRepo, env.groupRepo, env.fidelityRepo,
		env.fidelity,
	)
	env.baskets = NewBasketService(
		db, log, memCache, DefaultPricing(),
		env.productRepo, env.basketRepo,
		env.discounts, env.orders,
	)

	return env
}

// ordersWith builds an order service on the env's database that talks to
// gateway instead of the recording one.
func (env *testEnv) ordersWith(gateway client.PaymentGateway) OrderService {
	return NewOrderService(
		env.db, logger.Discard(), DefaultPricing(), env.notifier, gateway,
		env.productRepo, env.orderRepo, env.discountRepo, env.groupRepo, env.fidelityRepo,
		env.fidelity,
	)
}

// decliningGateway records like the simulated gateway but fails the calls
// it has an error for.
type decliningGateway struct {
	*client.SimulatedGateway
	chargeErr error
	refundErr error
}

func (g *decliningGateway) Charge(ctx context.Context, req client.ChargeRequest) (string, error) {
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	return g.SimulatedGateway.Charge(ctx, req)
}

func (g *decliningGateway) Refund(ctx context.Context, transactionRef string, amount decimal.Decimal) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	return g.SimulatedGateway.Refund(ctx, transactionRef, amount)
}

// failWrites makes every insert into and update of table fail with err.
func failWrites(t *testing.T, db *gorm.DB, table string, err error) {
	t.Helper()

	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(err)
		}
	}
	name := "test:fail_" + table
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, fail))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, fail))
}

func nullMoney(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: testutil.Money(s), Valid: true}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
