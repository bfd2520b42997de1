package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/classpilot/billing/core"
	billingmigrations "github.com/classpilot/billing/migrations"
	sqlstore "github.com/classpilot/billing/store/sql"
	"github.com/classpilot/billing/webhooks"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "billing-tests"
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:billing-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = billingmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != billingmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, billingmigrations.WithValidationTargets(billingmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func newTestFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{
		"billing_schools",
		"billing_memberships",
		"billing_campaigns",
		"billing_subscriptions",
		"billing_activity_entries",
		"billing_webhook_deliveries",
	} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestSchoolStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.SchoolStore()
	created, err := store.Create(ctx, core.School{
		Name:              "Westfield Academy",
		Kind:              core.SchoolKindTraditional,
		BillingCustomerID: "cus_1",
		MarketID:          "us",
	})
	if err != nil {
		t.Fatalf("create school: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated school id")
	}

	byCustomer, err := store.GetByBillingCustomerID(ctx, "cus_1")
	if err != nil {
		t.Fatalf("get by billing customer: %v", err)
	}
	if byCustomer.ID != created.ID {
		t.Fatalf("expected customer lookup to match, got %q vs %q", byCustomer.ID, created.ID)
	}

	if _, err := store.GetByBillingCustomerID(ctx, "cus_missing"); !errors.Is(err, core.ErrSchoolNotFound) {
		t.Fatalf("expected ErrSchoolNotFound, got %v", err)
	}

	if _, err := store.Create(ctx, core.School{
		Name:              "Duplicate Customer",
		Kind:              core.SchoolKindHomeschool,
		BillingCustomerID: "cus_1",
		MarketID:          "us",
	}); err == nil {
		t.Fatalf("expected unique billing customer constraint violation")
	}

	schools, total, err := store.ListByMarket(ctx, "us", 10, 0)
	if err != nil {
		t.Fatalf("list by market: %v", err)
	}
	if total != 1 || len(schools) != 1 {
		t.Fatalf("expected one school in market, got %d/%d", len(schools), total)
	}
}

func TestMembershipStoreUniquePrice(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.MembershipStore()
	if _, err := store.Create(ctx, core.Membership{
		Name:         "Annual Plan",
		PriceID:      "price_1",
		Recurring:    true,
		PeriodMonths: 12,
	}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	if _, err := store.Create(ctx, core.Membership{
		Name:         "Annual Copy",
		PriceID:      "price_1",
		Recurring:    true,
		PeriodMonths: 12,
	}); err == nil {
		t.Fatalf("expected unique price constraint violation")
	}

	membership, err := store.GetByPriceID(ctx, "price_1")
	if err != nil {
		t.Fatalf("get by price: %v", err)
	}
	if membership.Name != "Annual Plan" {
		t.Fatalf("expected membership lookup, got %+v", membership)
	}

	if _, err := store.GetByPriceID(ctx, "price_missing"); !errors.Is(err, core.ErrMembershipNotFound) {
		t.Fatalf("expected ErrMembershipNotFound, got %v", err)
	}
}

func TestSubscriptionStoreWatermark(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.SubscriptionStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := store.Create(ctx, core.Subscription{
		SchoolID:     "sch_1",
		MembershipID: "mem_1",
		ExternalID:   "sub_1",
		Status:       core.SubscriptionStatusActive,
		LastEventAt:  base,
	})
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated subscription id")
	}

	if _, err := store.Create(ctx, core.Subscription{
		SchoolID:     "sch_1",
		MembershipID: "mem_1",
		ExternalID:   "sub_1",
		Status:       core.SubscriptionStatusActive,
		LastEventAt:  base,
	}); !errors.Is(err, core.ErrSubscriptionExists) {
		t.Fatalf("expected ErrSubscriptionExists, got %v", err)
	}

	stale := created
	stale.Status = core.SubscriptionStatusPastDue
	stale.LastEventAt = base
	if _, err := store.Update(ctx, stale); !errors.Is(err, core.ErrStaleEvent) {
		t.Fatalf("expected ErrStaleEvent for equal watermark, got %v", err)
	}

	newer := created
	newer.Status = core.SubscriptionStatusPastDue
	newer.LastEventAt = base.Add(time.Minute)
	updated, err := store.Update(ctx, newer)
	if err != nil {
		t.Fatalf("update subscription: %v", err)
	}
	if updated.Status != core.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due status, got %q", updated.Status)
	}
	if !updated.LastEventAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("expected watermark advance, got %s", updated.LastEventAt)
	}

	fetched, err := store.GetByExternalID(ctx, "sub_1")
	if err != nil {
		t.Fatalf("get by external id: %v", err)
	}
	if fetched.Status != core.SubscriptionStatusPastDue {
		t.Fatalf("expected persisted update, got %q", fetched.Status)
	}

	if _, err := store.GetByExternalID(ctx, "sub_missing"); !errors.Is(err, core.ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestActivityStoreRecordsAndLists(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.ActivityStore()
	entry, err := store.Record(ctx, core.ActivityEntry{
		SchoolID:   "sch_1",
		Actor:      "stripe",
		ActorType:  core.ActorTypeWebhook,
		Action:     "subscription.applied",
		ObjectType: "subscription",
		ObjectID:   "sub_1",
		Status:     "applied",
		Metadata:   map[string]any{"event_id": "evt_1"},
	})
	if err != nil {
		t.Fatalf("record activity: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("expected generated activity id")
	}

	entries, total, err := store.ListBySchool(ctx, "sch_1", 10, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Fatalf("expected one activity entry, got %d/%d", len(entries), total)
	}
	if entries[0].Metadata["event_id"] != "evt_1" {
		t.Fatalf("expected metadata round trip, got %v", entries[0].Metadata)
	}
}

func TestWebhookDeliveryStoreClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.WebhookDeliveryStore()

	record, claimed, err := store.Claim(ctx, "us", "evt_1", []byte("body"), 30*time.Second)
	if err != nil {
		t.Fatalf("claim delivery: %v", err)
	}
	if !claimed || record.Status != webhooks.DeliveryStatusProcessing || record.Attempts != 1 {
		t.Fatalf("expected fresh processing claim, got claimed=%v %+v", claimed, record)
	}

	if _, claimed, _ := store.Claim(ctx, "us", "evt_1", []byte("body"), 30*time.Second); claimed {
		t.Fatalf("expected redelivery during lease to be deduplicated")
	}

	if err := store.Fail(ctx, record.ClaimID, errors.New("store down"), time.Now().UTC().Add(-time.Second), 8); err != nil {
		t.Fatalf("fail delivery: %v", err)
	}
	failed, err := store.Get(ctx, "us", "evt_1")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if failed.Status != webhooks.DeliveryStatusRetryReady || failed.LastError != "store down" {
		t.Fatalf("expected retry_ready with cause, got %+v", failed)
	}

	second, claimed, err := store.Claim(ctx, "us", "evt_1", []byte("body"), 30*time.Second)
	if err != nil {
		t.Fatalf("reclaim delivery: %v", err)
	}
	if !claimed || second.Attempts != 2 {
		t.Fatalf("expected second attempt reclaim, got claimed=%v %+v", claimed, second)
	}

	if err := store.Complete(ctx, second.ClaimID); err != nil {
		t.Fatalf("complete delivery: %v", err)
	}
	done, _ := store.Get(ctx, "us", "evt_1")
	if done.Status != webhooks.DeliveryStatusProcessed {
		t.Fatalf("expected processed delivery, got %q", done.Status)
	}
	if _, claimed, _ := store.Claim(ctx, "us", "evt_1", []byte("body"), 30*time.Second); claimed {
		t.Fatalf("processed delivery must never be reclaimed")
	}

	payload, err := store.Payload(ctx, "us", "evt_1")
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(payload) != "body" {
		t.Fatalf("expected payload retention, got %q", payload)
	}
}

func TestWebhookDeliveryStoreRecordRejected(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newTestFactory(t)
	defer cleanup()

	store := factory.WebhookDeliveryStore()
	if err := store.RecordRejected(ctx, "us", "evt_bad", []byte("forged"), errors.New("signature verification failed")); err != nil {
		t.Fatalf("record rejected: %v", err)
	}

	record, err := store.Get(ctx, "us", "evt_bad")
	if err != nil {
		t.Fatalf("get rejected delivery: %v", err)
	}
	if record.Status != webhooks.DeliveryStatusDead {
		t.Fatalf("expected dead rejected delivery, got %q", record.Status)
	}
	if _, claimed, _ := store.Claim(ctx, "us", "evt_bad", []byte("forged"), 30*time.Second); claimed {
		t.Fatalf("rejected delivery must never be claimable")
	}

	payload, err := store.Payload(ctx, "us", "evt_bad")
	if err != nil {
		t.Fatalf("read rejected payload: %v", err)
	}
	if string(payload) != "forged" {
		t.Fatalf("expected rejected payload retention, got %q", payload)
	}
}
