package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/models"
	"ms-events/internal/order/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{(*models.Order)(nil), (*models.Event)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func insertEvent(t *testing.T, bunDB *bun.DB, id, title, organizer string) {
	t.Helper()
	event := models.Event{
		ID:            id,
		Title:         title,
		Organizer:     organizer,
		StartDateTime: time.Now(),
		EndDateTime:   time.Now().Add(time.Hour),
		CreatedAt:     time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(context.Background())
	require.NoError(t, err)
}

func TestCreateOrder_Idempotent(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	first := models.Order{
		ID:          uuid.NewString(),
		StripeID:    "cs_123",
		EventID:     "event_1",
		BuyerID:     "buyer_1",
		TotalAmount: "50",
		CreatedAt:   time.Now().UTC(),
	}

	created, err := orderDB.CreateOrder(ctx, first)
	assert.NoError(t, err)
	assert.True(t, created)

	// Same checkout session again, different row id: must insert nothing.
	duplicate := first
	duplicate.ID = uuid.NewString()
	created, err = orderDB.CreateOrder(ctx, duplicate)
	assert.NoError(t, err)
	assert.False(t, created)

	count, err := bunDB.NewSelect().Model((*models.Order)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := orderDB.GetOrderByStripeID(ctx, "cs_123")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "50", stored.TotalAmount)
}

func TestGetOrderByID(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	orderID := uuid.NewString()
	testOrder := models.Order{
		ID:          orderID,
		StripeID:    "cs_get",
		EventID:     "event_1",
		BuyerID:     "buyer_1",
		TotalAmount: "19.99",
		CreatedAt:   time.Now().UTC(),
	}
	_, err := bunDB.NewInsert().Model(&testOrder).Exec(ctx)
	require.NoError(t, err)

	order, err := orderDB.GetOrderByID(ctx, orderID)
	assert.NoError(t, err)
	assert.Equal(t, "19.99", order.TotalAmount)

	order, err = orderDB.GetOrderByID(ctx, "non-existent")
	assert.Error(t, err)
	assert.Nil(t, order)
}

func TestListOrdersByEvent(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	insertEvent(t, bunDB, "event_1", "Summer Fest", "org_1")
	insertEvent(t, bunDB, "event_2", "Other Event", "org_2")

	orders := []models.Order{
		{ID: "o1", StripeID: "cs_1", EventID: "event_1", BuyerID: "user_alpha", TotalAmount: "10", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{ID: "o2", StripeID: "cs_2", EventID: "event_1", BuyerID: "user_beta", TotalAmount: "20", CreatedAt: time.Now().Add(-1 * time.Hour)},
		{ID: "o3", StripeID: "cs_3", EventID: "event_2", BuyerID: "user_alpha", TotalAmount: "30", CreatedAt: time.Now()},
	}
	_, err := bunDB.NewInsert().Model(&orders).Exec(ctx)
	require.NoError(t, err)

	rows, err := orderDB.ListOrdersByEvent(ctx, "event_1", "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest first, joined with the event title.
	assert.Equal(t, "o2", rows[0].ID)
	assert.Equal(t, "Summer Fest", rows[0].EventTitle)

	rows, err = orderDB.ListOrdersByEvent(ctx, "event_1", "ALPHA")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "o1", rows[0].ID)

	rows, err = orderDB.ListOrdersByEvent(ctx, "event_1", "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListOrdersByBuyer(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	insertEvent(t, bunDB, "event_1", "Summer Fest", "org_1")

	var orders []models.Order
	for i := 0; i < 5; i++ {
		orders = append(orders, models.Order{
			ID:          uuid.NewString(),
			StripeID:    uuid.NewString(),
			EventID:     "event_1",
			BuyerID:     "buyer_1",
			TotalAmount: "10",
			CreatedAt:   time.Now().Add(time.Duration(-i) * time.Hour),
		})
	}
	_, err := bunDB.NewInsert().Model(&orders).Exec(ctx)
	require.NoError(t, err)

	rows, count, err := orderDB.ListOrdersByBuyer(ctx, "buyer_1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	require.Len(t, rows, 2)
	assert.Equal(t, orders[0].ID, rows[0].ID)
	assert.Equal(t, "Summer Fest", rows[0].EventTitle)
	assert.Equal(t, "org_1", rows[0].EventOrganizer)

	rows, count, err = orderDB.ListOrdersByBuyer(ctx, "buyer_1", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Len(t, rows, 1)

	rows, count, err = orderDB.ListOrdersByBuyer(ctx, "someone_else", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Empty(t, rows)
}

func TestUnlinkBuyer(t *testing.T) {
	orderDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	orders := []models.Order{
		{ID: "o1", StripeID: "cs_1", EventID: "e", BuyerID: "gone_user", TotalAmount: "10", CreatedAt: time.Now()},
		{ID: "o2", StripeID: "cs_2", EventID: "e", BuyerID: "gone_user", TotalAmount: "20", CreatedAt: time.Now()},
		{ID: "o3", StripeID: "cs_3", EventID: "e", BuyerID: "other_user", TotalAmount: "30", CreatedAt: time.Now()},
	}
	_, err := bunDB.NewInsert().Model(&orders).Exec(ctx)
	require.NoError(t, err)

	n, err := orderDB.UnlinkBuyer(ctx, "gone_user")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	order, err := orderDB.GetOrderByID(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, order.BuyerID)

	order, err = orderDB.GetOrderByID(ctx, "o3")
	require.NoError(t, err)
	assert.Equal(t, "other_user", order.BuyerID)
}
