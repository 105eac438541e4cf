package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/repository"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordingDispatcher captures dispatched deliveries instead of
// enqueueing them.
type recordingDispatcher struct {
	mu         sync.Mutex
	deliveries []webhookdomain.Delivery
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, delivery webhookdomain.Delivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery)
	return nil
}

func (d *recordingDispatcher) Deliveries() []webhookdomain.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]webhookdomain.Delivery, len(d.deliveries))
	copy(out, d.deliveries)
	return out
}

func setupOrderService(t *testing.T) (orderdomain.Service, *gorm.DB, *recordingDispatcher) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orderdomain.Order{}, &orderdomain.OrderLineItem{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	dispatcher := &recordingDispatcher{}
	svc := NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Repo:       repository.Provide(),
		Dispatcher: dispatcher,
	})
	return svc, db, dispatcher
}

func ingestRequest(merchantID snowflake.ID) orderdomain.IngestRequest {
	placedAt := time.Date(2025, 6, 1, 11, 58, 0, 0, time.UTC)
	return orderdomain.IngestRequest{
		MerchantID:      merchantID,
		PlatformOrderID: 450789469,
		OrderNumber:     "1001",
		CustomerName:    "Ayşe Yılmaz",
		Currency:        "try",
		TotalPrice:      "409.94",
		FinancialStatus: "paid",
		PlacedAt:        &placedAt,
		LineItems: []orderdomain.IngestLineItem{
			{Title: "IPod Nano - 8gb", Quantity: 1, UnitPrice: "199.00"},
			{Title: "USB Cable", Quantity: 3, UnitPrice: "70.31"},
		},
	}
}

func TestIngestCreatesOrderAndSchedulesInvoice(t *testing.T) {
	svc, db, dispatcher := setupOrderService(t)
	merchantID := snowflake.ID(42)

	order, created, err := svc.Ingest(context.Background(), ingestRequest(merchantID))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "409.94", order.TotalPrice)
	require.Equal(t, "TRY", order.Currency)

	items, err := svc.ListLineItems(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 1, items[0].Position)
	require.Equal(t, "IPod Nano - 8gb", items[0].Title)

	deliveries := dispatcher.Deliveries()
	require.Len(t, deliveries, 1)
	require.Equal(t, TopicMaterializeInvoice, deliveries[0].Topic)
	require.Equal(t, "order:42:450789469", deliveries[0].DeliveryID)

	var count int64
	require.NoError(t, db.Model(&orderdomain.Order{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestIngestRedeliveryUpsertsSingleRow(t *testing.T) {
	svc, db, dispatcher := setupOrderService(t)
	merchantID := snowflake.ID(42)

	first, created, err := svc.Ingest(context.Background(), ingestRequest(merchantID))
	require.NoError(t, err)
	require.True(t, created)

	// Same platform order arrives again with updated payment state.
	req := ingestRequest(merchantID)
	req.FinancialStatus = "refunded"
	req.TotalPrice = "0.00"
	second, created, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "refunded", second.FinancialStatus)
	require.Equal(t, "0.00", second.TotalPrice)

	var count int64
	require.NoError(t, db.Model(&orderdomain.Order{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// Line items replaced, not appended.
	items, err := svc.ListLineItems(context.Background(), first.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Only the create scheduled an invoice.
	require.Len(t, dispatcher.Deliveries(), 1)
}

func TestIngestKeepsPlatformTotalVerbatim(t *testing.T) {
	svc, _, _ := setupOrderService(t)

	// Platform total deliberately disagrees with the line item sum;
	// it is stored as reported, never recomputed.
	req := ingestRequest(snowflake.ID(7))
	req.TotalPrice = "10.00"
	order, _, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "10.00", order.TotalPrice)
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	svc, _, dispatcher := setupOrderService(t)

	cases := map[string]func(*orderdomain.IngestRequest){
		"missing merchant":   func(r *orderdomain.IngestRequest) { r.MerchantID = 0 },
		"bad platform id":    func(r *orderdomain.IngestRequest) { r.PlatformOrderID = 0 },
		"empty currency":     func(r *orderdomain.IngestRequest) { r.Currency = " " },
		"made-up currency":   func(r *orderdomain.IngestRequest) { r.Currency = "ZZZZZ" },
		"retired currency":   func(r *orderdomain.IngestRequest) { r.Currency = "ZWL" },
		"unparseable total":  func(r *orderdomain.IngestRequest) { r.TotalPrice = "lots" },
		"negative total":     func(r *orderdomain.IngestRequest) { r.TotalPrice = "-1.00" },
		"zero quantity line": func(r *orderdomain.IngestRequest) { r.LineItems[0].Quantity = 0 },
		"bad line price":     func(r *orderdomain.IngestRequest) { r.LineItems[1].UnitPrice = "free" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := ingestRequest(snowflake.ID(7))
			mutate(&req)
			_, _, err := svc.Ingest(context.Background(), req)
			require.ErrorIs(t, err, orderdomain.ErrInvalidPayload)
		})
	}

	require.Empty(t, dispatcher.Deliveries())
}
