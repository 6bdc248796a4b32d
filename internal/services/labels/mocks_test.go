package labels

import (
	"context"
	"time"

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockOMS struct {
	mock.Mock
}

func (m *MockOMS) Carriers(ctx context.Context) ([]models.Carrier, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Carrier)
	return list, args.Error(1)
}

func (m *MockOMS) Shipment(ctx context.Context, id models.ID) (*models.Shipment, error) {
	args := m.Called(ctx, id)
	sh, _ := args.Get(0).(*models.Shipment)
	return sh, args.Error(1)
}

func (m *MockOMS) Seller(ctx context.Context, id models.ID) (*models.Party, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Party)
	return p, args.Error(1)
}

func (m *MockOMS) Context(ctx context.Context, id models.ID) (*models.Party, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Party)
	return p, args.Error(1)
}

func (m *MockOMS) AttachLabel(ctx context.Context, shipmentID models.ID, label models.ShippingLabel) error {
	return m.Called(ctx, shipmentID, label).Error(0)
}

func (m *MockOMS) SetConsignmentID(ctx context.Context, shipmentID models.ID, consignmentID string) error {
	return m.Called(ctx, shipmentID, consignmentID).Error(0)
}

func (m *MockOMS) SetTrackingNumber(ctx context.Context, containerID models.ID, trackingNumber string) error {
	return m.Called(ctx, containerID, trackingNumber).Error(0)
}

func (m *MockOMS) PostEventMessage(ctx context.Context, eventID models.ID, msg models.EventMessage) error {
	return m.Called(ctx, eventID, msg).Error(0)
}

type MockCarrier struct {
	mock.Mock
}

func (m *MockCarrier) CreateShipment(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*carrier.Result)
	return res, args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, carrierName string) (models.CarrierSetup, error) {
	args := m.Called(ctx, carrierName)
	return args.Get(0).(models.CarrierSetup), args.Error(1)
}

type MockEventMarks struct {
	mock.Mock
}

func (m *MockEventMarks) Done(ctx context.Context, eventID models.ID) (string, bool, error) {
	args := m.Called(ctx, eventID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockEventMarks) MarkDone(ctx context.Context, eventID models.ID, outcome string, ttl time.Duration) error {
	return m.Called(ctx, eventID, outcome, ttl).Error(0)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) AllowCall(ctx context.Context, carrierName string, at time.Time, perMinute int64) (bool, int64, error) {
	args := m.Called(ctx, carrierName, at, perMinute)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) RecordRun(ctx context.Context, run models.LabelRun) error {
	return m.Called(ctx, run).Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return m.Called(ctx, topic, key, value).Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveRun(outcome string) { m.Called(outcome) }

func (m *MockRecorder) ObserveCarrierCall(result string, d time.Duration) { m.Called(result, d) }

func (m *MockRecorder) NotificationFailed() { m.Called() }
