package labels

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/LabelBox/internal/broker/messages"
	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/BearBump/LabelBox/internal/integrations/oms"
	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite

	oms      *MockOMS
	carrier  *MockCarrier
	resolver *MockResolver
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.oms = &MockOMS{}
	s.carrier = &MockCarrier{}
	s.resolver = &MockResolver{}
	s.resolver.On("Resolve", mock.Anything, "GLS").Return(testSetup(), nil).Maybe()
	s.svc = New(s.oms, s.resolver, s.carrier, "GLS").WithClock(fixedNow)
}

func (s *ServiceSuite) trigger() messages.LabelRequested {
	return messages.LabelRequested{ShipmentID: "S100", EventID: "E100", ContextID: "CTX1"}
}

func s100() *models.Shipment {
	return &models.Shipment{
		ID:                 "S100",
		ShipmentNumber:     "S100",
		DeliveryAddress:    models.Address{Addressee: "Kunde", CityTownOrVillage: "Odense", CountryCode: "DK"},
		ShippingContainers: []models.ShippingContainer{{ID: "C1", GrossWeight: 2.5}},
	}
}

func (s *ServiceSuite) TestHandle_EndToEndSuccess() {
	contextParty := testSender()
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.MatchedBy(func(r *carrier.ShipmentRequest) bool {
		return len(r.Parcels) == 1 && r.Parcels[0].Reference == "S100 #1" && r.Parcels[0].Weight == 2.5 &&
			r.Addresses.Delivery.CountryNum == 208 && r.Addresses.AlternativeShipper.Name1 == "Warehouse" &&
			r.ShipmentDate == "20260309"
	})).Return(&carrier.Result{
		Kind: carrier.Success, ConsignmentID: "CN1", LabelPDF: "PDFBASE64",
		Parcels: []carrier.ParcelResult{{ParcelNumber: "P1"}},
	}, nil).Once()
	s.oms.On("AttachLabel", mock.Anything, models.ID("S100"), models.ShippingLabel{
		FileName: "SHIPPING_LABEL_S100.pdf", Base64EncodedContent: "PDFBASE64",
	}).Return(nil).Once()
	s.oms.On("SetConsignmentID", mock.Anything, models.ID("S100"), "CN1").Return(nil).Once()
	s.oms.On("SetTrackingNumber", mock.Anything, models.ID("C1"), "P1").Return(nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, models.ID("E100"), messageWith(models.MessageTypeInfo, LabelsReadyText)).
		Return(nil).Once()

	out, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	s.Require().Equal(ResultDone, out.Result)
	s.Require().Equal(messages.OutcomeLabeled, out.Kind)
	s.Require().Equal("CN1", out.ConsignmentID)
	s.Require().Equal([]string{"P1"}, out.TrackingNumbers)

	s.oms.AssertExpectations(s.T())
	s.carrier.AssertExpectations(s.T())
	s.oms.AssertNumberOfCalls(s.T(), "PostEventMessage", 1)

	st := s.svc.Stats()
	s.Require().Equal(int64(1), st.TotalRuns)
	s.Require().Equal(int64(1), st.TotalLabeled)
}

func (s *ServiceSuite) TestHandle_SellerIsTheSender() {
	sh := s100()
	seller := models.ID("77")
	sh.SellerID = &seller
	party := models.Party{Address: models.Address{Addressee: "Seller ApS", CountryCode: "SE"}}

	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(sh, nil).Once()
	s.oms.On("Seller", mock.Anything, models.ID("77")).Return(&party, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.MatchedBy(func(r *carrier.ShipmentRequest) bool {
		return r.Addresses.AlternativeShipper.Name1 == "Seller ApS" && r.Addresses.AlternativeShipper.CountryNum == 752
	})).Return(&carrier.Result{Kind: carrier.ValidationFailure, FieldErrors: map[string][]string{"x": {"nope"}}}, nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, models.ID("E100"), messageWith(models.MessageTypeError, "nope")).Return(nil).Once()

	out, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	s.Require().Equal(messages.OutcomeRejected, out.Kind)
	s.oms.AssertNotCalled(s.T(), "Context", mock.Anything, mock.Anything)
	s.oms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestHandle_DefaultSenderSkipsContextLookup() {
	def := testSender()
	def.Address.Addressee = "Configured"
	s.svc.WithDefaultSender(&def)

	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.MatchedBy(func(r *carrier.ShipmentRequest) bool {
		return r.Addresses.AlternativeShipper.Name1 == "Configured"
	})).Return(&carrier.Result{Kind: carrier.ValidationFailure, FieldErrors: map[string][]string{"x": {"nope"}}}, nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	s.oms.AssertNotCalled(s.T(), "Context", mock.Anything, mock.Anything)
	s.oms.AssertNotCalled(s.T(), "Seller", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestHandle_SellerNotFound() {
	sh := s100()
	seller := models.ID("404")
	sh.SellerID = &seller

	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(sh, nil).Once()
	s.oms.On("Seller", mock.Anything, models.ID("404")).Return(nil, &oms.HTTPError{Method: "GET", Path: "sellers/404", StatusCode: 404}).Once()
	s.oms.On("PostEventMessage", mock.Anything, models.ID("E100"), mock.MatchedBy(func(m models.EventMessage) bool {
		return m.MessageType == models.MessageTypeError && m.MessageText == "seller 404 not found"
	})).Return(nil).Once()

	out, err := s.svc.Handle(context.Background(), s.trigger())
	var snf *SellerNotFoundError
	s.Require().True(errors.As(err, &snf))
	s.Require().False(IsRetryable(err))
	s.Require().Equal(messages.OutcomeMappingFailed, out.Kind)
	s.carrier.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
	s.oms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestHandle_UnknownCountryNeverCallsCarrier() {
	sh := s100()
	sh.DeliveryAddress.CountryCode = "XX"
	contextParty := testSender()

	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(sh, nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, models.ID("E100"), mock.MatchedBy(func(m models.EventMessage) bool {
		return m.MessageType == models.MessageTypeError
	})).Return(nil).Once()

	_, err := s.svc.Handle(context.Background(), s.trigger())
	var uc *UnknownCountryError
	s.Require().True(errors.As(err, &uc))
	s.Require().Equal("XX", uc.Code)
	s.carrier.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
	s.oms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestHandle_CarrierNotFound() {
	resolver := &MockResolver{}
	resolver.On("Resolve", mock.Anything, "GLS").Return(models.CarrierSetup{}, &CarrierNotFoundError{Name: "GLS"}).Once()
	svc := New(s.oms, resolver, s.carrier, "GLS").WithClock(fixedNow)
	s.oms.On("PostEventMessage", mock.Anything, models.ID("E100"), mock.Anything).Return(nil).Once()

	_, err := svc.Handle(context.Background(), s.trigger())
	var nf *CarrierNotFoundError
	s.Require().True(errors.As(err, &nf))
	s.oms.AssertNotCalled(s.T(), "Shipment", mock.Anything, mock.Anything)
	s.carrier.AssertNotCalled(s.T(), "CreateShipment", mock.Anything, mock.Anything)
	s.oms.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestHandle_TransportFailurePropagatesWithoutMessage() {
	contextParty := testSender()
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.Anything).
		Return(nil, &carrier.TransportError{StatusCode: 503, Err: errors.New("unavailable")}).Once()

	out, err := s.svc.Handle(context.Background(), s.trigger())
	var te *carrier.TransportError
	s.Require().True(errors.As(err, &te))
	s.Require().True(IsRetryable(err))
	s.Require().Equal(messages.OutcomeTransportFailure, out.Kind)
	s.Require().Empty(out.Result)
	s.oms.AssertNotCalled(s.T(), "PostEventMessage", mock.Anything, mock.Anything, mock.Anything)
	s.Require().Equal(int64(1), s.svc.Stats().TotalFailed)
}

func (s *ServiceSuite) TestHandle_ShipmentFetchErrorIsRetryable() {
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(nil, &oms.HTTPError{Method: "GET", Path: "shipments/S100", StatusCode: 500}).Once()

	_, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().Error(err)
	s.Require().True(IsRetryable(err))
	s.oms.AssertNotCalled(s.T(), "PostEventMessage", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestHandle_InvalidTrigger() {
	_, err := s.svc.Handle(context.Background(), messages.LabelRequested{ShipmentID: "S100"})
	s.Require().ErrorIs(err, ErrInvalidTrigger)
	s.Require().False(IsRetryable(err))
	s.oms.AssertNotCalled(s.T(), "Shipment", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestHandle_NotificationFailureDoesNotMaskOutcome() {
	rec := &MockRecorder{}
	rec.On("ObserveCarrierCall", string(carrier.ValidationFailure), mock.Anything).Once()
	rec.On("ObserveRun", messages.OutcomeRejected).Once()
	rec.On("NotificationFailed").Once()
	s.svc.WithMetrics(rec)

	contextParty := testSender()
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.Anything).
		Return(&carrier.Result{Kind: carrier.ValidationFailure, FieldErrors: map[string][]string{"A": {"bad"}}}, nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("oms down")).Once()

	out, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	s.Require().Equal(messages.OutcomeRejected, out.Kind)
	s.Require().Error(out.NotifyErr)
	rec.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestHandle_RedeliveredEventIsSkipped() {
	marks := &MockEventMarks{}
	marks.On("Done", mock.Anything, models.ID("E100")).Return(messages.OutcomeLabeled, true, nil).Once()
	s.svc.WithEventMarks(marks, time.Hour)

	out, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	s.Require().True(out.Skipped)
	s.Require().Equal(messages.OutcomeLabeled, out.Kind)
	s.resolver.AssertNotCalled(s.T(), "Resolve", mock.Anything, mock.Anything)
	s.oms.AssertNotCalled(s.T(), "Shipment", mock.Anything, mock.Anything)
	s.Require().Equal(int64(1), s.svc.Stats().TotalSkipped)
}

func (s *ServiceSuite) TestHandle_RecordsMarksJournalAndOutcome() {
	marks := &MockEventMarks{}
	marks.On("Done", mock.Anything, models.ID("E100")).Return("", false, nil).Once()
	marks.On("MarkDone", mock.Anything, models.ID("E100"), messages.OutcomeRejected, time.Hour).Return(nil).Once()
	journal := &MockJournal{}
	journal.On("RecordRun", mock.Anything, mock.MatchedBy(func(r models.LabelRun) bool {
		return r.ID != "" && r.ShipmentID == "S100" && r.EventID == "E100" && r.Outcome == messages.OutcomeRejected && r.Error == nil
	})).Return(nil).Once()
	producer := &MockProducer{}
	producer.On("Publish", mock.Anything, "shipment.label-outcome", []byte("S100"), mock.MatchedBy(func(b []byte) bool {
		var m messages.LabelOutcome
		return json.Unmarshal(b, &m) == nil && m.Outcome == messages.OutcomeRejected && m.EventID == "E100"
	})).Return(nil).Once()
	s.svc.WithEventMarks(marks, time.Hour).WithJournal(journal).WithProducer(producer, "shipment.label-outcome")

	contextParty := testSender()
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.Anything).
		Return(&carrier.Result{Kind: carrier.ValidationFailure, FieldErrors: map[string][]string{"A": {"bad"}}}, nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	marks.AssertExpectations(s.T())
	journal.AssertExpectations(s.T())
	producer.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestHandle_TransportFailureIsNotMarkedDone() {
	marks := &MockEventMarks{}
	marks.On("Done", mock.Anything, models.ID("E100")).Return("", false, nil).Once()
	s.svc.WithEventMarks(marks, time.Hour)

	contextParty := testSender()
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.Anything).
		Return(nil, &carrier.TransportError{Err: errors.New("dial tcp: refused")}).Once()

	_, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().Error(err)
	marks.AssertNotCalled(s.T(), "MarkDone", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestHandle_ThrottlePausesButStillCalls() {
	rl := &MockRateLimiter{}
	rl.On("AllowCall", mock.Anything, "GLS", fixedNow(), int64(1)).Return(false, int64(2), nil).Once()
	s.svc.WithRateLimit(rl, 1, time.Millisecond)

	contextParty := testSender()
	s.oms.On("Shipment", mock.Anything, models.ID("S100")).Return(s100(), nil).Once()
	s.oms.On("Context", mock.Anything, models.ID("CTX1")).Return(&contextParty, nil).Once()
	s.carrier.On("CreateShipment", mock.Anything, mock.Anything).
		Return(&carrier.Result{Kind: carrier.ValidationFailure, FieldErrors: map[string][]string{"A": {"bad"}}}, nil).Once()
	s.oms.On("PostEventMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	_, err := s.svc.Handle(context.Background(), s.trigger())
	s.Require().NoError(err)
	rl.AssertExpectations(s.T())
	s.carrier.AssertExpectations(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
