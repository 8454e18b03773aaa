package catalog

import (
	"context"
	"fmt"

	"github.com/catalogforge/catalog/pkg/auth"
	"github.com/catalogforge/catalog/pkg/contextkeys"
	"github.com/catalogforge/catalog/pkg/observability"
)

// Provisioner dispatches order items to the external inventory engine and
// reports back the task reference tracking the work.
type Provisioner interface {
	StartTask(ctx context.Context, req ProvisionRequest) (taskRef string, err error)
}

// ProvisionRequest is the payload handed to the provisioner for one item.
type ProvisionRequest struct {
	ServiceOfferingRef string
	ServicePlanRef     string
	Count              int
	Parameters         map[string]any
	Context            map[string]string
}

// AddToOrderParams is the validated input for adding an item to an order.
type AddToOrderParams struct {
	OrderID           int64
	PortfolioItemID   int64
	Count             int
	ServicePlanRef    string
	ServiceParameters map[string]any
}

// Service implements the ordering workflow on top of the store.
type Service struct {
	store       *Store
	provisioner Provisioner
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService creates the ordering service.
func NewService(store *Store, provisioner Provisioner, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:       store,
		provisioner: provisioner,
		logger:      logger,
		metrics:     metrics,
	}
}

// CreateOrder opens an empty order owned by the calling principal.
func (s *Service) CreateOrder(ctx context.Context, principal *auth.Principal) (*Order, error) {
	o := &Order{Owner: principal.Username, Tenant: principal.Tenant}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// AddToOrder validates params, captures the request's forwardable headers,
// and attaches a new order item to the order. The item starts in the
// created state; dispatch happens at submission.
func (s *Service) AddToOrder(ctx context.Context, principal *auth.Principal, params AddToOrderParams) (*OrderItem, error) {
	if params.Count <= 0 {
		return nil, &ValidationError{Field: "count", Reason: "must be positive"}
	}
	if params.ServicePlanRef == "" {
		return nil, &ValidationError{Field: "service_plan_ref", Reason: "must not be empty"}
	}

	order, err := s.store.GetOrder(ctx, params.OrderID)
	if err != nil {
		return nil, err
	}
	if order.State != OrderCreated {
		return nil, &ValidationError{Field: "order_id", Reason: fmt.Sprintf("order is %s, items can only be added before submission", order.State)}
	}

	item, err := s.store.GetPortfolioItem(ctx, params.PortfolioItemID)
	if err != nil {
		return nil, err
	}
	if !item.Orderable {
		return nil, &ValidationError{Field: "portfolio_item_id", Reason: "portfolio item is not orderable"}
	}

	oi := &OrderItem{
		OrderID:           order.ID,
		PortfolioItemID:   item.ID,
		Owner:             principal.Username,
		Tenant:            principal.Tenant,
		Count:             params.Count,
		ServicePlanRef:    params.ServicePlanRef,
		ServiceParameters: params.ServiceParameters,
		Context:           contextkeys.ForwardableHeaders(ctx),
	}
	if err := s.store.CreateOrderItem(ctx, oi); err != nil {
		return nil, err
	}
	return oi, nil
}

// SubmitOrder dispatches every item on the order to the provisioner. Each
// successful dispatch assigns the item's permanent task reference and moves
// it to pending. A dispatch failure marks that item failed with an error
// progress message; the remaining items are still dispatched.
func (s *Service) SubmitOrder(ctx context.Context, orderID int64) (*Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.State != OrderCreated {
		return nil, &ValidationError{Field: "order_id", Reason: fmt.Sprintf("order is %s, only created orders can be submitted", order.State)}
	}

	items, err := s.store.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "order_id", Reason: "order has no items"}
	}

	if err := s.store.MarkOrderSubmitted(ctx, orderID); err != nil {
		return nil, err
	}
	s.metrics.OrdersSubmittedTotal.Inc()

	for _, oi := range items {
		if err := s.dispatchItem(ctx, oi); err != nil {
			s.metrics.ProvisioningDispatchTotal.WithLabelValues("error").Inc()
			s.metrics.ProvisioningDispatchErrors.Inc()
			s.logger.WithError(err).WithField("order_item_id", oi.ID).Error("Failed to dispatch order item")
			s.failDispatch(ctx, oi, err)
		}
	}

	if _, err := s.store.RefreshOrderState(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) dispatchItem(ctx context.Context, oi *OrderItem) error {
	pi, err := s.store.GetPortfolioItem(ctx, oi.PortfolioItemID)
	if err != nil {
		return err
	}

	taskRef, err := s.provisioner.StartTask(ctx, ProvisionRequest{
		ServiceOfferingRef: pi.ServiceOfferingRef,
		ServicePlanRef:     oi.ServicePlanRef,
		Count:              oi.Count,
		Parameters:         oi.ServiceParameters,
		Context:            oi.Context,
	})
	if err != nil {
		return err
	}
	s.metrics.ProvisioningDispatchTotal.WithLabelValues("success").Inc()

	if err := s.store.AssignTaskRef(ctx, oi.ID, taskRef); err != nil {
		return err
	}
	oi.ExternalTaskRef = taskRef
	oi.State = StatePending
	oi.Version++

	return s.store.TransitionOrderItem(ctx, oi, nil, []ProgressMessage{
		{Level: LevelInfo, Message: fmt.Sprintf("Ordered, task %s", taskRef)},
	})
}

func (s *Service) failDispatch(ctx context.Context, oi *OrderItem, cause error) {
	failed := StateFailed
	err := s.store.TransitionOrderItem(ctx, oi, &OrderItemUpdate{State: &failed}, []ProgressMessage{
		{Level: LevelError, Message: fmt.Sprintf("Dispatch failed: %v", cause)},
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_item_id", oi.ID).Error("Failed to record dispatch failure")
	}
}

// WorkflowRef resolves the approval workflow governing a portfolio item:
// the item's own workflow reference when set, else its portfolio's, else
// empty meaning no approval is required.
func (s *Service) WorkflowRef(ctx context.Context, itemID int64) (string, error) {
	item, err := s.store.GetPortfolioItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	if item.WorkflowRef != "" {
		return item.WorkflowRef, nil
	}
	p, err := s.store.GetPortfolio(ctx, item.PortfolioID)
	if err != nil {
		return "", err
	}
	return p.WorkflowRef, nil
}
