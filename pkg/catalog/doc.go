// Package catalog holds the ordering domain model and its SQL store:
// portfolios, portfolio items, orders, order items, and progress messages.
//
// An order item tracks one portfolio item being provisioned. It is created
// when the item is added to an order, dispatched to the external inventory
// engine on order submission (which assigns its permanent task reference),
// and then driven through pending, running, and the terminal completed or
// failed states by the fulfillment event processor. Progress messages are
// an append-only audit trail attached to each order item.
//
// Mutation of a dispatched order item goes through Store.TransitionOrderItem,
// which applies field updates and progress messages in one transaction
// guarded by an optimistic version check.
package catalog
