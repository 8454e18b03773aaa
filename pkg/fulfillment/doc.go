// Package fulfillment consumes task-status events from the external
// inventory engine and drives order items through their lifecycle.
//
// Events correlate to order items solely by task reference. Delivery is
// at-least-once and possibly reordered, so the processor serializes work
// per task reference, guards every write with the item's version, treats
// terminal states as final, and keeps each event's mutations atomic. An
// event whose reference matches no item is surfaced as a hard error since
// that means upstream data is inconsistent, not that delivery was early.
package fulfillment
