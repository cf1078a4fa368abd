package order

import "github.com/appetiteclub/tavola/pkg/fault"

var (
	ErrOrderNotFound    = fault.New(fault.NotFound, "order_not_found", "No such order found")
	ErrItemNotFound     = fault.New(fault.NotFound, "item_not_found", "Menu item not found")
	ErrCustomerNotFound = fault.New(fault.NotFound, "customer_not_found", "Customer not found")
	ErrAgentNotFound    = fault.New(fault.NotFound, "agent_not_found", "No delivery boy assigned to this order")

	ErrNoAvailableAgent  = fault.New(fault.Rejected, "no_available_agent", "No available delivery boy with less than 10 orders.")
	ErrInvalidTransition = fault.New(fault.Rejected, "invalid_transition", "Invalid status transition")
	ErrOrderClosed       = ErrInvalidTransition.With("Cannot change the status of a completed or canceled order")
	ErrAgentExists       = fault.New(fault.Rejected, "agent_exists", "Email already exists.")
)
