package order

import (
	"context"
	"fmt"

	"github.com/appetiteclub/tavola/pkg/validation"
	"github.com/google/uuid"
)

func ValidatePlaceOrder(ctx context.Context, req PlaceOrderRequest) []string {
	if req.Customer() == "" && len(req.Items) == 0 {
		return []string{"Invalid order data."}
	}

	errors := validation.Struct(req)
	if req.Customer() == "" {
		errors = append(errors, "customerId is required")
	}
	for i, item := range req.Items {
		if item.MenuItemID == uuid.Nil {
			errors = append(errors, fmt.Sprintf("items[%d].menuId is required", i))
		}
	}
	return errors
}

func ValidateChangeStatus(ctx context.Context, req ChangeStatusRequest) []string {
	target := req.Target()
	if target == "" {
		return []string{"status is required"}
	}
	switch target {
	case StatusPending, StatusShipped, StatusDelivered, StatusCanceled:
		return nil
	}
	return []string{fmt.Sprintf("status must be one of: %s, %s, %s, %s", StatusPending, StatusShipped, StatusDelivered, StatusCanceled)}
}

func ValidateAgentCreate(ctx context.Context, req AgentCreateRequest) []string {
	return validation.Struct(req)
}

func ValidateAgentStatus(ctx context.Context, req AgentStatusRequest) []string {
	return validation.Struct(req)
}
