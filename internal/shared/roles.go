package shared

import (
	"context"
	"fmt"
)

// Role identifies a terminal account type.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleRegister        Role = "register"
	RoleKitchen         Role = "kitchen"
	RoleDelivery        Role = "delivery"
	RoleUnauthenticated Role = ""
)

// Capability names a single operation a role may perform.
type Capability string

const (
	CapMenuEdit       Capability = "menu.edit"
	CapOrderConfirm   Capability = "order.confirm"
	CapOrderComplete  Capability = "order.complete"
	CapOrderDeliver   Capability = "order.deliver"
	CapOrderRestore   Capability = "order.restore"
	CapOrderCancel    Capability = "order.cancel"
	CapKitchenSelect  Capability = "kitchen.select"
	CapSystemReset    Capability = "system.reset"
	CapReportView     Capability = "report.view"
	CapTransferManage Capability = "transfer.manage"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleAdmin: {
		CapMenuEdit:       true,
		CapOrderConfirm:   true,
		CapOrderComplete:  true,
		CapOrderDeliver:   true,
		CapOrderRestore:   true,
		CapOrderCancel:    true,
		CapKitchenSelect:  true,
		CapSystemReset:    true,
		CapReportView:     true,
		CapTransferManage: true,
	},
	RoleRegister: {
		CapOrderConfirm: true,
		CapOrderCancel:  true,
	},
	RoleKitchen: {
		CapOrderComplete: true,
		CapOrderRestore:  true,
		CapKitchenSelect: true,
	},
	RoleDelivery: {
		CapOrderDeliver: true,
	},
}

// HasCapability reports whether role grants cap.
func (r Role) HasCapability(cap Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	return caps[cap]
}

// Valid reports whether role is a known account type.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRegister, RoleKitchen, RoleDelivery:
		return true
	}
	return false
}

// Authorize returns ErrForbidden unless the caller in ctx holds cap.
func Authorize(ctx context.Context, cap Capability) error {
	role := RoleFromContext(ctx)
	if role.HasCapability(cap) {
		return nil
	}
	return fmt.Errorf("role %q lacks %q: %w", role, cap, ErrForbidden)
}
