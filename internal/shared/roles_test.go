package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role    Role
		cap     Capability
		allowed bool
	}{
		{RoleAdmin, CapSystemReset, true},
		{RoleAdmin, CapOrderConfirm, true},
		{RoleRegister, CapOrderConfirm, true},
		{RoleRegister, CapOrderCancel, true},
		{RoleRegister, CapOrderComplete, false},
		{RoleRegister, CapMenuEdit, false},
		{RoleKitchen, CapOrderComplete, true},
		{RoleKitchen, CapOrderRestore, true},
		{RoleKitchen, CapKitchenSelect, true},
		{RoleKitchen, CapOrderDeliver, false},
		{RoleDelivery, CapOrderDeliver, true},
		{RoleDelivery, CapOrderCancel, false},
		{RoleUnauthenticated, CapOrderConfirm, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.role.HasCapability(tc.cap),
			"%s / %s", tc.role, tc.cap)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleDelivery.Valid())
	assert.False(t, RoleUnauthenticated.Valid())
	assert.False(t, Role("waiter").Valid())
}

func TestAuthorize(t *testing.T) {
	sess := &Session{}
	sess.SetUser("1", RoleKitchen)
	ctx := ContextWithSession(context.Background(), sess)

	require.NoError(t, Authorize(ctx, CapOrderComplete))

	err := Authorize(ctx, CapSystemReset)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, Authorize(context.Background(), CapOrderConfirm), ErrForbidden)
}
