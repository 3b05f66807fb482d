package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantID_RoundTrip(t *testing.T) {
	ctx := SetTenantID(context.Background(), "acme")
	assert.Equal(t, "acme", TenantID(ctx))
}

func TestTenantID_Unset(t *testing.T) {
	assert.Equal(t, "", TenantID(context.Background()))
}

func TestUserID_RoundTrip(t *testing.T) {
	ctx := SetUserID(context.Background(), "u_1")
	assert.Equal(t, "u_1", UserID(ctx))
}

func TestUserID_Unset(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
}
