package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workledger/workledger/pkg/cerr"
)

func TestPrincipalHas(t *testing.T) {
	p := Principal{UserID: "7", Role: "staff", Permissions: []string{CapTaskProgress, CapTaskRead}}
	assert.True(t, p.Has(CapTaskProgress))
	assert.False(t, p.Has(CapTaskArchive))
}

func TestAdminBypassesCapabilities(t *testing.T) {
	p := Principal{UserID: "1", Role: RoleAdmin}
	assert.True(t, p.Has(CapTaskArchive))
	assert.NoError(t, Require(p, CapTaskOverride, "TASK-1"))
}

func TestRequireMissingCapability(t *testing.T) {
	p := Principal{UserID: "7", Role: "staff"}
	err := Require(p, CapTaskAssign, "TASK-1")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))
	assert.True(t, cerr.IsReason(err, ReasonUnauthorized))
}

func TestRequireMissingPrincipal(t *testing.T) {
	err := Require(Principal{}, CapTaskRead, "")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unauthenticated))
}

func TestPrincipalMiddleware(t *testing.T) {
	var got Principal
	handler := PrincipalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set(HeaderUserID, "42")
	req.Header.Set(HeaderRole, "manager")
	req.Header.Set(HeaderPermissions, "task.create, task.assign")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "42", got.UserID)
	assert.Equal(t, "manager", got.Role)
	assert.Equal(t, []string{"task.create", "task.assign"}, got.Permissions)
}
