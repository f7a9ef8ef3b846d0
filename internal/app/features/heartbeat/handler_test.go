package heartbeat_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/calebdock/comphub/internal/app/features/heartbeat"
	userstore "github.com/calebdock/comphub/internal/app/store/users"
	"github.com/calebdock/comphub/internal/app/system/identity"
	"github.com/calebdock/comphub/internal/testutil"
	"go.uber.org/zap"
)

func TestServeHeartbeat_NoIdentityIsSilentOK(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := heartbeat.NewHandler(userstore.New(db), zap.NewNop())

	req := httptest.NewRequest("POST", "/api/heartbeat", nil)
	rec := httptest.NewRecorder()

	h.ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestServeHeartbeat_TouchesUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	fx := testutil.NewFixtures(t, db)

	user := fx.CreateUser(ctx, "participant")

	h := heartbeat.NewHandler(userstore.New(db), zap.NewNop())

	req := httptest.NewRequest("POST", "/api/heartbeat", nil)
	req.Header.Set(identity.HeaderUserID, user.ID.Hex())
	rec := httptest.NewRecorder()

	h.ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rec.Code)
	}

	got, err := userstore.New(db).GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.LastActiveAt.IsZero() {
		t.Error("last_active_at was not set")
	}
}
