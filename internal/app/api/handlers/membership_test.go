package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tunehaus/backstage/internal/app/service/membership"
	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/types"
)

// stubEngine scripts per-operation results for route tests.
type stubEngine struct {
	mintResult  *models.Membership
	mintErr     error
	renewResult *models.Membership
	renewErr    error
	accessInfo  *types.AccessInfo
	memberships []*models.Membership
	listStatus  types.MembershipStatusFilter
	txRows      []*models.Transaction
	txFilter    *membership.TransactionFilter
}

func (s *stubEngine) MintCommunityAccess(_ context.Context, _, _ string) (*models.Membership, error) {
	return s.mintResult, s.mintErr
}

func (s *stubEngine) RenewMembership(_ context.Context, _, _ string) (*models.Membership, error) {
	return s.renewResult, s.renewErr
}

func (s *stubEngine) CheckCommunityAccess(_ context.Context, _, _ string) (*types.AccessInfo, error) {
	return s.accessInfo, nil
}

func (s *stubEngine) GetUserMemberships(_ context.Context, _ string, status types.MembershipStatusFilter) ([]*models.Membership, error) {
	s.listStatus = status
	return s.memberships, nil
}

func (s *stubEngine) GetUserTransactionHistory(_ context.Context, _ string, filter *membership.TransactionFilter) ([]*models.Transaction, int64, error) {
	s.txFilter = filter
	return s.txRows, int64(len(s.txRows)), nil
}

func (s *stubEngine) ExpireDueMemberships(_ context.Context) (int, error) { panic("not used") }

func (s *stubEngine) ListExpiring(_ context.Context, _ time.Duration, _ bool) ([]*models.Membership, error) {
	panic("not used")
}

func (s *stubEngine) AutoRenewDue(_ context.Context) (int, int, error) { panic("not used") }

func (s *stubEngine) CreateCollection(_ context.Context, _ string, _ *membership.CollectionParams) (*models.NFTCollection, error) {
	panic("not used")
}

func (s *stubEngine) DeactivateCollection(_ context.Context, _ string) error { panic("not used") }

func (s *stubEngine) ScanTransactions(_ context.Context, _ *membership.ScanTransactionsRequest) (*membership.ScanTransactionsResponse, error) {
	panic("not used")
}

func newMembershipRouter(engine membership.Engine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterMembershipRoutes(r.Group("/api/v1"), engine)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiMintMembership_OK(t *testing.T) {
	stub := &stubEngine{mintResult: &models.Membership{ID: "m-1", TokenID: "token-1", IsActive: true}}
	r := newMembershipRouter(stub)

	w := postJSON(t, r, "/api/v1/memberships/mint", map[string]any{
		"user_email": "fan@example.com", "community_id": "c-1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"token-1"`)
}

func TestApiMintMembership_BadRequest(t *testing.T) {
	r := newMembershipRouter(&stubEngine{})
	w := postJSON(t, r, "/api/v1/memberships/mint", map[string]any{"user_email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiMintMembership_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"community missing", membership.ErrCommunityNotFound, http.StatusNotFound},
		{"user missing", membership.ErrUserNotFound, http.StatusNotFound},
		{"no collection", membership.ErrNoActiveCollection, http.StatusNotFound},
		{"already member", membership.ErrAlreadyMember, http.StatusConflict},
		{"sold out", membership.ErrCollectionSoldOut, http.StatusConflict},
		{"ledger down", membership.ErrLedgerMint, http.StatusBadGateway},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newMembershipRouter(&stubEngine{mintErr: tc.err})
			w := postJSON(t, r, "/api/v1/memberships/mint", map[string]any{
				"user_email": "fan@example.com", "community_id": "c-1",
			})
			require.Equal(t, tc.code, w.Code)
		})
	}
}

func TestApiRenewMembership(t *testing.T) {
	stub := &stubEngine{renewResult: &models.Membership{ID: "m-1"}}
	r := newMembershipRouter(stub)

	w := postJSON(t, r, "/api/v1/memberships/renew", map[string]any{
		"user_email": "fan@example.com", "membership_id": "m-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	stub.renewResult = nil
	stub.renewErr = membership.ErrNotMembershipOwner
	w = postJSON(t, r, "/api/v1/memberships/renew", map[string]any{
		"user_email": "fan@example.com", "membership_id": "m-1",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	stub.renewErr = membership.ErrLedgerRenew
	w = postJSON(t, r, "/api/v1/memberships/renew", map[string]any{
		"user_email": "fan@example.com", "membership_id": "m-1",
	})
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestApiCheckAccess(t *testing.T) {
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	stub := &stubEngine{accessInfo: &types.AccessInfo{HasAccess: true, MembershipID: "m-1", ExpiresAt: &expires}}
	r := newMembershipRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/access/u-1/c-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"has_access":true`)
}

func TestApiListMemberships_StatusFilter(t *testing.T) {
	stub := &stubEngine{memberships: []*models.Membership{{ID: "m-1"}}}
	r := newMembershipRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/memberships/u-1?status=expired", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, types.MembershipStatusFilterExpired, stub.listStatus)

	// No status means all.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/memberships/u-1", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, types.MembershipStatusFilterAll, stub.listStatus)
}

func TestApiListTransactions_PassesFilter(t *testing.T) {
	stub := &stubEngine{txRows: []*models.Transaction{{ID: "t-1"}}}
	r := newMembershipRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/u-1?type=renewal&status=failed&limit=5&offset=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, types.TransactionTypeRenewal, stub.txFilter.Type)
	require.Equal(t, types.TransactionStatusFailed, stub.txFilter.Status)
	require.Equal(t, 5, stub.txFilter.Limit)
	require.Equal(t, 10, stub.txFilter.Offset)
	require.Contains(t, w.Body.String(), `"total":1`)
}
