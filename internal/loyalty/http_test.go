// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package loyalty_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/rewards/internal/auth/authz"
	"github.com/taibuivan/rewards/internal/loyalty"
	"github.com/taibuivan/rewards/internal/platform/apperr"
	"github.com/taibuivan/rewards/internal/platform/ctxutil"
	"github.com/taibuivan/rewards/pkg/pagination"
)

// # Fakes

// memoryRepository serves both the read contract and the relationship
// questions from the same rows, like the Postgres repository does.
type memoryRepository struct {
	programs    map[int64]loyalty.Program
	enrollments []loyalty.Enrollment
	cards       map[int64]loyalty.Card
}

func (r *memoryRepository) ListProgramsByBusiness(_ context.Context, businessID int64, page loyalty.Page) ([]loyalty.Program, int, error) {
	var out []loyalty.Program
	for _, program := range r.programs {
		if program.BusinessID == businessID {
			out = append(out, program)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepository) FindProgram(_ context.Context, programID int64) (*loyalty.Program, error) {
	program, ok := r.programs[programID]
	if !ok {
		return nil, apperr.NotFound("Program")
	}
	return &program, nil
}

func (r *memoryRepository) FindEnrollment(_ context.Context, programID, customerID int64) (*loyalty.Enrollment, error) {
	for _, enrollment := range r.enrollments {
		if enrollment.ProgramID == programID && enrollment.CustomerID == customerID {
			return &enrollment, nil
		}
	}
	return nil, apperr.NotFound("Enrollment")
}

func (r *memoryRepository) ListEnrollmentsByCustomer(_ context.Context, customerID, businessID int64, _ loyalty.Page) ([]loyalty.Enrollment, int, error) {
	var out []loyalty.Enrollment
	for _, enrollment := range r.enrollments {
		if enrollment.CustomerID != customerID {
			continue
		}
		if businessID != 0 && r.programs[enrollment.ProgramID].BusinessID != businessID {
			continue
		}
		out = append(out, enrollment)
	}
	return out, len(out), nil
}

func (r *memoryRepository) FindCard(_ context.Context, cardID int64) (*loyalty.Card, error) {
	card, ok := r.cards[cardID]
	if !ok {
		return nil, apperr.NotFound("Card")
	}
	return &card, nil
}

func (r *memoryRepository) HasActiveEnrollment(_ context.Context, customerID, programID int64) (bool, error) {
	for _, enrollment := range r.enrollments {
		if enrollment.CustomerID == customerID && enrollment.ProgramID == programID && enrollment.Status == loyalty.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) BusinessHasCustomer(_ context.Context, businessID, customerID int64) (bool, error) {
	for _, enrollment := range r.enrollments {
		if enrollment.CustomerID == customerID && enrollment.Status == loyalty.StatusActive &&
			r.programs[enrollment.ProgramID].BusinessID == businessID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepository) ProgramOwner(_ context.Context, programID int64) (int64, bool, error) {
	program, ok := r.programs[programID]
	return program.BusinessID, ok, nil
}

func (r *memoryRepository) CardOwnership(_ context.Context, cardID int64) (authz.CardOwnership, bool, error) {
	card, ok := r.cards[cardID]
	return authz.CardOwnership{CustomerID: card.CustomerID, BusinessID: card.BusinessID}, ok, nil
}

// # Fixture

var (
	alice    = authz.Principal{UserID: 7, Role: authz.RoleCustomer, Status: authz.StatusActive}
	bob      = authz.Principal{UserID: 8, Role: authz.RoleCustomer, Status: authz.StatusActive}
	bakery   = authz.Principal{UserID: 42, Role: authz.RoleBusiness, Status: authz.StatusActive}
	cafe     = authz.Principal{UserID: 43, Role: authz.RoleOwner, Status: authz.StatusActive}
	operator = authz.Principal{UserID: 1, Role: authz.RoleAdmin, Status: authz.StatusActive}
)

func newRouter(t *testing.T) (http.Handler, *authz.Principal) {
	t.Helper()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := &memoryRepository{
		programs: map[int64]loyalty.Program{
			10: {ID: 10, BusinessID: 42, Name: "Bread Club", PointsPerVisit: 5, Status: loyalty.StatusActive, CreatedAt: now},
			11: {ID: 11, BusinessID: 42, Name: "Pastry Pass", PointsPerVisit: 2, Status: loyalty.StatusPaused, CreatedAt: now},
			20: {ID: 20, BusinessID: 43, Name: "Coffee Stamps", PointsPerVisit: 1, Status: loyalty.StatusActive, CreatedAt: now},
		},
		enrollments: []loyalty.Enrollment{
			{ID: 1, ProgramID: 10, CustomerID: 7, Points: 120, Status: loyalty.StatusActive, EnrolledAt: now},
			{ID: 2, ProgramID: 20, CustomerID: 7, Points: 9, Status: loyalty.StatusActive, EnrolledAt: now},
			{ID: 3, ProgramID: 20, CustomerID: 8, Points: 3, Status: loyalty.StatusActive, EnrolledAt: now},
			{ID: 4, ProgramID: 10, CustomerID: 8, Points: 0, Status: loyalty.StatusInactive, EnrolledAt: now},
		},
		cards: map[int64]loyalty.Card{
			100: {ID: 100, ProgramID: 10, CustomerID: 7, BusinessID: 42, Balance: 4, Status: loyalty.StatusActive, IssuedAt: now},
		},
	}

	engine := authz.NewEngine(repo, nil)
	handler := loyalty.NewHandler(loyalty.NewService(repo, nil), engine)

	current := &authz.Principal{}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if current.UserID != 0 {
				r = r.WithContext(ctxutil.WithPrincipal(r.Context(), *current))
			}
			next.ServeHTTP(w, r)
		})
	})
	handler.RegisterRoutes(router)
	return router, current
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

// # Tests

/*
TestRoutes_Isolation checks every guarded route against the principals on
both sides of the tenant boundary.
*/
func TestRoutes_Isolation(t *testing.T) {
	router, current := newRouter(t)

	tests := []struct {
		name      string
		principal authz.Principal
		path      string
		status    int
	}{
		{"owner lists programs", bakery, "/businesses/42/programs", http.StatusOK},
		{"other business lists programs", cafe, "/businesses/42/programs", http.StatusForbidden},
		{"customer lists programs", alice, "/businesses/42/programs", http.StatusForbidden},
		{"admin lists programs", operator, "/businesses/42/programs", http.StatusOK},

		{"owner reads program", bakery, "/programs/10", http.StatusOK},
		{"enrolled customer reads program", alice, "/programs/10", http.StatusOK},
		{"inactive enrollment reads program", bob, "/programs/10", http.StatusForbidden},
		{"other business reads program", cafe, "/programs/10", http.StatusForbidden},
		{"unknown program", bakery, "/programs/999", http.StatusForbidden},

		{"customer reads enrollment", alice, "/programs/10/enrollment", http.StatusOK},
		{"business reads enrollment", bakery, "/programs/10/enrollment", http.StatusForbidden},

		{"business reads its customer", bakery, "/customers/7/enrollments", http.StatusOK},
		{"business reads stranger", bakery, "/customers/8/enrollments", http.StatusForbidden},
		{"customer reads customer", alice, "/customers/7/enrollments", http.StatusForbidden},

		{"card holder", alice, "/cards/100", http.StatusOK},
		{"card issuer", bakery, "/cards/100", http.StatusOK},
		{"unrelated customer", bob, "/cards/100", http.StatusForbidden},
		{"unrelated business", cafe, "/cards/100", http.StatusForbidden},
		{"unknown card", alice, "/cards/999", http.StatusForbidden},
		{"admin unknown card", operator, "/cards/999", http.StatusNotFound},

		{"bad id", alice, "/cards/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*current = tt.principal
			assert.Equal(t, tt.status, get(router, tt.path).Code)
		})
	}
}

func TestRoutes_Anonymous(t *testing.T) {
	router, _ := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/cards/100").Code)
}

/*
TestListPrograms_Paginated returns the owner's programs with page metadata.
*/
func TestListPrograms_Paginated(t *testing.T) {
	router, current := newRouter(t)
	*current = bakery

	recorder := get(router, "/businesses/42/programs?page=1&limit=10")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Data []loyalty.Program `json:"data"`
		Meta pagination.Meta   `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))

	require.Len(t, body.Data, 2)
	assert.Equal(t, "Bread Club", body.Data[0].Name)
	assert.Equal(t, pagination.Meta{Page: 1, Limit: 10, Total: 2, TotalPages: 1}, body.Meta)
}

/*
TestListCustomerEnrollments_ScopedToBusiness hides enrollments the customer
holds with other businesses.
*/
func TestListCustomerEnrollments_ScopedToBusiness(t *testing.T) {
	router, current := newRouter(t)

	decode := func(recorder *httptest.ResponseRecorder) []loyalty.Enrollment {
		var body struct {
			Data []loyalty.Enrollment `json:"data"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
		return body.Data
	}

	*current = bakery
	recorder := get(router, "/customers/7/enrollments")
	require.Equal(t, http.StatusOK, recorder.Code)
	enrollments := decode(recorder)
	require.Len(t, enrollments, 1)
	assert.Equal(t, int64(10), enrollments[0].ProgramID)

	*current = operator
	recorder = get(router, "/customers/7/enrollments")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decode(recorder), 2)
}

/*
TestGetEnrollment_Target reads the caller's own enrollment, and requires an
explicit customer for admins.
*/
func TestGetEnrollment_Target(t *testing.T) {
	router, current := newRouter(t)

	*current = alice
	recorder := get(router, "/programs/10/enrollment")
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Data loyalty.Enrollment `json:"data"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
	assert.Equal(t, int64(120), body.Data.Points)

	*current = operator
	assert.Equal(t, http.StatusBadRequest, get(router, "/programs/10/enrollment").Code)
	assert.Equal(t, http.StatusOK, get(router, "/programs/10/enrollment?customer_id=8").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/programs/11/enrollment?customer_id=8").Code)
}
