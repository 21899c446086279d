package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-live-queue/internal/handler"
	"github.com/iliyamo/salon-live-queue/internal/model"
	"github.com/iliyamo/salon-live-queue/internal/realtime"
	"github.com/iliyamo/salon-live-queue/internal/utils"
)

type emptyStore struct{}

func (emptyStore) ListStaffByShop(context.Context, string) ([]model.Staff, error) { return nil, nil }

func (emptyStore) ListBookingsForShop(context.Context, string, string) ([]model.Booking, error) {
	return nil, nil
}

func (emptyStore) ListBookingsForStaff(context.Context, string, string) ([]model.Booking, error) {
	return nil, nil
}

func (emptyStore) GetByIDAndShop(context.Context, string, string) (*model.Staff, error) {
	return &model.Staff{ID: "s1", ShopID: "shop1", Active: true}, nil
}

func (emptyStore) GetByID(context.Context, string) (*model.Booking, error) {
	return &model.Booking{ID: "b1", StaffID: "s1", ShopID: "shop1", Date: "2024-03-15"}, nil
}

func pass(next echo.HandlerFunc) echo.HandlerFunc { return next }

type countingPublisher struct{ n int }

func (p *countingPublisher) Publish(context.Context, realtime.MutationEvent) error {
	p.n++
	return nil
}

func TestInternalEventsRequireRole(t *testing.T) {
	const secret = "test-secret"
	rooms := realtime.NewManager(emptyStore{}, realtime.NewHub(), realtime.Options{})
	t.Cleanup(rooms.Close)
	pub := &countingPublisher{}
	h := handler.NewQueueHandler(rooms, pub, emptyStore{}, emptyStore{}, time.UTC, 4)

	e := echo.New()
	RegisterRoutes(e)
	RegisterQueue(e, h, secret, pass, pass)

	token := func(role string) string {
		tok, err := utils.NewAccessToken(secret, "svc-1", role, time.Minute)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		return tok.Token
	}
	body := `{"type":"bookingCreated","shop_id":"shop1","booking_id":"b1"}`
	cases := []struct {
		name string
		auth string
		want int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"customer", "Bearer " + token("CUSTOMER"), http.StatusForbidden},
		{"service", "Bearer " + token("SERVICE"), http.StatusAccepted},
		{"staff", "Bearer " + token("STAFF"), http.StatusAccepted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/internal/events", strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
	if pub.n != 2 {
		t.Fatalf("expected 2 accepted events, got %d", pub.n)
	}
}

func TestPublicRoutesRegistered(t *testing.T) {
	rooms := realtime.NewManager(emptyStore{}, realtime.NewHub(), realtime.Options{})
	t.Cleanup(rooms.Close)
	h := handler.NewQueueHandler(rooms, realtime.NewLocalFanout(rooms), emptyStore{}, emptyStore{}, time.UTC, 4)
	e := echo.New()
	RegisterRoutes(e)
	RegisterQueue(e, h, "secret", pass, pass)

	for _, path := range []string{"/healthz", "/v1/shops/shop1/queue", "/v1/shops/shop1/staff/s1/blocked?date=2024-03-15"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
	}
}
