package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"finlink/internal/shared/auth"
)

func TestAuth(t *testing.T) {
	jwt := auth.NewJWT("test-secret")
	validToken, _ := jwt.Generate("u1", "test@example.com")

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedUser   bool
	}{
		{"Valid Token", "Bearer " + validToken, http.StatusOK, true},
		{"Lowercase Scheme", "bearer " + validToken, http.StatusOK, true},
		{"No Token", "", http.StatusUnauthorized, false},
		{"Wrong Scheme", "Basic " + validToken, http.StatusUnauthorized, false},
		{"Empty Bearer", "Bearer ", http.StatusUnauthorized, false},
		{"Invalid Token", "Bearer invalid", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userID, ok := UserIDFromContext(r.Context())
				if !ok && tt.expectedUser {
					t.Error("Expected user ID in context, got none")
				}
				if ok && !tt.expectedUser {
					t.Error("Unexpected user ID in context")
				}
				if ok && userID != "u1" {
					t.Errorf("Expected user ID u1, got %s", userID)
				}
				w.WriteHeader(http.StatusOK)
			})

			handler := Auth(jwt)(nextHandler)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("empty context should carry no user")
	}
	if _, ok := UserIDFromContext(WithUserID(context.Background(), "")); ok {
		t.Error("blank user ID should not count")
	}
	if id, ok := UserIDFromContext(WithUserID(context.Background(), "u1")); !ok || id != "u1" {
		t.Errorf("UserIDFromContext() = %q, %v", id, ok)
	}
}
