package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/readcycle-backend/pkg/errors"
)

type samplePayload struct {
	Email string `json:"email" validate:"required,email"`
	Qty   int    `json:"qty" validate:"min=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
		field   string
	}{
		{name: "valid", body: `{"email":"a@b.co","qty":1}`},
		{name: "unknown field", body: `{"email":"a@b.co","extra":true}`, wantErr: true},
		{name: "malformed", body: `{"email":`, wantErr: true},
		{name: "missing email", body: `{"qty":1}`, wantErr: true, field: "email"},
		{name: "negative qty", body: `{"email":"a@b.co","qty":-1}`, wantErr: true, field: "qty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dest samplePayload
			err := DecodeJSONBody(req, &dest)
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if tc.field != "" {
				details, _ := pkgerrors.As(err).Details().(map[string]string)
				if _, ok := details[tc.field]; !ok {
					t.Fatalf("expected detail for %s, got %v", tc.field, details)
				}
			}
		})
	}
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&active=false&bad=x", nil)

	if v, err := ParseQueryInt(req, "limit", 25, 1, 100); err != nil || v != 5 {
		t.Fatalf("limit: %d %v", v, err)
	}
	if v, err := ParseQueryInt(req, "missing", 25, 1, 100); err != nil || v != 25 {
		t.Fatalf("default: %d %v", v, err)
	}
	if _, err := ParseQueryInt(req, "bad", 25, 1, 100); err == nil {
		t.Fatalf("expected error for non numeric")
	}
	if v, err := ParseQueryBool(req, "active", true); err != nil || v {
		t.Fatalf("active: %v %v", v, err)
	}
	if _, err := ParseQueryBool(req, "bad", true); err == nil {
		t.Fatalf("expected error for non boolean")
	}
}
