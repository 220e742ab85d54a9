package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := RefundRequest{Reason: "  customer <script>alert('x')</script> request "}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
	assert.NotContains(t, req.Reason, "  ")
}

func TestSanitizeStruct_PointerString(t *testing.T) {
	s := "  <b>note</b>  "
	v := struct{ Note *string }{Note: &s}
	SanitizeStruct(&v)
	assert.Equal(t, "&lt;b&gt;note&lt;/b&gt;", *v.Note)

	var empty struct{ Note *string }
	SanitizeStruct(&empty)
	assert.Nil(t, empty.Note)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	req := LoginRequest{Username: " ops "}
	SanitizeStruct(req)
	assert.Equal(t, " ops ", req.Username)
}

func TestIsSafeID(t *testing.T) {
	for _, id := range []string{"ORDER1", "ref-001", "REF_002", "a.b.c", "ABC-def_GHI.123"} {
		assert.True(t, IsSafeID(id), "expected valid: %s", id)
	}
	for _, id := range []string{"ref 001", "ref<001>", "ref;DROP", "", "ref/../x", "ref\n001"} {
		assert.False(t, IsSafeID(id), "expected invalid: %q", id)
	}
}

func TestCreatePaymentRequest_Binding(t *testing.T) {
	valid := CreatePaymentRequest{
		MerchantTransactionID: "ORDER1",
		Amount:                150.00,
		RedirectURL:           "https://shop.example.com/return?x=1&y=2",
	}

	tests := []struct {
		name    string
		mutate  func(r *CreatePaymentRequest)
		wantErr bool
	}{
		{"valid", func(r *CreatePaymentRequest) {}, false},
		{"missing id", func(r *CreatePaymentRequest) { r.MerchantTransactionID = "" }, true},
		{"unsafe id", func(r *CreatePaymentRequest) { r.MerchantTransactionID = "ORDER 1" }, true},
		{"id too long", func(r *CreatePaymentRequest) { r.MerchantTransactionID = string(make([]byte, 64)) }, true},
		{"zero amount", func(r *CreatePaymentRequest) { r.Amount = 0 }, true},
		{"negative amount", func(r *CreatePaymentRequest) { r.Amount = -1 }, true},
		{"ftp redirect", func(r *CreatePaymentRequest) { r.RedirectURL = "ftp://files.example.com" }, true},
		{"relative callback", func(r *CreatePaymentRequest) { r.CallbackURL = "/hooks" }, true},
		{"no urls", func(r *CreatePaymentRequest) { r.RedirectURL = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := binding.Validator.ValidateStruct(&req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
