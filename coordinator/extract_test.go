package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOrderID(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"I want to return order ORD-84315", "ORD-84315"},
		{"refund ord-1234 please", "ORD-1234"},
		{"my order is 44012", "ORD-44012"},
		{"order number 123456", "ORD-123456"},
		{"order #789", ""},
		{"order #7890", "ORD-7890"},
		{"quiero devolver mi pedido número 25836", "ORD-25836"},
		{"devolver orden 12345", "ORD-12345"},
		{"número de pedido 25836", "ORD-25836"},
		{"numero pedido 12345", "ORD-12345"},
		{"compra 99881 defectuosa", "ORD-99881"},
		{"it arrived broken, ref 55012", "ORD-55012"},
		{"what is your refund policy?", ""},
		{"I ordered 2 items", ""},
		{"code 123 only", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractOrderID(tc.text), "text: %s", tc.text)
	}
}

func TestExtractSKU(t *testing.T) {
	assert.Equal(t, "SKU-1042", ExtractSKU("exchange my sku-1042 for a new one"))
	assert.Equal(t, "", ExtractSKU("exchange my shoes"))
}

func TestIsConfirmation(t *testing.T) {
	for _, text := range []string{"yes", "Yes please", "sí", "confirmo", "ok go ahead", "vale"} {
		assert.True(t, IsConfirmation(text), text)
	}
	assert.False(t, IsConfirmation("what about my other order?"))
}

func TestIsDeclination(t *testing.T) {
	for _, text := range []string{"no", "no thanks", "cancel that", "cancelar"} {
		assert.True(t, IsDeclination(text), text)
	}
	assert.False(t, IsDeclination("tell me more"))
}
