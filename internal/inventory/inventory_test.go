package inventory

import "testing"

func TestCreateProductInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      CreateProductInput
		wantErr bool
	}{
		{"valid", CreateProductInput{SKU: "A-1", Name: "Widget", Quantity: 3, UnitPrice: 1250}, false},
		{"zero stock is fine", CreateProductInput{SKU: "A-1", Name: "Widget"}, false},
		{"missing sku", CreateProductInput{Name: "Widget"}, true},
		{"blank name", CreateProductInput{SKU: "A-1", Name: "  "}, true},
		{"negative quantity", CreateProductInput{SKU: "A-1", Name: "Widget", Quantity: -1}, true},
		{"negative price", CreateProductInput{SKU: "A-1", Name: "Widget", UnitPrice: -5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProduct_LowStock(t *testing.T) {
	p := Product{Quantity: 5}
	if !p.LowStock(5) {
		t.Error("quantity equal to threshold should be low")
	}
	if p.LowStock(4) {
		t.Error("quantity above threshold should not be low")
	}
}
