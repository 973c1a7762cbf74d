package handlers

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type TestStruct struct {
	Name       string  `json:"name"`
	IDNumber   string  `json:"id_number"`
	LoanAmount float64 `json:"loan_amount"`
}

func TestBindNestedOrFlat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		key         string
		body        string
		expected    TestStruct
		expectError bool
	}{
		{
			name:     "Nested Structure",
			key:      "client",
			body:     `{"client": {"name": "Alice", "loan_amount": 3000}}`,
			expected: TestStruct{Name: "Alice", LoanAmount: 3000},
		},
		{
			name:     "Flat Structure",
			key:      "client",
			body:     `{"name": "Bob", "id_number": "8001015009087"}`,
			expected: TestStruct{Name: "Bob", IDNumber: "8001015009087"},
		},
		{
			name:     "camelCase keys",
			key:      "client",
			body:     `{"name": "Carol", "idNumber": "123", "loanAmount": 1500.5}`,
			expected: TestStruct{Name: "Carol", IDNumber: "123", LoanAmount: 1500.5},
		},
		{
			name:     "Nested camelCase",
			key:      "client",
			body:     `{"client": {"Name": "Dan", "IDNumber": "9"}}`,
			expected: TestStruct{Name: "Dan", IDNumber: "9"},
		},
		{
			name:     "Missing key falls back to flat",
			key:      "client",
			body:     `{"other": "value", "name": "Eve"}`,
			expected: TestStruct{Name: "Eve"},
		},
		{
			name:        "Invalid type",
			key:         "client",
			body:        `{"name": "Frank", "loanAmount": "lots"}`,
			expectError: true,
		},
		{
			name:        "Nested key present but not an object",
			key:         "client",
			body:        `{"client": "some string"}`,
			expectError: true,
		},
		{
			name:        "Empty body",
			key:         "client",
			body:        ``,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("POST", "/", bytes.NewBufferString(tt.body))
			c.Request.Header.Set("Content-Type", "application/json")

			var result TestStruct
			err := BindNestedOrFlat(c, tt.key, &result)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestToSnake(t *testing.T) {
	cases := map[string]string{
		"name":                  "name",
		"loan_amount":           "loan_amount",
		"loanAmount":            "loan_amount",
		"LoanAmount":            "loan_amount",
		"IDNumber":              "id_number",
		"idNumber":              "id_number",
		"collateralDescription": "collateral_description",
		"address2":              "address2",
		"line2Address":          "line2_address",
	}
	for in, want := range cases {
		assert.Equal(t, want, toSnake(in), in)
	}
	assert.Equal(t, "idNumber", toCamel("id_number"))
	assert.Equal(t, "collateralImages", toCamel("collateral_images"))
}

func TestNormalizeKeys_SnakeWins(t *testing.T) {
	for i := 0; i < 20; i++ {
		out := normalizeKeys(map[string]interface{}{"loan_amount": 1.0, "loanAmount": 2.0}).(map[string]interface{})
		assert.Equal(t, 1.0, out["loan_amount"])
		assert.Len(t, out, 1)
	}
}
