package core_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cuota/core"
)

type charge struct {
	Amount decimal.Decimal     `json:"amount" validate:"required,gt=0,currency"`
	Rate   decimal.NullDecimal `json:"rate" validate:"omitempty,gte=1,currency"`
	Code   string              `json:"code" validate:"omitempty,alphanum_"`
}

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	require.NoError(t, core.InitValidators(validate, translator))

	d := decimal.RequireFromString
	tests := []struct {
		name string
		data charge
		want map[string]string
	}{
		{name: "valid", data: charge{Amount: d("120.50"), Rate: decimal.NewNullDecimal(d("300")), Code: "T_01"}},
		{name: "zero amount", data: charge{}, want: map[string]string{"amount": "this field is required"}},
		{name: "negative amount", data: charge{Amount: d("-20.5")}, want: map[string]string{"amount": "must be greater than 0"}},
		{name: "sub-cent amount", data: charge{Amount: d("0.004")}, want: map[string]string{"amount": "must have at most 2 decimal places"}},
		{
			name: "rate",
			data: charge{Amount: d("10"), Rate: decimal.NewNullDecimal(d("0.5"))},
			want: map[string]string{"rate": "must be greater than or equal to 1"},
		},
		{
			name: "sub-cent rate",
			data: charge{Amount: d("10"), Rate: decimal.NewNullDecimal(d("300.125"))},
			want: map[string]string{"rate": "must have at most 2 decimal places"},
		},
		{
			name: "code",
			data: charge{Amount: d("10"), Code: "T-01"},
			want: map[string]string{"code": "only alphanumeric characters and underscores are allowed"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.data)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "%T", err)
			got := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}
