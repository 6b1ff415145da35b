package ledger

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-07-05", want: "2024-07-05"},
		{in: " 2024-02-29 ", want: "2024-02-29"},
		{in: "2024-07-05T23:30:00-05:00", want: "2024-07-05"},
		{in: "05/07/2024", wantErr: true},
		{in: "2023-02-29", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
			assert.Equal(t, time.UTC, d.Location())
		})
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		Due  *Date `json:"due"`
		Day  Date  `json:"day"`
		Zero Date  `json:"zero"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-03-31","day":"2024-04-30","zero":null}`), &v))
	require.NotNil(t, v.Due)
	assert.True(t, v.Due.Equal(NewDate(2024, time.March, 31).Time))
	assert.True(t, v.Zero.IsZero())

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-31","day":"2024-04-30","zero":null}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"day":"tomorrow"}`), &v))
}

func TestDate_UnmarshalParam(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalParam("2024-07-05"))
	assert.Equal(t, "2024-07-05", d.String())
	require.NoError(t, d.UnmarshalParam(""))
	assert.True(t, d.IsZero())
	assert.Error(t, d.UnmarshalParam("yesterday"))
}
