package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "half up", in: "1.005", want: "1.01"},
		{name: "below half", in: "1.004", want: "1.00"},
		{name: "negative half", in: "-1.005", want: "-1.01"},
		{name: "already quantized", in: "34.50", want: "34.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Round(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestParse(t *testing.T) {
	assert.Equal(t, "100.00", Format(Parse("100")))
	assert.Equal(t, "1250.50", Format(Parse(" 1,250.5 ")))
	assert.Equal(t, "10.00", Format(Parse("10%")))
	assert.True(t, Parse("abc").IsZero())
	assert.True(t, Parse("").IsZero())
}

func TestTryParse(t *testing.T) {
	d, err := TryParse("12.30")
	assert.NoError(t, err)
	assert.Equal(t, "12.30", Format(d))

	_, err = TryParse("twelve")
	assert.Error(t, err)
}

func TestPercent(t *testing.T) {
	got := Percent(decimal.NewFromInt(110), decimal.NewFromInt(5))
	assert.Equal(t, "5.50", Format(got))
}

func TestFromValue(t *testing.T) {
	assert.Equal(t, "7.00", Format(FromValue(7)))
	assert.Equal(t, "2.50", Format(FromValue("2.5")))
	assert.Equal(t, "3.25", Format(FromValue(decimal.RequireFromString("3.25"))))
	assert.True(t, FromValue(struct{}{}).IsZero())
	assert.True(t, FromValue(nil).IsZero())
}
