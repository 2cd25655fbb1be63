package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYarn(t *testing.T) {
	y := ParseYarn("Malabrigo Rios, worsted, 210 yds (192 m), 100g, 100% superwash merino, colorway Teal")

	assert.Equal(t, "Malabrigo Rios", y.Name)
	assert.Equal(t, "worsted", y.WeightCategory)
	assert.Equal(t, "210 yds", y.Length)
	assert.Equal(t, "100 g", y.Weight)
	assert.Equal(t, "100% superwash merino", y.FiberContent)
	assert.Equal(t, "Teal", y.Colorway)
}

func TestParseYarn_Blends(t *testing.T) {
	y := ParseYarn("Sock yarn (75% wool, 25% nylon), 400 m")

	assert.Equal(t, "Sock yarn", y.Name)
	assert.Equal(t, "fingering", y.WeightCategory)
	assert.Equal(t, "400 m", y.Length)
	assert.Equal(t, "75% wool, 25% nylon", y.FiberContent)
}

func TestParseYarns_SplitsItems(t *testing.T) {
	yarns := ParseYarns("- Rios 100g\n- Drops Alpaca 50 grams; \n\n")

	require.Len(t, yarns, 2)
	assert.Equal(t, "Rios", yarns[0].Name)
	assert.Equal(t, "100 g", yarns[0].Weight)
	assert.Equal(t, "Drops Alpaca", yarns[1].Name)
	assert.Equal(t, "50 g", yarns[1].Weight)
}

func TestParseGauge(t *testing.T) {
	tests := []struct {
		in        string
		sts, rows float64
	}{
		{"22 sts and 30 rows = 10 cm", 22, 30},
		{"18 stitches x 24 rounds to 4 in", 18, 24},
		{"5,5 sts per inch", 5.5, 0},
		{"not a gauge", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sts, rows := ParseGauge(tt.in)
			assert.Equal(t, tt.sts, sts)
			assert.Equal(t, tt.rows, rows)
		})
	}
}
