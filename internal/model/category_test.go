package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Category
	}{
		{"SAC", CategorySAC},
		{"sac", CategorySAC},
		{"CerrosOrientales", CategoryCerrosOrientales},
		{"cerros_orientales", CategoryCerrosOrientales},
		{"Reserva", CategoryCerrosOrientales},
		{"EEP", CategoryEEP},
		{"Estructura Ecologica Principal", CategoryEEP},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCategory("humedal")
	assert.Error(t, err)
}

func TestCategory_Text(t *testing.T) {
	t.Parallel()
	for _, c := range Categories() {
		b, err := c.MarshalText()
		require.NoError(t, err)
		var back Category
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, c, back)
	}

	_, err := Category(0).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "unknown", Category(42).String())
	assert.False(t, Category(42).Valid())
}

func TestDiagnostics_Exclude(t *testing.T) {
	t.Parallel()
	d := Diagnostics{Status: RunStatusComplete}
	d.Exclude()
	assert.Equal(t, RunStatusComplete, d.Status)

	d.Exclude(Exclusion{Kind: ExclusionProtectedArea, ID: "sac/x", Reason: "self-intersection"})
	assert.Equal(t, RunStatusPartial, d.Status)
	assert.Len(t, d.Excluded, 1)
}
