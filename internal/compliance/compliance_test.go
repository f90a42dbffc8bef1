package compliance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/a11yscan/internal/compliance"
)

func TestDefaultTable(t *testing.T) {
	t.Parallel()
	tbl := compliance.Default()
	list := tbl.List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Country, list[i].Country)
	}
	for _, c := range list {
		assert.NotEmpty(t, c.Standard, c.Country)
		assert.NotEmpty(t, c.Description, c.Country)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()
	tbl := compliance.Default()

	for _, name := range []string{"United States", "United-States", "united-states", "  United   States "} {
		info, ok := tbl.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, "United States", info.Country)
		assert.Contains(t, info.Standard, "ADA")
	}

	_, ok := tbl.Lookup("Atlantis")
	assert.False(t, ok)
	_, ok = tbl.Lookup("")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	t.Parallel()
	tbl, err := compliance.Parse([]byte(`{"New Zealand": {"standard": "NZGWAS", "description": "d"}}`))
	require.NoError(t, err)
	info, ok := tbl.Lookup("New-Zealand")
	require.True(t, ok)
	assert.Equal(t, "NZGWAS", info.Standard)

	_, err = compliance.Parse([]byte(`[`))
	assert.Error(t, err)
}
