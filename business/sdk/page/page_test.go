package page_test

import (
	"testing"

	"github.com/jcpaschoal/spi-agenda/business/sdk/page"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	pg, err := page.Parse("", "")
	require.NoError(t, err)
	require.Equal(t, 1, pg.Number())
	require.Equal(t, 10, pg.RowsPerPage())
	require.Equal(t, 0, pg.Offset())

	pg, err = page.Parse("3", "20")
	require.NoError(t, err)
	require.Equal(t, 40, pg.Offset())

	for _, tt := range [][2]string{{"0", "10"}, {"1", "0"}, {"1", "101"}, {"x", "10"}, {"1", "y"}} {
		_, err := page.Parse(tt[0], tt[1])
		require.Error(t, err, "page=%s rows=%s", tt[0], tt[1])
	}
}
