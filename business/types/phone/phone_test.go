package phone_test

import (
	"testing"

	"github.com/jcpaschoal/spi-agenda/business/types/phone"
	"github.com/stretchr/testify/require"
)

func TestParseNull(t *testing.T) {
	p, err := phone.ParseNull("+55 11 9999-0000")
	require.NoError(t, err)
	require.True(t, p.Valid())
	require.Equal(t, "+551199990000", p.String())

	p, err = phone.ParseNull("  ")
	require.NoError(t, err)
	require.False(t, p.Valid())
	require.False(t, phone.ToSQLNullString(p).Valid)

	_, err = phone.ParseNull("call me")
	require.Error(t, err)
}
