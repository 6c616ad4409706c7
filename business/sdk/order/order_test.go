package order_test

import (
	"testing"

	"github.com/jcpaschoal/spi-agenda/business/sdk/order"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	fields := map[string]string{"start": "starts_at", "status": "status"}
	def := order.NewBy("starts_at", order.ASC)

	by, err := order.Parse(fields, "", def)
	require.NoError(t, err)
	require.Equal(t, def, by)

	by, err = order.Parse(fields, "status, desc", def)
	require.NoError(t, err)
	require.Equal(t, order.By{Field: "status", Direction: order.DESC}, by)

	_, err = order.Parse(fields, "customer_email", def)
	require.Error(t, err)

	_, err = order.Parse(fields, "start,sideways", def)
	require.Error(t, err)

	require.Equal(t, order.ASC, order.NewBy("x", "bogus").Direction)
}
