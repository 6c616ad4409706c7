package bookingstatus_test

import (
	"testing"

	"github.com/jcpaschoal/spi-agenda/business/types/bookingstatus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictingAndTerminalArePartition(t *testing.T) {
	all := []bookingstatus.Status{
		bookingstatus.Pending, bookingstatus.Confirmed, bookingstatus.CheckedIn,
		bookingstatus.Completed, bookingstatus.Cancelled, bookingstatus.NoShow,
	}

	for _, s := range all {
		assert.NotEqual(t, s.IsConflicting(), s.IsTerminal(), s.String())
	}

	require.ElementsMatch(t, []bookingstatus.Status{bookingstatus.Pending, bookingstatus.Confirmed, bookingstatus.CheckedIn}, bookingstatus.Conflicting())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to bookingstatus.Status
		want     bool
	}{
		{bookingstatus.Pending, bookingstatus.Confirmed, true},
		{bookingstatus.Pending, bookingstatus.Cancelled, true},
		{bookingstatus.Pending, bookingstatus.CheckedIn, false},
		{bookingstatus.Confirmed, bookingstatus.CheckedIn, true},
		{bookingstatus.Confirmed, bookingstatus.NoShow, true},
		{bookingstatus.CheckedIn, bookingstatus.Completed, true},
		{bookingstatus.CheckedIn, bookingstatus.Cancelled, false},
		{bookingstatus.Cancelled, bookingstatus.Pending, false},
		{bookingstatus.Completed, bookingstatus.Confirmed, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestParse(t *testing.T) {
	s, err := bookingstatus.Parse("checked_in")
	require.NoError(t, err)
	require.Equal(t, bookingstatus.CheckedIn, s)

	_, err = bookingstatus.Parse("CHECKED_IN")
	require.Error(t, err)
}
