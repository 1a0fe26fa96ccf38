package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightwatch/pkg/logger"
)

const airlinesDat = `-1,"Unknown",\N,"-","N/A",\N,\N,"Y"
3320,"Lufthansa",\N,"LH","DLH","LUFTHANSA","Germany","Y"
5209,"United Airlines",\N,"UA","UAL","UNITED","United States","Y"
9999,"Old United",\N,"UA","XUA",\N,"United States","N"
4000,"Broken row"
`

func newTestStorage(t *testing.T) *AirlineStorage {
	t.Helper()
	s, err := NewAirlineStorage(filepath.Join(t.TempDir(), "airlines.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImportAndLookup(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	n, err := s.Import(ctx, strings.NewReader(airlinesDat))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	ua, err := s.Lookup(ctx, "ua")
	require.NoError(t, err)
	assert.Equal(t, "United Airlines", ua.Name, "active carrier wins")
	assert.Equal(t, "UAL", ua.ICAO)
	assert.True(t, ua.Active)

	dlh, err := s.Lookup(ctx, "DLH")
	require.NoError(t, err)
	assert.Equal(t, "Lufthansa", dlh.Name)
	assert.Equal(t, "LUFTHANSA", dlh.Callsign)
	assert.Empty(t, dlh.Alias)
}

func TestLookupMisses(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.Lookup(ctx, "ZZ")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Lookup(ctx, "TOOLONG")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportIsIdempotent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "airlines.dat")
	require.NoError(t, os.WriteFile(path, []byte(airlinesDat), 0o644))

	for i := 0; i < 2; i++ {
		_, err := s.ImportFile(ctx, path)
		require.NoError(t, err)
	}
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = s.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(t, err)
}
