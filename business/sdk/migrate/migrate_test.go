package migrate_test

import (
	"testing"

	"github.com/jcpaschoal/spi-agenda/business/sdk/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	doc := `
-- Version: 1.01
-- Description: first
CREATE TABLE a (id INT);

-- Version: 1.02
-- Description: second
CREATE TABLE b (id INT);
CREATE INDEX idx_b ON b (id);
`

	migrations, err := migrate.Parse(doc)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, "1.01", migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Description)
	assert.Equal(t, "CREATE TABLE a (id INT);", migrations[0].Script)
	assert.Contains(t, migrations[1].Script, "CREATE INDEX idx_b")
}

func TestParseRejectsDuplicates(t *testing.T) {
	doc := "-- Version: 1.01\nSELECT 1;\n-- Version: 1.01\nSELECT 2;\n"

	_, err := migrate.Parse(doc)
	require.Error(t, err)
}

func TestParseRejectsOrphanStatements(t *testing.T) {
	_, err := migrate.Parse("SELECT 1;\n-- Version: 1.01\nSELECT 2;\n")
	require.Error(t, err)
}
