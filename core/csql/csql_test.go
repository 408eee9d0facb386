package csql

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	foreign := &pq.Error{Code: "23503"}
	invalid := &pq.Error{Code: "22P02"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsForeignKeyViolation(unique))
	assert.True(t, IsForeignKeyViolation(foreign))
	assert.True(t, IsInvalidTextRepresentation(invalid))
	assert.False(t, IsUniqueViolation(errors.New("plain")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestMigrationNames(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql":   {Data: []byte("SELECT 2;")},
		"0001_a.sql":   {Data: []byte("SELECT 1;")},
		"README.md":    {Data: []byte("ignored")},
		"sub/0003.sql": {Data: []byte("ignored too")},
	}
	names, err := migrationNames(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, names)
}

func TestTable(t *testing.T) {
	db := &DB{Schema: "apae"}
	assert.Equal(t, `apae."assistido"`, db.Table("assistido"))
	assert.Equal(t, `apae."x"`, db.Table(`x"`))
}
