package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres", "mysql"} {
		d, err := Dialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}
	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	defer Close(db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	// the in-memory database must survive between statements
	require.NoError(t, db.Exec("CREATE TABLE room_codes (id INTEGER PRIMARY KEY, code TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO room_codes (id, code) VALUES (1, 'STD')").Error)
	var code string
	require.NoError(t, db.Raw("SELECT code FROM room_codes WHERE id = 1").Scan(&code).Error)
	assert.Equal(t, "STD", code)
}
