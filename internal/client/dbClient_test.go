package client

import (
	"bytes"
	"storefront-payments/internal/config"
	"storefront-payments/internal/model"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDatabaseLogsThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	db, err := OpenDatabase(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)

	var row model.Configuration
	err = db.Where("configuration_key = ?", "MISSING").First(&row).Error
	require.Error(t, err)
	assert.Empty(t, buf.String())

	require.Error(t, db.Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), `"component":"gorm"`)
	assert.Contains(t, buf.String(), "no_such_table")
}
