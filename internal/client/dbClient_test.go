package client

import (
	"testing"

	"restaurant-order-engine/internal/config"
	"restaurant-order-engine/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDBClient_SqliteMigrates(t *testing.T) {
	db, err := InitDBClient(config.Database{
		Driver:       "sqlite",
		URL:          "file:dbclient_test?mode=memory&cache=shared",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&model.Order{}))
	assert.True(t, db.Migrator().HasTable(&model.FidelityPointBalance{}))
	assert.True(t, db.Migrator().HasTable(&model.OrderSequence{}))
}

func TestInitDBClient_UnknownDriver(t *testing.T) {
	_, err := InitDBClient(config.Database{Driver: "oracle"})
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}
