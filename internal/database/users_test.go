package database

import (
	"context"
	"testing"

	"rentescrow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Email: "ada@example.ng", FirstName: "Ada"}
	require.NoError(t, db.CreateOrUpdateUser(ctx, user))
	assert.NotZero(t, user.ID)

	found, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.FirstName)

	// upsert по email сохраняет id
	again := &models.User{Email: "ada@example.ng", FirstName: "Ada", LastName: "Obi", Phone: "+2348000000000"}
	require.NoError(t, db.CreateOrUpdateUser(ctx, again))
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Obi", again.LastName)

	_, err = db.GetUserByEmail(ctx, "nobody@example.ng")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
