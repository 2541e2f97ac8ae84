// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/costplane/costplane/app/storage/core"
	"github.com/costplane/costplane/app/types"
)

func TestUnit_Storage_Core_Context(t *testing.T) {
	db := &gorm.DB{}
	ctx := context.Background()

	from, found := core.FromContext(ctx)
	assert.Nil(t, from)
	assert.False(t, found)

	ctxTx := core.NewContext(ctx, db)
	from, found = core.FromContext(ctxTx)
	assert.Same(t, db, from)
	assert.True(t, found)
}

func TestUnit_Storage_Core_Raw(t *testing.T) {
	db, err := core.NewDriver(sqlite.Open("file:memory?mode=memory&cache=shared"))
	require.NoError(t, err, "failed to get the new driver")

	repo := core.NewRawBaseRepoImpl(db)
	require.NotNil(t, repo.DB(t.Context()))

	err = repo.Tx(t.Context(), func(ctxTx context.Context) error {
		_, inTx := core.FromContext(ctxTx)
		assert.True(t, inTx, "block context must carry the transaction")
		return nil
	})
	require.NoError(t, err)
}

func TestUnit_Storage_Core_TranslateError(t *testing.T) {
	assert.NoError(t, core.TranslateError(nil))
	assert.ErrorIs(t, core.TranslateError(gorm.ErrRecordNotFound), types.ErrNotFound)
	assert.ErrorIs(t, core.TranslateError(gorm.ErrDuplicatedKey), types.ErrDuplicateKey)
	assert.ErrorIs(t, core.TranslateError(gorm.ErrInvalidData), types.ErrInvalidData)

	// unmapped errors pass through
	err := gorm.ErrInvalidDB
	assert.Equal(t, err, core.TranslateError(err))
}
