package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportPeriod(t *testing.T) {
	t.Run("Explicit", func(t *testing.T) {
		cmd := exportCmd()
		require.NoError(t, cmd.Flags().Set("start", "2026-01-01"))
		require.NoError(t, cmd.Flags().Set("end", "2026-01-31"))

		start, end, err := exportPeriod(cmd)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("DefaultsToCurrentMonth", func(t *testing.T) {
		start, end, err := exportPeriod(exportCmd())
		require.NoError(t, err)
		assert.Equal(t, 1, start.Day())
		assert.False(t, end.Before(start))
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		cmd := exportCmd()
		require.NoError(t, cmd.Flags().Set("start", "2026-02-01"))
		require.NoError(t, cmd.Flags().Set("end", "2026-01-01"))

		_, _, err := exportPeriod(cmd)
		assert.Error(t, err)
	})

	t.Run("InvalidDate", func(t *testing.T) {
		cmd := exportCmd()
		require.NoError(t, cmd.Flags().Set("start", "01.02.2026"))

		_, _, err := exportPeriod(cmd)
		assert.Error(t, err)
	})
}
