package simulator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "swapdesk/pkg/errors"
)

const testPoolAddr = "EQB3ncyBUTjZUA5EnFKR5_EnOMI9V1tTEAAPaiU71gc4TiUt"

func TestParsePoolExists_PrefixShape(t *testing.T) {
	addr, ok := ParsePoolExists("pool already exists: " + testPoolAddr)
	require.True(t, ok)
	assert.Equal(t, testPoolAddr, addr)
}

func TestParsePoolExists_InfixShape(t *testing.T) {
	addr, ok := ParsePoolExists("Pool " + testPoolAddr + " already exists")
	require.True(t, ok)
	assert.Equal(t, testPoolAddr, addr)
}

func TestParsePoolExists_CaseInsensitive(t *testing.T) {
	addr, ok := ParsePoolExists("POOL ALREADY EXISTS: " + testPoolAddr)
	require.True(t, ok)
	assert.Equal(t, testPoolAddr, addr)
}

func TestParsePoolExists_NonMatches(t *testing.T) {
	for _, msg := range []string{
		"",
		"pool already exists",
		"pool already exists: short",
		"route not found",
		"pool " + testPoolAddr + " is paused",
	} {
		_, ok := ParsePoolExists(msg)
		assert.False(t, ok, "should not match %q", msg)
	}
}

func TestClassifyMessage(t *testing.T) {
	err := classifyMessage("pool already exists: " + testPoolAddr)
	var pe *apperrors.PoolExistsError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, testPoolAddr, pe.PoolAddress)

	assert.ErrorIs(t, classifyMessage("route not found for pair"), apperrors.ErrRouteNotFound)
	assert.ErrorIs(t, classifyMessage("no route between tokens"), apperrors.ErrRouteNotFound)
	assert.ErrorIs(t, classifyMessage("pool not found"), apperrors.ErrPoolNotFound)
	assert.ErrorIs(t, classifyMessage("invalid slippage tolerance"), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, classifyMessage("something went wrong"), apperrors.ErrSimulation)
}
