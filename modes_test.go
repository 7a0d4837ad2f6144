package sgdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadThermalInertiaModesCache(t *testing.T) {
	ms1, err := LoadThermalInertiaModes(5, "SGgun")
	require.NoError(t, err)
	ms2, err := LoadThermalInertiaModes(5, "SGgun")
	require.NoError(t, err)
	// loaded once, shared thereafter
	assert.Same(t, ms1, ms2)

	ms3, err := LoadThermalInertiaModes(3, "SGgun")
	require.NoError(t, err)
	assert.NotSame(t, ms1, ms3)
	assert.Equal(t, 3, ms3.Modes)
}

func TestLoadThermalInertiaModesDisabled(t *testing.T) {
	ms, err := LoadThermalInertiaModes(0, "SGgun")
	require.NoError(t, err)
	assert.Equal(t, 0, ms.Modes)
}

func TestLoadThermalInertiaModesUnknownCell(t *testing.T) {
	_, err := LoadThermalInertiaModes(5, "NoSuchCell")
	assert.ErrorIs(t, err, ErrModeTables)
}

func TestModeTableStructure(t *testing.T) {
	ms, err := LoadThermalInertiaModes(5, "SGgun")
	require.NoError(t, err)

	for _, bi := range []float64{0.01, 0.1, 1, 5} {
		for _, be := range []float64{0.01, 0.1, 1, 5} {
			prevTau := 1e30
			for mode := 0; mode < ms.Modes; mode++ {
				tau, a := ms.Interp(mode, bi, be)
				assert.Greater(t, tau, 0.0, "mode %d Bi %v Be %v", mode, bi, be)
				// higher modes decay faster
				assert.Less(t, tau, prevTau, "mode %d Bi %v Be %v", mode, bi, be)
				prevTau = tau
				assert.GreaterOrEqual(t, a, 0.0)
			}
		}
	}
}

func TestModeTableStrongerCouplingFasterResponse(t *testing.T) {
	ms, err := LoadThermalInertiaModes(1, "SGgun")
	require.NoError(t, err)
	// a better coupled wall (larger Biot numbers) equilibrates faster
	tauWeak, _ := ms.Interp(0, 0.01, 0.01)
	tauStrong, _ := ms.Interp(0, 10, 10)
	assert.Greater(t, tauWeak, tauStrong)
}

func TestModeInterpClampsToDomain(t *testing.T) {
	ms, err := LoadThermalInertiaModes(1, "SGgun")
	require.NoError(t, err)
	tauLow, aLow := ms.Interp(0, 0, 0)
	tauMin, aMin := ms.Interp(0, ms.BiMin, ms.BeMin)
	assert.Equal(t, tauMin, tauLow)
	assert.Equal(t, aMin, aLow)

	tauHigh, _ := ms.Interp(0, 1e6, 1e6)
	tauMax, _ := ms.Interp(0, ms.BiMax, ms.BeMax)
	assert.Equal(t, tauMax, tauHigh)
}
