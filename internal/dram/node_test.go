package dram_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/suprax/dramsim/internal/dram"
	"github.com/suprax/dramsim/internal/dram/ddr3"
)

func newTestTree(t *testing.T) (*dram.Node, dram.Spec) {
	t.Helper()
	org := ddr3.Org{Channels: 1, Ranks: 1, Banks: 8, Rows: 65536, Cols: 1024}
	spec := ddr3.New(org, ddr3.DDR3_1600K)
	return dram.NewTree(spec), spec
}

func TestDecodeInsertsActivateBeforeFirstAccess(t *testing.T) {
	root, _ := newTestTree(t)
	addrVec := []int{0, 0, 1, 5, 0}

	cmd := root.Decode(ddr3.RD, addrVec)

	require.Equal(t, ddr3.ACT, cmd, "a closed bank must be activated before RD can issue")
}

func TestRowHitAfterActivateSameRow(t *testing.T) {
	root, _ := newTestTree(t)
	addrVec := []int{0, 0, 1, 5, 0}

	root.Update(ddr3.ACT, addrVec, 0)

	cmd := root.Decode(ddr3.RD, addrVec)
	require.Equal(t, ddr3.RD, cmd, "same-row access after ACT should need no prerequisite")
	require.True(t, root.CheckRowHit(ddr3.RD, addrVec))
}

func TestRowConflictRequiresPrecharge(t *testing.T) {
	root, _ := newTestTree(t)
	addrVec := []int{0, 0, 1, 5, 0}
	other := []int{0, 0, 1, 9, 0}

	root.Update(ddr3.ACT, addrVec, 0)

	cmd := root.Decode(ddr3.RD, other)
	require.Equal(t, ddr3.PRE, cmd, "a different row in the same open bank must be preceded by PRE")
	require.False(t, root.CheckRowHit(ddr3.RD, other))
}

func TestActivateToReadRespectsNRCD(t *testing.T) {
	root, _ := newTestTree(t)
	addrVec := []int{0, 0, 2, 3, 0}

	root.Update(ddr3.ACT, addrVec, 100)

	require.False(t, root.Check(ddr3.RD, addrVec, 100), "RD must not be legal the same cycle as ACT")
	next := root.GetNext(ddr3.RD, addrVec, 100)
	require.Equal(t, int64(100+ddr3.DDR3_1600K.NRCD), next)
	require.True(t, root.Check(ddr3.RD, addrVec, next))
}

func TestActivateFansOutNRRDToSiblingBanks(t *testing.T) {
	root, _ := newTestTree(t)
	bank0 := []int{0, 0, 0, 1, 0}
	bank1 := []int{0, 0, 1, 1, 0}

	root.Update(ddr3.ACT, bank0, 10)

	next := root.GetNext(ddr3.ACT, bank1, 10)
	require.Equal(t, int64(10+ddr3.DDR3_1600K.NRRD), next, "ACT on one bank must push back ACT eligibility on its sibling banks by tRRD")
}

func TestRefreshScopedAtRank(t *testing.T) {
	root, _ := newTestTree(t)
	vec := []int{0, 0, 0, 0, 0}

	root.Update(ddr3.REF, vec, 5)

	rank := root.AtLevel(ddr3.Rank, vec)
	next := rank.NextOf(ddr3.ACT)
	require.Equal(t, int64(5+ddr3.DDR3_1600K.NRFC), next)
}
