package evr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRPMNumericVsAlpha(t *testing.T) {
	assert.Equal(t, 1, CompareStr(DialectRPM, "1.0", "1.a", ModeCompare, false))
	assert.Equal(t, -1, CompareStr(DialectRPM, "1.a", "1.0", ModeCompare, false))
}

func TestRPMLeadingZerosIgnored(t *testing.T) {
	assert.Equal(t, 0, CompareStr(DialectRPM, "1.010", "1.10", ModeCompare, false))
}

func TestRPMEpochOrdering(t *testing.T) {
	assert.Equal(t, 1, CompareStr(DialectRPM, "1:1.0", "2.0", ModeCompare, false))
	assert.Equal(t, 0, CompareStr(DialectRPM, "0:1.0", "1.0", ModeCompare, false))
}

func TestRPMReleasePresenceMatters(t *testing.T) {
	assert.Equal(t, -1, CompareStr(DialectRPM, "1.0", "1.0-1", ModeCompare, false))
	assert.Equal(t, 1, CompareStr(DialectRPM, "1.0-1", "1.0", ModeCompare, false))
}

func TestRPMCompareEVOnlyIgnoresRelease(t *testing.T) {
	assert.Equal(t, 0, CompareStr(DialectRPM, "1.0-1", "1.0-2", ModeCompareEVOnly, false))
}

func TestDebianTildeSortsFirst(t *testing.T) {
	assert.Equal(t, -1, CompareStr(DialectDebian, "1.0~rc1", "1.0", ModeCompare, false))
	assert.Equal(t, 1, CompareStr(DialectDebian, "1.0", "1.0~rc1", ModeCompare, false))
}

func TestDebianNumericRuns(t *testing.T) {
	assert.Equal(t, -1, CompareStr(DialectDebian, "1.9", "1.10", ModeCompare, false))
}

func TestDebianEqualStrings(t *testing.T) {
	assert.Equal(t, 0, CompareStr(DialectDebian, "1.0-1", "1.0-1", ModeCompare, false))
}

func TestAPKBasicOrdering(t *testing.T) {
	assert.Equal(t, -1, CompareStr(DialectAPK, "1.0", "1.1", ModeCompare, false))
	assert.Equal(t, 1, CompareStr(DialectAPK, "1.1", "1.0", ModeCompare, false))
	assert.Equal(t, 0, CompareStr(DialectAPK, "1.0", "1.0", ModeCompare, false))
}

func TestAPKSuffixOrdering(t *testing.T) {
	// alpha < beta < pre < rc, all pre-release (rank below a bare release)
	assert.Equal(t, -1, CompareStr(DialectAPK, "1.0_alpha1", "1.0_beta1", ModeCompare, false))
	assert.Equal(t, -1, CompareStr(DialectAPK, "1.0_rc1", "1.0", ModeCompare, false))
}

func TestAPKRevision(t *testing.T) {
	assert.Equal(t, -1, CompareStr(DialectAPK, "1.0-r1", "1.0-r2", ModeCompare, false))
}

func TestMatchWithEpochVersionRelease(t *testing.T) {
	assert.Equal(t, 0, Match("1:1.0-1", "1", "1.0", "1"))
	assert.NotEqual(t, 0, Match("1:1.0-1", "2", "1.0", "1"))
}

func TestMatchVersionOnly(t *testing.T) {
	assert.Equal(t, 0, Match("1.0-1", "", "1.0", ""))
}
