package report_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/gpuburn/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WritePair(&buf, 100, 3))

	pair, err := report.ReadPair(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(100), pair.Completed)
	assert.Equal(t, int32(3), pair.ErrorCount)
	assert.False(t, pair.IsSentinel())
}

func TestSentinel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteSentinel(&buf))

	pair, err := report.ReadPair(&buf)
	require.NoError(t, err)
	assert.True(t, pair.IsSentinel())
	assert.Equal(t, int32(-1), pair.ErrorCount)
}

func TestShortReadIsDeath(t *testing.T) {
	// Only one of the two integers made it onto the pipe before the
	// worker died.
	buf := bytes.NewBuffer([]byte{0x64, 0x00, 0x00, 0x00})

	pair, err := report.ReadPair(buf)
	require.Error(t, err)
	assert.True(t, pair.IsSentinel())
}

func TestDeviceCountBeforeReports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteDeviceCount(&buf, 4))
	require.NoError(t, report.WritePair(&buf, 10, 0))

	count, err := report.ReadDeviceCount(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(4), count)

	pair, err := report.ReadPair(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(10), pair.Completed)
}
