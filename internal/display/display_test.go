// SPDX-License-Identifier: MIT
package display

import (
	"bytes"
	"strings"
	"testing"

	"ledmeter/internal/config"
	"ledmeter/internal/meter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
	"periph.io/x/devices/v3/nrzled"
)

// expectedNRZ encodes raw RGB bytes with a reference device so tests can
// compare wire output without hardcoding the NRZ bit patterns.
func expectedNRZ(t *testing.T, numLEDs int, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	dev, err := nrzled.NewSPI(spitest.NewRecordRaw(&buf), &nrzled.Opts{
		NumPixels: numLEDs,
		Channels:  3,
		Freq:      config.DefaultSPIFreqKHz * physic.KiloHertz,
	})
	require.NoError(t, err)
	_, err = dev.Write(raw)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestStripWritesScaledFrame(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStrip(spitest.NewRecordRaw(&buf), nil, 3, config.DefaultSPIFreqKHz)
	require.NoError(t, err)
	assert.Equal(t, "nrzled{recordraw}", s.String())

	require.NoError(t, s.SetBrightness(30))
	require.NoError(t, s.Show(meter.Frame{meter.White, meter.DarkRed, meter.Black}))

	want := expectedNRZ(t, 3, []byte{
		76, 76, 76,
		41, 0, 0,
		0, 0, 0,
	})
	assert.Equal(t, want, buf.Bytes())
}

func TestStripFullBrightnessByDefault(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStrip(spitest.NewRecordRaw(&buf), nil, 2, config.DefaultSPIFreqKHz)
	require.NoError(t, err)

	require.NoError(t, s.Show(meter.Frame{meter.Gold, meter.Blue}))
	assert.Equal(t, expectedNRZ(t, 2, []byte{0xff, 0xd7, 0x00, 0x00, 0x00, 0xff}), buf.Bytes())
}

func TestStripRejects(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewStrip(spitest.NewRecordRaw(&buf), nil, 8, config.DefaultSPIFreqKHz)
	require.NoError(t, err)

	assert.Error(t, s.SetBrightness(101))
	assert.Error(t, s.Show(meter.NewFrame(7)))
	assert.Zero(t, buf.Len(), "nothing written on a rejected frame")
}

func TestStripCloseReleasesPort(t *testing.T) {
	var buf bytes.Buffer
	port := spitest.NewRecordRaw(&buf)
	s, err := NewStrip(port, port, 4, config.DefaultSPIFreqKHz)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestTerminalShow(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	require.NoError(t, term.SetBrightness(30))

	frame := meter.NewFrame(8)
	table, err := meter.NewLevelTable(meter.DefaultLevels())
	require.NoError(t, err)
	frame.FillLevels(3, table)

	require.NoError(t, term.Show(frame))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r"))
	assert.Equal(t, 3, strings.Count(out, ledGlyph))
	assert.Equal(t, 5, strings.Count(out, offGlyph))
	assert.Contains(t, out, "3/8 @30%")

	require.NoError(t, term.Close())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestTerminalCloseWithoutFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTerminal(&buf).Close())
	assert.Zero(t, buf.Len())
}

func TestOpen(t *testing.T) {
	var buf bytes.Buffer

	d, err := Open(config.DisplayConfig{Type: config.DisplayTerminal}, 8, &buf)
	require.NoError(t, err)
	assert.IsType(t, &Terminal{}, d)

	d, err = Open(config.DisplayConfig{Type: config.DisplayNone}, 8, &buf)
	require.NoError(t, err)
	require.NoError(t, d.Show(meter.NewFrame(8)))
	assert.Equal(t, 1, d.(*None).Shown)

	_, err = Open(config.DisplayConfig{Type: "oled"}, 8, &buf)
	assert.Error(t, err)
}
