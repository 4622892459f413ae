package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/maghand/config"
	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/sim"
)

func TestParseScript(t *testing.T) {
	names, err := parseScript(" 00, 21,,52 ")
	require.NoError(t, err)
	assert.Equal(t, []keys.Name{0, 21, 52}, names)

	_, err = parseScript("00,xx")
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	_, err = parseScript("256")
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestFormatReport(t *testing.T) {
	assert.Equal(t, "report mods=00000010 keys=[14 1a]",
		formatReport([]byte{0x02, 0, 0x14, 0x1a, 0, 0, 0, 0}))
	assert.Equal(t, "report mods=00000000 keys=[]", formatReport(make([]byte, 8)))
	assert.Equal(t, "short report 01 02", formatReport([]byte{1, 2}))
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := config.Default()
	p.Scan.Settle = 100 * time.Microsecond
	p.HID.WakeupPoll = time.Millisecond
	err := run(ctx, p, sim.DefaultConfig(), []keys.Name{0, 1}, 20*time.Millisecond, 20*time.Millisecond, true)
	assert.NoError(t, err)
}
