package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.bug.st/serial/enumerator"
)

func TestSelectCandidatesNoFTDI(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0", IsUSB: false},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4"}, // CP210x, not ours
	}
	_, err := selectCandidates(ports, func(string) error { return nil })
	assert.ErrorIs(t, err, ErrNoDeviceFound)
}

func TestSelectCandidatesProbeFailure(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403"},
	}
	_, err := selectCandidates(ports, func(string) error {
		return errors.New("device busy")
	})
	assert.ErrorIs(t, err, ErrNoDeviceFound)
}

func TestSelectCandidatesMatches(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0", IsUSB: false},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403"},
		{Name: "/dev/ttyUSB2", IsUSB: true, VID: "2341"},
	}
	var probed []string
	found, err := selectCandidates(ports, func(name string) error {
		probed = append(probed, name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, found)
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, probed)
}

func TestSelectCandidatesVIDCaseInsensitive(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403"},
	}
	found, err := selectCandidates(ports, func(string) error { return nil })
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
