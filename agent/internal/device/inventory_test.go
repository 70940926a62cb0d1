package device

import (
	"encoding/base64"
	"testing"

	"flyvemdm/backend/app/services"

	"github.com/stretchr/testify/require"
)

func TestInventoryIsReadByBackend(t *testing.T) {
	info := Info{Serial: "SN42", UUID: "u-42", Name: "sim", Model: "Simulator", OSName: "Android", OSVersion: "13"}
	enc, err := info.EncodedInventory()
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(enc)
	require.NoError(t, err)

	inv, err := services.XMLImporter{}.Import(raw)
	require.NoError(t, err)
	require.Equal(t, "SN42", inv.Serial)
	require.Equal(t, "Simulator", inv.Model)
	require.Equal(t, "13", inv.OSVersion)
	require.Equal(t, "sim-SN42", inv.DeviceID)
}
