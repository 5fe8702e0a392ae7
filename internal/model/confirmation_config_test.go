package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateIDsDecoding(t *testing.T) {
	config := ConfirmationConfig{AppointmentStates: "7"}
	assert.Equal(t, []int{7}, config.StateIDs())

	config.AppointmentStates = "7, 3,12"
	assert.Equal(t, []int{7, 3, 12}, config.StateIDs())

	// Blank and junk entries are dropped, not fatal
	config.AppointmentStates = "7,,x,3"
	assert.Equal(t, []int{7, 3}, config.StateIDs())

	config.AppointmentStates = ""
	assert.Empty(t, config.StateIDs())
}

func TestSendTime(t *testing.T) {
	config := ConfirmationConfig{TimeToSend: "09:30"}
	hour, minute, err := config.SendTime()
	require.NoError(t, err)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 30, minute)

	config.TimeToSend = "9:30am"
	_, _, err = config.SendTime()
	assert.Error(t, err)
}

func TestTenantGHLCredentials(t *testing.T) {
	tenant := Tenant{GHLEnabled: true, GHLAccessToken: "tok", GHLLocationID: "loc"}
	assert.True(t, tenant.HasGHLCredentials())

	tenant.GHLEnabled = false
	assert.False(t, tenant.HasGHLCredentials())

	tenant = Tenant{GHLEnabled: true, GHLAccessToken: "tok"}
	assert.False(t, tenant.HasGHLCredentials())
}
