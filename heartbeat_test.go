package amqp08

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatSendsWhenNothingSentSinceLastTick(t *testing.T) {
	conn, _ := newTestConnection(t)
	h := NewHeartbeat(conn)

	require.NoError(t, h.Tick()) // baseline: records whatever the handshake already sent
	baseline := conn.writer.BytesSent()

	require.NoError(t, h.Tick()) // no traffic since baseline -> a heartbeat frame is emitted
	assert.Equal(t, baseline+1, conn.writer.BytesSent())
}

func TestHeartbeatSkipsSendWhenTrafficWasSent(t *testing.T) {
	conn, tr := newTestConnection(t)
	h := NewHeartbeat(conn)

	require.NoError(t, h.Tick()) // baseline
	baseline := conn.writer.BytesSent()

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	_, err := conn.OpenChannel()
	require.NoError(t, err)
	afterOpen := conn.writer.BytesSent()
	require.Greater(t, afterOpen, baseline)

	require.NoError(t, h.Tick())
	// only the channel-open write happened; Tick must not add its own heartbeat on top.
	assert.Equal(t, afterOpen, conn.writer.BytesSent())
}

func TestHeartbeatTimesOutAfterTwoSilentTicks(t *testing.T) {
	conn, _ := newTestConnection(t)
	h := NewHeartbeat(conn)

	require.NoError(t, h.Tick()) // baseline: recv counter already moved by the handshake itself
	require.NoError(t, h.Tick()) // miss 1: no inbound traffic since baseline
	err := h.Tick() // miss 2
	var timeout *HeartbeatTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 2, timeout.Missed)
}

func TestHeartbeatSupersedeDisablesFurtherTicks(t *testing.T) {
	conn, _ := newTestConnection(t)
	h := NewHeartbeat(conn)
	h.Supersede()

	require.NoError(t, h.Tick())
	require.NoError(t, h.Tick())
	require.NoError(t, h.Tick())
}

func TestHeartbeatResetsMissCounterOnNewTraffic(t *testing.T) {
	conn, tr := newTestConnection(t)
	h := NewHeartbeat(conn)

	require.NoError(t, h.Tick()) // baseline
	require.NoError(t, h.Tick()) // miss 1

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	_, err := conn.OpenChannel()
	require.NoError(t, err)

	require.NoError(t, h.Tick()) // recv advanced since the miss, counter resets
	require.NoError(t, h.Tick()) // miss 1 again, not yet a timeout
}
