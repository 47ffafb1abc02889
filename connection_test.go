package amqp08

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startArgs(t *testing.T, mechanisms, locales string) []byte {
	t.Helper()
	w := NewWriter()
	w.WriteOctet(0)
	w.WriteOctet(9)
	require.NoError(t, w.WriteTable(Table{"product": "test-broker"}))
	w.WriteLongStr([]byte(mechanisms))
	w.WriteLongStr([]byte(locales))
	return w.Bytes()
}

func tuneArgs(channelMax uint16, frameMax uint32, heartbeat uint16) []byte {
	w := NewWriter()
	w.WriteShort(channelMax)
	w.WriteLong(frameMax)
	w.WriteShort(heartbeat)
	return w.Bytes()
}

func openOkArgs(t *testing.T, knownHosts string) []byte {
	t.Helper()
	w := NewWriter()
	require.NoError(t, w.WriteShortStr(knownHosts))
	return w.Bytes()
}

func methodFrame(channel uint16, sig MethodSignature, args []byte) scriptedFrame {
	return scriptedFrame{kind: FrameMethod, channel: channel, payload: methodFramePayload(sig, args)}
}

func TestNewConnectionDrivesFullHandshake(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "PLAIN AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(10, 4096, 30)),
		methodFrame(0, sigConnectionOpenOk, openOkArgs(t, "")),
	}}

	conn, err := NewConnection(tr, WithVirtualHost("/test"), WithCredentials("u", "p"))
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.True(t, tr.headerWritten)
	assert.EqualValues(t, 10, conn.ChannelMax())  // server proposed tighter than client default
	assert.EqualValues(t, 4096, conn.FrameMax())  // server proposed tighter than client default
	assert.Equal(t, []string{"PLAIN", "AMQPLAIN"}, conn.mechanisms)

	require.Len(t, tr.written, 3)
	gotSig := func(i int) MethodSignature {
		r := NewReader(tr.written[i].payload)
		classID, _ := r.ReadShort()
		methodID, _ := r.ReadShort()
		return MethodSignature{Class: classID, Method: methodID}
	}
	assert.Equal(t, sigConnectionStartOk, gotSig(0))
	assert.Equal(t, sigConnectionTuneOk, gotSig(1))
	assert.Equal(t, sigConnectionOpen, gotSig(2))
}

func TestNewConnectionNegotiatesZeroAsUnbounded(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(0, 0, 0)), // server proposes no preference
		methodFrame(0, sigConnectionOpenOk, openOkArgs(t, "")),
	}}

	conn, err := NewConnection(tr, WithChannelMax(100), WithFrameMax(8192))
	require.NoError(t, err)
	assert.EqualValues(t, 100, conn.ChannelMax())
	assert.EqualValues(t, 8192, conn.FrameMax())
}

func TestNewConnectionReturnsRedirectError(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(0, 0, 0)),
		methodFrame(0, sigConnectionRedirect, func() []byte {
			w := NewWriter()
			require.NoError(t, w.WriteShortStr("other-host:5672"))
			require.NoError(t, w.WriteShortStr("host-a,host-b"))
			return w.Bytes()
		}()),
	}}

	_, err := NewConnection(tr)
	var redirect *RedirectError
	require.ErrorAs(t, err, &redirect)
	assert.Equal(t, "other-host:5672", redirect.Host)
	assert.Equal(t, "host-a,host-b", redirect.KnownHosts)
}

func TestNewConnectionRejectsNilTransport(t *testing.T) {
	_, err := NewConnection(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestConnectionOpenChannelAllocatesFirstFreeID(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(2, 0, 0)),
		methodFrame(0, sigConnectionOpenOk, openOkArgs(t, "")),
	}}
	conn, err := NewConnection(tr)
	require.NoError(t, err)

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch, err := conn.OpenChannel()
	require.NoError(t, err)
	assert.EqualValues(t, 1, ch.ID())
	assert.True(t, ch.IsOpen())

	tr.toRead = append(tr.toRead, methodFrame(2, sigChannelOpenOk, nil))
	ch2, err := conn.OpenChannel()
	require.NoError(t, err)
	assert.EqualValues(t, 2, ch2.ID())

	conn.removeChannel(ch.ID())
	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch3, err := conn.OpenChannel()
	require.NoError(t, err)
	assert.EqualValues(t, 1, ch3.ID())
}

func TestConnectionOpenChannelExhaustion(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(1, 0, 0)),
		methodFrame(0, sigConnectionOpenOk, openOkArgs(t, "")),
	}}
	conn, err := NewConnection(tr)
	require.NoError(t, err)

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	_, err = conn.OpenChannel()
	require.NoError(t, err)

	_, err = conn.OpenChannel()
	assert.ErrorIs(t, err, ErrNoFreeChannels)
}

func TestConnectionClosedByPeerTearsDownChannels(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(1, 0, 0)),
		methodFrame(0, sigConnectionOpenOk, openOkArgs(t, "")),
	}}
	conn, err := NewConnection(tr)
	require.NoError(t, err)

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch, err := conn.OpenChannel()
	require.NoError(t, err)

	closeArgs := func() []byte {
		w := NewWriter()
		w.WriteShort(320)
		require.NoError(t, w.WriteShortStr("shutdown"))
		w.WriteShort(0)
		w.WriteShort(0)
		return w.Bytes()
	}()
	tr.toRead = append(tr.toRead, methodFrame(0, sigConnectionClose, closeArgs))

	_, err = conn.ReadTimeout(0, map[MethodSignature]bool{sigConnectionCloseOk: true})
	var closedByPeer *ConnectionClosedByPeer
	require.ErrorAs(t, err, &closedByPeer)
	assert.EqualValues(t, 320, closedByPeer.ReplyCode)
	assert.False(t, ch.IsOpen())
}
