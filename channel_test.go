package amqp08

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(t *testing.T) (*Connection, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{toRead: []scriptedFrame{
		methodFrame(0, sigConnectionStart, startArgs(t, "AMQPLAIN", "en_US")),
		methodFrame(0, sigConnectionTune, tuneArgs(10, 0, 0)),
		methodFrame(0, sigConnectionOpenOk, openOkArgs(t, "")),
	}}
	conn, err := NewConnection(tr)
	require.NoError(t, err)
	return conn, tr
}

func TestChannelOpenAndClose(t *testing.T) {
	conn, tr := newTestConnection(t)

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch, err := conn.OpenChannel()
	require.NoError(t, err)
	assert.True(t, ch.IsOpen())

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelCloseOk, nil))
	require.NoError(t, ch.Close(200, "bye", MethodSignature{}))
	assert.False(t, ch.IsOpen())

	// a second Close is a no-op, per spec.md idempotent-close semantics.
	require.NoError(t, ch.Close(200, "bye", MethodSignature{}))
}

func TestChannelCloseIsAdmissibleDuringUnrelatedWait(t *testing.T) {
	conn, tr := newTestConnection(t)

	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch, err := conn.OpenChannel()
	require.NoError(t, err)

	closeArgs := func() []byte {
		w := NewWriter()
		w.WriteShort(404)
		require.NoError(t, w.WriteShortStr("not found"))
		w.WriteShort(0)
		w.WriteShort(0)
		return w.Bytes()
	}()
	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelClose, closeArgs))

	// Wait() is told to expect only Basic.Deliver, yet a peer-initiated
	// Channel.Close must still preempt it (spec.md §4.5 admissibility).
	_, err = ch.Wait(map[MethodSignature]bool{sigBasicDeliver: true})
	var closedByPeer *ChannelClosedByPeer
	require.ErrorAs(t, err, &closedByPeer)
	assert.EqualValues(t, 404, closedByPeer.ReplyCode)
	assert.False(t, ch.IsOpen())

	// Start-Ok, Tune-Ok, Open and Channel.Open precede the Close-Ok reply.
	require.Len(t, tr.written, 5)
	r := NewReader(tr.written[4].payload)
	classID, _ := r.ReadShort()
	methodID, _ := r.ReadShort()
	assert.Equal(t, sigChannelCloseOk, MethodSignature{Class: classID, Method: methodID})
}

func TestChannelAutoDecodeText(t *testing.T) {
	conn, tr := newTestConnection(t)
	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch, err := conn.OpenChannel()
	require.NoError(t, err)
	ch.AutoDecode = true

	msg := &Message{}
	msg.SetContentEncoding("UTF-8")
	header := NewWriter()
	header.WriteShort(classBasic)
	header.WriteShort(0)
	header.WriteLongLong(5)
	header.buf = append(header.buf, msg.encodeProperties()...)

	tr.toRead = append(tr.toRead,
		methodFrame(1, sigBasicDeliver, nil),
		scriptedFrame{kind: FrameHeader, channel: 1, payload: header.Bytes()},
		scriptedFrame{kind: FrameBody, channel: 1, payload: []byte("hello")},
	)

	result, err := ch.Wait(nil)
	require.NoError(t, err)
	delivery, ok := result.(*Delivery)
	require.True(t, ok)
	assert.Equal(t, "hello", delivery.Content.BodyText)
}

func TestChannelQueueOwnBacklogServedBeforeReadingMore(t *testing.T) {
	conn, tr := newTestConnection(t)
	tr.toRead = append(tr.toRead, methodFrame(1, sigChannelOpenOk, nil))
	ch, err := conn.OpenChannel()
	require.NoError(t, err)

	// manually enqueue as if it arrived earlier and was set aside.
	ch.enqueue(sigChannelCloseOk, NewReader(nil), nil)

	result, err := ch.Wait(map[MethodSignature]bool{sigChannelCloseOk: true})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Empty(t, tr.toRead) // nothing was consumed from the transport
}
