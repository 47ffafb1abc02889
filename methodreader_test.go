package amqp08

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func methodFramePayload(sig MethodSignature, args []byte) []byte {
	w := NewWriter()
	w.WriteShort(sig.Class)
	w.WriteShort(sig.Method)
	w.buf = append(w.buf, args...)
	return w.Bytes()
}

func TestMethodReaderReassemblesBareMethod(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		{kind: FrameMethod, channel: 1, payload: methodFramePayload(sigChannelOpenOk, nil)},
	}}
	f := NewMethodReader(tr, nil)

	channel, sig, args, content, err := f.ReadMethod()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), channel)
	assert.Equal(t, sigChannelOpenOk, sig)
	assert.Nil(t, content)
	assert.Zero(t, args.Len())
	assert.EqualValues(t, 1, f.BytesRecv())
}

func TestMethodReaderReassemblesMethodHeaderBody(t *testing.T) {
	msg := &Message{}
	msg.SetContentType("text/plain")
	propsBlob := msg.encodeProperties()

	header := NewWriter()
	header.WriteShort(classBasic)
	header.WriteShort(0)
	header.WriteLongLong(5)
	header.buf = append(header.buf, propsBlob...)

	tr := &fakeTransport{toRead: []scriptedFrame{
		{kind: FrameMethod, channel: 2, payload: methodFramePayload(sigBasicDeliver, []byte{0x01})},
		{kind: FrameHeader, channel: 2, payload: header.Bytes()},
		{kind: FrameBody, channel: 2, payload: []byte("hel")},
		{kind: FrameBody, channel: 2, payload: []byte("lo")},
	}}
	f := NewMethodReader(tr, nil)

	channel, sig, args, content, err := f.ReadMethod()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), channel)
	assert.Equal(t, sigBasicDeliver, sig)
	require.NotNil(t, content)
	assert.Equal(t, "hello", string(content.Body))
	assert.Equal(t, "text/plain", content.ContentType)

	b, err := args.ReadOctet()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)
}

func TestMethodReaderZeroLengthBodySkipsBodyFrame(t *testing.T) {
	header := NewWriter()
	header.WriteShort(classBasic)
	header.WriteShort(0)
	header.WriteLongLong(0)
	header.buf = append(header.buf, (&Message{}).encodeProperties()...)

	tr := &fakeTransport{toRead: []scriptedFrame{
		{kind: FrameMethod, channel: 1, payload: methodFramePayload(sigBasicReturn, nil)},
		{kind: FrameHeader, channel: 1, payload: header.Bytes()},
	}}
	f := NewMethodReader(tr, nil)

	_, sig, _, content, err := f.ReadMethod()
	require.NoError(t, err)
	assert.Equal(t, sigBasicReturn, sig)
	require.NotNil(t, content)
	assert.Empty(t, content.Body)
}

func TestMethodReaderUnexpectedFrameKindIsChannelScoped(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		{kind: FrameHeader, channel: 1, payload: nil}, // header where a method is expected
	}}
	f := NewMethodReader(tr, nil)

	_, _, _, _, err := f.ReadMethod()
	var uf *UnexpectedFrame
	assert.ErrorAs(t, err, &uf)
}

func TestMethodReaderAnswersHeartbeatWithoutEnqueuing(t *testing.T) {
	tr := &fakeTransport{toRead: []scriptedFrame{
		{kind: FrameHeartbeat, channel: 0, payload: nil},
		{kind: FrameMethod, channel: 0, payload: methodFramePayload(sigConnectionCloseOk, nil)},
	}}
	f := NewMethodReader(tr, nil)

	channel, sig, _, _, err := f.ReadMethod()
	require.NoError(t, err)
	assert.Equal(t, uint16(0), channel)
	assert.Equal(t, sigConnectionCloseOk, sig)

	require.Len(t, tr.written, 1)
	assert.Equal(t, FrameHeartbeat, tr.written[0].kind)
}
