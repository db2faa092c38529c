package client

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-Annonym/ipk24chat-client/internal/clog"
	"github.com/Mr-Annonym/ipk24chat-client/internal/command"
	"github.com/Mr-Annonym/ipk24chat-client/internal/protocol"
)

func newTestCore() (*core, *bytes.Buffer) {
	var buf bytes.Buffer
	return newCore(&buf, clog.Clog{}), &buf
}

func TestRender_IncomingMessage(t *testing.T) {
	c, buf := newTestCore()
	c.renderIncomingMessage(protocol.Message{DisplayName: "Al", Content: "hi"})
	assert.Equal(t, "Al: hi\n", buf.String())
}

func TestRender_Reply(t *testing.T) {
	c, buf := newTestCore()
	c.renderReply(protocol.Message{Ok: true, Content: "ok"})
	assert.Equal(t, "Action Success: ok\n", buf.String())

	buf.Reset()
	c.renderReply(protocol.Message{Ok: false, Content: "bad secret"})
	assert.Equal(t, "Action Failure: bad secret\n", buf.String())
}

func TestRender_IncomingError(t *testing.T) {
	c, buf := newTestCore()
	c.renderIncomingError(protocol.Message{DisplayName: "srv", Content: "oops"})
	assert.Equal(t, "ERROR FROM srv: oops\n", buf.String())
}

func TestToMessage_AuthSetsNoIdentityUntilApplyPostSend(t *testing.T) {
	c, _ := newTestCore()
	cmd := &command.Command{Kind: command.Auth, Username: "alice", Secret: "s3cr3t", DisplayName: "Al"}
	msg, send, err := c.toMessage(cmd)
	require.NoError(t, err)
	require.True(t, send)
	assert.Equal(t, protocol.AUTH, msg.Kind)
	assert.Empty(t, c.id.Username)

	c.applyPostSend(cmd)
	assert.Equal(t, "alice", c.id.Username)
	assert.Equal(t, "Al", c.id.DisplayName)
}

func TestToMessage_RenameHandledLocallyNoSend(t *testing.T) {
	c, _ := newTestCore()
	cmd := &command.Command{Kind: command.Rename, DisplayName: "NewName"}
	_, send, err := c.toMessage(cmd)
	assert.NoError(t, err)
	assert.False(t, send)
	assert.Equal(t, "NewName", c.id.DisplayName)
}

func TestToMessage_InvalidJoinChannelIsUserInputError(t *testing.T) {
	c, _ := newTestCore()
	cmd := &command.Command{Kind: command.Join, ChannelID: ""}
	_, send, err := c.toMessage(cmd)
	assert.False(t, send)
	assert.ErrorIs(t, err, protocol.ErrUserInput)
}

func TestToMessage_MessageUsesCurrentDisplayName(t *testing.T) {
	c, _ := newTestCore()
	c.id.Rename("Al")
	cmd := &command.Command{Kind: command.Message, Content: "hello"}
	msg, send, err := c.toMessage(cmd)
	require.NoError(t, err)
	require.True(t, send)
	assert.Equal(t, "Al", msg.DisplayName)
	assert.Equal(t, "hello", msg.Content)
}

func TestReplyOutcome(t *testing.T) {
	assert.Equal(t, 0, int(replyOutcome(protocol.Message{Kind: protocol.MSG})))
	assert.Equal(t, 1, int(replyOutcome(protocol.Message{Kind: protocol.REPLY, Ok: true})))
	assert.Equal(t, 2, int(replyOutcome(protocol.Message{Kind: protocol.REPLY, Ok: false})))
}
