package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/transmute/ast"
	"github.com/lexcodex/transmute/pattern"
	"github.com/lexcodex/transmute/session"
)

// dialRPC wires a server and client over an in-memory pipe.
func dialRPC(t *testing.T) *jsonrpc2.Conn {
	t.Helper()
	serverSide, clientSide := net.Pipe()

	engine := session.NewEngine(pattern.NewLibrary(), &cannedOrchestrator{}, nil, nil)
	rpc := &RPCServer{Engine: engine}
	ctx, cancel := context.WithCancel(context.Background())
	go rpc.Serve(ctx, serverSide)
	t.Cleanup(cancel)

	stream := jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(
		func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (interface{}, error) {
			return nil, nil
		}))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func rpcSessionRequest() SessionRequest {
	source := ast.New(ast.NodeTypeProgram, "")
	call := ast.New(ast.NodeTypeCallExpression, "")
	call.SetAttr("callee", "Response.Write")
	call.AddChild(ast.New(ast.NodeTypeLiteral, "hi"))
	source.AddChild(call)
	return SessionRequest{SourceAST: source, SourceLanguage: "asp", TargetLanguage: "go"}
}

func TestRPCSessionLifecycle(t *testing.T) {
	conn := dialRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sess session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/initialize", rpcSessionRequest(), &sess))
	require.NotEmpty(t, sess.ID)
	require.Len(t, sess.Steps, 1)
	assert.Equal(t, session.SessionTranslating, sess.Status)

	var fetched session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/get", SessionIDParams{SessionID: sess.ID}, &fetched))
	assert.Equal(t, sess.ID, fetched.ID)

	var updated session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/feedback", FeedbackParams{
		SessionID: sess.ID,
		FeedbackRequest: FeedbackRequest{
			StepID: sess.Steps[0].ID,
			Action: pattern.ActionAccept,
		},
	}, &updated))
	assert.Equal(t, session.SessionCompleted, updated.Status)
}

func TestRPCPauseAndList(t *testing.T) {
	conn := dialRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sess session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/initialize", rpcSessionRequest(), &sess))

	var paused session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/pause", SessionIDParams{SessionID: sess.ID}, &paused))
	assert.Equal(t, session.SessionPaused, paused.Status)

	var sessions []session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/list", nil, &sessions))
	assert.Len(t, sessions, 1)
}

func TestRPCUnknownMethod(t *testing.T) {
	conn := dialRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := conn.Call(ctx, "session/unknown", nil, nil)
	require.Error(t, err)
	var rpcErr *jsonrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
}

func TestRPCRollback(t *testing.T) {
	conn := dialRPC(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sess session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/initialize", rpcSessionRequest(), &sess))
	require.NoError(t, conn.Call(ctx, "session/feedback", FeedbackParams{
		SessionID: sess.ID,
		FeedbackRequest: FeedbackRequest{
			StepID: sess.Steps[0].ID,
			Action: pattern.ActionAccept,
		},
	}, nil))

	var rolled session.TranslationSession
	require.NoError(t, conn.Call(ctx, "session/rollback", RollbackParams{SessionID: sess.ID, Seq: 0}, &rolled))
	assert.NotNil(t, rolled.TargetAST)

	err := conn.Call(ctx, "session/rollback", RollbackParams{SessionID: sess.ID, Seq: 42}, nil)
	require.Error(t, err)
}
