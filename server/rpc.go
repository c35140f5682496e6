package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/lexcodex/transmute/session"
)

// RPCServer drives translation sessions over a JSON-RPC 2.0 stream, the same
// transport editors use for language servers.
type RPCServer struct {
	Engine *session.Engine
	Logger *log.Logger
}

// RollbackParams selects the snapshot to restore.
type RollbackParams struct {
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
}

// SessionIDParams addresses one session.
type SessionIDParams struct {
	SessionID string `json:"session_id"`
}

// FeedbackParams wraps a feedback request with its session id.
type FeedbackParams struct {
	SessionID string `json:"session_id"`
	FeedbackRequest
}

// FailStepParams marks one step as failed.
type FailStepParams struct {
	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
	Reason    string `json:"reason,omitempty"`
}

// ServeStdio serves requests over stdin/stdout until the peer disconnects.
func (s *RPCServer) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &stdioReadWriteCloser{reader: os.Stdin, writer: os.Stdout})
}

// Serve handles requests on rwc until the connection closes or ctx is done.
func (s *RPCServer) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	defer conn.Close()
	if s.Logger != nil {
		s.Logger.Printf("RPC server ready")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

func (s *RPCServer) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "session/initialize":
		var params SessionRequest
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		params.SourceAST.Rebind()
		sess, err := s.Engine.InitializeSession(ctx, params.SourceAST, session.Options{
			SourceLanguage:   params.SourceLanguage,
			TargetLanguage:   params.TargetLanguage,
			UserID:           params.UserID,
			ProjectID:        params.ProjectID,
			StylePreferences: params.StylePreferences,
			ProjectContext:   params.ProjectContext,
		})
		if err != nil {
			return nil, rpcError(err)
		}
		return s.getSession(sess.ID)

	case "session/feedback":
		var params FeedbackParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		params.TargetNode.Rebind()
		err := s.Engine.ProcessUserFeedback(ctx, params.SessionID, params.StepID, session.UserFeedback{
			Action:       params.Action,
			SuggestionID: params.SuggestionID,
			TargetNode:   params.TargetNode,
			Rating:       params.Rating,
			Comment:      params.Comment,
		})
		if err != nil {
			return nil, rpcError(err)
		}
		return s.getSession(params.SessionID)

	case "step/fail":
		var params FailStepParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if err := s.Engine.FailStep(ctx, params.SessionID, params.StepID, params.Reason); err != nil {
			return nil, rpcError(err)
		}
		return s.getSession(params.SessionID)

	case "session/get":
		var params SessionIDParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.getSession(params.SessionID)

	case "session/list":
		return s.Engine.ActiveSessionsCopy(), nil

	case "session/pause":
		return s.transition(req, s.Engine.Pause)
	case "session/resume":
		return s.transition(req, s.Engine.Resume)
	case "session/cancel":
		return s.transition(req, s.Engine.Cancel)

	case "session/rollback":
		var params RollbackParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if err := s.Engine.Rollback(params.SessionID, params.Seq); err != nil {
			return nil, rpcError(err)
		}
		return s.getSession(params.SessionID)

	case "patterns/list":
		return s.Engine.Patterns(), nil

	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled"}
	}
}

func (s *RPCServer) transition(req *jsonrpc2.Request, op func(string) error) (interface{}, error) {
	var params SessionIDParams
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if err := op(params.SessionID); err != nil {
		return nil, rpcError(err)
	}
	return s.getSession(params.SessionID)
}

// getSession returns a detached copy so response encoding cannot race
// with concurrent feedback on the live session.
func (s *RPCServer) getSession(id string) (interface{}, error) {
	sess, err := s.Engine.GetSessionCopy(id)
	if err != nil {
		return nil, rpcError(err)
	}
	return sess, nil
}

func unmarshalParams(req *jsonrpc2.Request, out interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(*req.Params, out); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func rpcError(err error) error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
