package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/marcus/shelf/internal/models"
)

// RPCResult is the success envelope of an RPC call.
type RPCResult struct {
	Result struct {
		Data any `json:"data"`
	} `json:"result"`
}

// IDInput is the input of the get-by-id and delete procedures.
type IDInput struct {
	ID string `json:"id"`
}

// Validate requires the id.
func (in IDInput) Validate() error {
	if in.ID == "" {
		fe := models.FieldErrors{}
		fe.Add("id", "Required")
		return fe
	}
	return nil
}

// procedure runs one RPC call for the signed-in user. The topics are
// published after a successful call.
type procedure struct {
	call   func(s *Server, r *http.Request, input json.RawMessage) (any, error)
	topics []string
}

// rpcInput decodes the raw input into T. An empty body decodes as T's zero value.
func rpcInput[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", errBadInput, err)
	}
	return v, nil
}

var errBadInput = errors.New("invalid json input")

var procedures = map[string]procedure{
	"authors.getAuthors": {call: func(s *Server, r *http.Request, _ json.RawMessage) (any, error) {
		return s.store.ListAuthors(currentUserID(r))
	}},
	"authors.getAuthorById": {call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[IDInput](raw)
		if err != nil {
			return nil, err
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		return s.store.GetAuthor(currentUserID(r), in.ID)
	}},
	"authors.createAuthor": {topics: []string{TopicAuthors}, call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[models.NewAuthorParams](raw)
		if err != nil {
			return nil, err
		}
		return s.store.CreateAuthor(currentUserID(r), in)
	}},
	"authors.updateAuthor": {topics: []string{TopicAuthors, TopicBooks}, call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[models.UpdateAuthorParams](raw)
		if err != nil {
			return nil, err
		}
		return s.store.UpdateAuthor(currentUserID(r), in)
	}},
	"authors.deleteAuthor": {topics: []string{TopicAuthors, TopicBooks}, call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[IDInput](raw)
		if err != nil {
			return nil, err
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		return s.store.DeleteAuthor(currentUserID(r), in.ID)
	}},
	"books.getBooks": {call: func(s *Server, r *http.Request, _ json.RawMessage) (any, error) {
		return s.store.ListBooks(currentUserID(r))
	}},
	"books.getBookById": {call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[IDInput](raw)
		if err != nil {
			return nil, err
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		return s.store.GetBook(currentUserID(r), in.ID)
	}},
	"books.createBook": {topics: []string{TopicBooks}, call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[models.NewBookParams](raw)
		if err != nil {
			return nil, err
		}
		return s.store.CreateBook(currentUserID(r), in)
	}},
	"books.updateBook": {topics: []string{TopicBooks}, call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[models.UpdateBookParams](raw)
		if err != nil {
			return nil, err
		}
		return s.store.UpdateBook(currentUserID(r), in)
	}},
	"books.deleteBook": {topics: []string{TopicBooks}, call: func(s *Server, r *http.Request, raw json.RawMessage) (any, error) {
		in, err := rpcInput[IDInput](raw)
		if err != nil {
			return nil, err
		}
		if err := in.Validate(); err != nil {
			return nil, err
		}
		return s.store.DeleteBook(currentUserID(r), in.ID)
	}},
}

// handleRPC handles POST /rpc/{procedure}. The request body is the
// procedure input; the response is {"result":{"data":...}} or an error envelope.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("procedure")
	proc, ok := procedures[name]
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeUnknownProcedure, fmt.Sprintf("no procedure %q", name))
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "failed to read body")
		return
	}

	data, err := proc.call(s, r, raw)
	if err != nil {
		if errors.Is(err, errBadInput) {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		writeStoreError(w, r, name, err)
		return
	}

	if len(proc.topics) > 0 {
		s.metrics.RecordMutation()
		for _, t := range proc.topics {
			s.hub.Publish(currentUserID(r), t)
		}
	}

	var res RPCResult
	res.Result.Data = data
	writeJSON(w, http.StatusOK, res)
}
