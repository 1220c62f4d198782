package deluge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tinoosan/seedstat/internal/client"
	"github.com/tinoosan/seedstat/internal/transport"
)

type rpcReq struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcResp struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call posts one JSON-RPC request and returns the raw result together with the
// response headers. A non-null error member is returned as
// *client.BackendError.
func (a *Adapter) call(ctx context.Context, method string, params []any, o transport.Options) (json.RawMessage, http.Header, error) {
	a.mu.Lock()
	id := a.seq
	a.seq++
	cookie := a.cookie
	a.mu.Unlock()

	body, err := json.Marshal(rpcReq{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	o.Op = method
	resp, err := a.rq.Do(req, o)
	if err != nil {
		return nil, nil, err
	}
	b, err := transport.ReadBody(resp)
	if err != nil {
		return nil, resp.Header, &client.DecodeError{What: method + " response", Err: err}
	}

	var rr rpcResp
	if err := json.Unmarshal(b, &rr); err != nil {
		return nil, resp.Header, &client.DecodeError{What: method + " response", Err: err}
	}
	if rr.ID != id {
		return nil, resp.Header, &client.DecodeError{What: fmt.Sprintf("%s response: id %d, sent %d", method, rr.ID, id)}
	}
	if rr.Error != nil {
		return nil, resp.Header, &client.BackendError{Method: method, Message: rr.Error.Message}
	}
	return rr.Result, resp.Header, nil
}

func decodeBool(raw json.RawMessage, method string) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, &client.DecodeError{What: method + " result", Err: err}
	}
	return v, nil
}

func decodePlugins(raw json.RawMessage) ([]string, error) {
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &client.DecodeError{What: "plugin list", Err: err}
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
