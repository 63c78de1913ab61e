// Package v1 implements the Stratum V1 JSON-RPC wire codec the translator
// bridge speaks downstream to legacy miners: request/response/notification
// envelopes and the handful of method-specific parsers and constructors the
// bridge needs (mining.subscribe, mining.authorize, mining.configure,
// mining.submit, and the server-initiated mining.notify/set_difficulty/
// set_extranonce/set_version_mask).
package v1

import (
	"encoding/json"
	"fmt"
)

// Request is a client-to-server Stratum V1 JSON-RPC call.
type Request struct {
	ID     int           `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// Response is a server-to-client reply, keyed to a Request by ID.
type Response struct {
	ID     int         `json:"id"`
	Result interface{} `json:"result"`
	Error  interface{} `json:"error"`
}

// Notification is a server-initiated message with no reply expected.
type Notification struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// ParseRequest parses a single line of newline-delimited JSON into a
// Request. Method is required; an empty method is a malformed request.
func ParseRequest(line []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return nil, fmt.Errorf("v1: parse request: %w", err)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("v1: request missing method")
	}
	return &req, nil
}

// ToJSON marshals a Response for the wire (newline-delimited JSON).
func (r *Response) ToJSON() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("v1: marshal response: %w", err)
	}
	return append(b, '\n'), nil
}

// ToJSON marshals a Notification for the wire.
func (n *Notification) ToJSON() ([]byte, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("v1: marshal notification: %w", err)
	}
	return append(b, '\n'), nil
}

// NewSubscribeResponse answers mining.subscribe: a nested subscriptions
// list (each pair is [notify-method, subscription_id]), the assigned
// extranonce1 (hex), and the extranonce2 byte width.
func NewSubscribeResponse(id int, subscriptionID, extranonce1 string, extranonce2Size int) *Response {
	return &Response{
		ID: id,
		Result: []interface{}{
			[]interface{}{
				[]interface{}{"mining.set_difficulty", subscriptionID},
				[]interface{}{"mining.notify", subscriptionID},
			},
			extranonce1,
			extranonce2Size,
		},
		Error: nil,
	}
}

// NewAuthorizeResponse answers mining.authorize.
func NewAuthorizeResponse(id int, authorized bool) *Response {
	return &Response{ID: id, Result: authorized, Error: nil}
}

// NewSubmitResponse answers mining.submit.
func NewSubmitResponse(id int, accepted bool) *Response {
	return &Response{ID: id, Result: accepted, Error: nil}
}

// NewErrorResponse builds the standard [code, message, traceback] error
// triple Stratum V1 clients expect.
func NewErrorResponse(id int, code int, message string) *Response {
	return &Response{ID: id, Result: nil, Error: []interface{}{code, message, nil}}
}

// Notify carries the fields a V1 mining.notify needs; the bridge builds one
// of these from a paired SetNewPrevHash+NewExtendedMiningJob and renders it
// through NewNotifyNotification.
type Notify struct {
	JobID        string
	PrevHash     string
	CoinBase1    string
	CoinBase2    string
	MerkleBranch []string
	Version      string
	Bits         string
	Time         string
	CleanJobs    bool
}

// NewNotifyNotification renders a Notify as the wire mining.notify params
// array, field order per the Stratum V1 spec.
func NewNotifyNotification(n Notify) *Notification {
	return &Notification{
		Method: "mining.notify",
		Params: []interface{}{
			n.JobID,
			n.PrevHash,
			n.CoinBase1,
			n.CoinBase2,
			n.MerkleBranch,
			n.Version,
			n.Bits,
			n.Time,
			n.CleanJobs,
		},
	}
}

// NewDifficultyNotification renders mining.set_difficulty.
func NewDifficultyNotification(difficulty float64) *Notification {
	return &Notification{Method: "mining.set_difficulty", Params: []interface{}{difficulty}}
}

// NewSetExtranoncePrefixNotification renders mining.set_extranonce, sent
// when a channel's extranonce prefix is (re)assigned mid-session.
func NewSetExtranoncePrefixNotification(extranonce1 string, extranonce2Size int) *Notification {
	return &Notification{
		Method: "mining.set_extranonce",
		Params: []interface{}{extranonce1, extranonce2Size},
	}
}

// NewSetVersionMaskNotification renders mining.set_version_mask, telling a
// version-rolling-capable miner which header-version bits it may roll.
func NewSetVersionMaskNotification(mask uint32) *Notification {
	return &Notification{
		Method: "mining.set_version_mask",
		Params: []interface{}{fmt.Sprintf("%08x", mask)},
	}
}

// Configure is the parsed result of a mining.configure request: the
// version-rolling extension and the minimum-difficulty flag.
type Configure struct {
	VersionRolling     bool
	VersionRollingMask uint32
	MinBitCount        uint32
	MinimumDifficulty  *bool
}

// ParseConfigure interprets the two-element params of a mining.configure
// request: an extension-name list, and a map of per-extension parameters.
// An absent "min-bit-count" parses as MinBitCount 0 rather than an error.
func ParseConfigure(params []interface{}) (Configure, error) {
	var cfg Configure
	if len(params) < 2 {
		return cfg, fmt.Errorf("v1: mining.configure requires 2 params, got %d", len(params))
	}
	extMap, ok := params[1].(map[string]interface{})
	if !ok {
		return cfg, fmt.Errorf("v1: mining.configure second param must be an object")
	}
	if v, ok := extMap["version-rolling"]; ok {
		if b, ok := v.(bool); ok {
			cfg.VersionRolling = b
		}
	}
	if v, ok := extMap["version-rolling.mask"]; ok {
		if s, ok := v.(string); ok {
			var mask uint32
			if _, err := fmt.Sscanf(s, "%x", &mask); err != nil {
				return cfg, fmt.Errorf("v1: invalid version-rolling.mask %q: %w", s, err)
			}
			cfg.VersionRollingMask = mask
		}
	}
	if v, ok := extMap["version-rolling.min-bit-count"]; ok {
		if s, ok := v.(string); ok {
			var bits uint32
			if _, err := fmt.Sscanf(s, "%x", &bits); err != nil {
				return cfg, fmt.Errorf("v1: invalid version-rolling.min-bit-count %q: %w", s, err)
			}
			cfg.MinBitCount = bits
		}
	}
	if v, ok := extMap["minimum-difficulty"]; ok {
		if b, ok := v.(bool); ok {
			cfg.MinimumDifficulty = &b
		}
	}
	return cfg, nil
}

// ParseConfigureResponseParams mirrors ParseConfigure but reads the flat
// wire shape a server's configure response uses:
// {"version-rolling":true,"version-rolling.mask":"1fffe000",
//  "version-rolling.min-bit-count":"00000005","minimum-difficulty":false}.
// This is the same key set as the request extension map; the two are
// parsed identically, so ParseConfigure is reused by callers that already
// have the decoded object in hand.
func ParseConfigureResponseParams(obj map[string]interface{}) (Configure, error) {
	return ParseConfigure([]interface{}{nil, obj})
}
