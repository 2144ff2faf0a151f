package broker

import (
	"encoding/json"

	"github.com/c360/msgbroker/wire"
)

// internalHandler answers an sreq (or self-targeted req) for one
// administrative topic. req carries the decoded inbound message; from
// is the peer it arrived on. The returned payload becomes the res
// payload; err, if non-nil, is translated to a wire.ErrorCode by the
// caller.
type internalHandler func(r *Router, from Peer, req wire.Message) (wire.Payload, error)

// internalHandlers is the fixed table of administrative topics a
// client reaches via sreq, or via req targeting the broker's own
// channel name.
var internalHandlers = map[string]internalHandler{
	"register":             handleRegister,
	"addResponseListener":  handleAddResponseListener,
	"addPullListener":      handleAddPullListener,
	"addSubscribeListener": handleAddSubscribeListener,
	"getChannels":          handleGetChannels,
	"watchChannels":        handleWatchChannels,
}

func handleRegister(r *Router, from Peer, req wire.Message) (wire.Payload, error) {
	name, err := r.registry.Register(req.Source, from)
	if err != nil {
		return wire.Payload{}, err
	}
	if p, ok := from.(interface{ setName(string) }); ok {
		p.setName(name)
	}
	r.emitMonitorEvent("register", name)
	return wire.MarshalJSONPayload(map[string]string{"channelName": name})
}

type addResponseParams struct {
	Topic string `json:"topic"`
}

func handleAddResponseListener(r *Router, from Peer, req wire.Message) (wire.Payload, error) {
	var params addResponseParams
	if err := decodeParams(req, &params); err != nil {
		return wire.Payload{}, err
	}
	if _, err := r.registry.AddResponse(req.Source, params.Topic); err != nil {
		return wire.Payload{}, err
	}
	return wire.MarshalJSONPayload(map[string]bool{"result": true})
}

type addPullParams struct {
	Topic   string         `json:"topic"`
	Options map[string]any `json:"options"`
}

func handleAddPullListener(r *Router, from Peer, req wire.Message) (wire.Payload, error) {
	var params addPullParams
	if err := decodeParams(req, &params); err != nil {
		return wire.Payload{}, err
	}
	if _, err := r.registry.AddPull(req.Source, params.Topic, params.Options); err != nil {
		return wire.Payload{}, err
	}
	r.queues.AddPullWorker(params.Topic, req.Source)
	r.queues.RetryPending(params.Topic)
	return wire.MarshalJSONPayload(map[string]bool{"result": true})
}

type addSubscribeParams struct {
	Topic   string         `json:"topic"`
	Options map[string]any `json:"options"`
}

func handleAddSubscribeListener(r *Router, from Peer, req wire.Message) (wire.Payload, error) {
	var params addSubscribeParams
	if err := decodeParams(req, &params); err != nil {
		return wire.Payload{}, err
	}
	if _, err := r.registry.AddSubscribe(req.Source, params.Topic, params.Options); err != nil {
		return wire.Payload{}, err
	}
	r.queues.AddSubWorker(params.Topic, req.Source)
	return wire.MarshalJSONPayload(map[string]bool{"result": true})
}

type getChannelsParams struct {
	ChannelName string `json:"channelName"`
	Type        string `json:"type"`
}

func handleGetChannels(r *Router, from Peer, req wire.Message) (wire.Payload, error) {
	var params getChannelsParams
	if err := decodeParams(req, &params); err != nil {
		return wire.Payload{}, err
	}
	pattern, err := CompilePattern(params.ChannelName, params.Type)
	if err != nil {
		return wire.Payload{}, err
	}
	names := r.registry.FindChannelNames(pattern)
	return wire.MarshalJSONPayload(map[string]any{"channels": orEmpty(names)})
}

type watchChannelsParams struct {
	ChannelName string `json:"channelName"`
}

func handleWatchChannels(r *Router, from Peer, req wire.Message) (wire.Payload, error) {
	var params watchChannelsParams
	if err := decodeParams(req, &params); err != nil {
		return wire.Payload{}, err
	}
	pattern, err := CompileImplicit(params.ChannelName)
	if err != nil {
		return wire.Payload{}, err
	}
	names := r.registry.AddMonitor(pattern, from)
	return wire.MarshalJSONPayload(map[string]any{
		"result":        true,
		"channelPattern": pattern.String(),
		"channelNames":  orEmpty(names),
	})
}

func orEmpty(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

// decodeParams unmarshals req's JSON payload into dst, wrapping any
// failure as an InvalidParameter-classified error.
func decodeParams(req wire.Message, dst any) error {
	raw, err := req.Payload.Bytes()
	if err != nil {
		return errInvalidParameter
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidParameter
	}
	return nil
}
