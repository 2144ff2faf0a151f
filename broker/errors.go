package broker

import "errors"

// Go-level errors returned by Registry/TaskQueue methods. These are
// distinct from wire.ErrorCode: a wire.ErrorCode is what gets put on
// the wire inside a res message; these are what broker-internal Go
// callers see before deciding how (or whether) to turn a failure into
// one.
var (
	// ErrDuplicateName is returned by Registry.Register when an exact
	// (non-empty, '#'-free) requested name is already live.
	ErrDuplicateName = errors.New("broker: channel name already registered")
	// ErrPeerAlreadyRegistered is returned by Registry.Register when the
	// calling peer already owns a live channel: at most one channel per
	// socket.
	ErrPeerAlreadyRegistered = errors.New("broker: peer already has a registered channel")
	// ErrUnknownChannel is returned by addResponse/addPull/addSubscribe
	// when asked to bind a topic to a channel name the registry doesn't
	// know.
	ErrUnknownChannel = errors.New("broker: unknown channel")
	// ErrNameGenerationExhausted guards the "#" substitution loop
	// against an adversarial or pathological collision run.
	ErrNameGenerationExhausted = errors.New("broker: could not generate a unique channel name")
)
