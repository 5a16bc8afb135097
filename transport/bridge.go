package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/pluginctx"
	"github.com/vinayprograms/pluginkit/shutdown"
)

// Bridge serves one plugin context to a remote host over a Transport.
type Bridge struct {
	pc     *pluginctx.Context
	t      Transport
	logger *logging.Logger

	once   sync.Once
	result *shutdown.Result
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the logger. Default: logging.Nop().
func WithBridgeLogger(l *logging.Logger) BridgeOption {
	return func(b *Bridge) {
		b.logger = l.WithComponent("bridge")
	}
}

// NewBridge creates a bridge between pc and t.
func NewBridge(pc *pluginctx.Context, t Transport, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		pc:     pc,
		t:      t,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Serve runs the transport and dispatches host messages until the host asks
// for shutdown, the host disconnects, or ctx is cancelled. Every one of those
// ends with the plugin's shutdown sequence and a plugin.stopped notification
// (when the transport can still carry it).
func (b *Bridge) Serve(ctx context.Context) error {
	unlisten := b.pc.Settings().OnChange(func(key string, value any) {
		b.notify(MethodSettingsChanged, SettingsChangedParams{Key: key, Value: value})
	})
	defer unlisten()

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	runErr := make(chan error, 1)
	go func() {
		runErr <- b.t.Run(runCtx)
	}()

	recv := b.t.Recv()
loop:
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("bridge_cancelled")
			break loop
		case msg, ok := <-recv:
			if !ok {
				b.logger.Info("host_disconnected")
				break loop
			}
			if b.handle(ctx, msg) {
				break loop
			}
		}
	}

	b.stop(ctx)
	b.t.Close()
	return <-runErr
}

// Result returns the shutdown result once Serve has stopped the plugin.
func (b *Bridge) Result() *shutdown.Result {
	return b.result
}

// handle dispatches one message. It reports whether the bridge should stop.
func (b *Bridge) handle(ctx context.Context, msg *InboundMessage) bool {
	if n := msg.Notification; n != nil {
		return b.handleNotification(n)
	}

	req := msg.Request
	if req.Method == MethodShutdown {
		res := b.stop(ctx)
		b.respond(req.ID, NewStoppedParams(res), nil)
		return true
	}

	result, err := b.call(ctx, req)
	b.respond(req.ID, result, err)
	return false
}

func (b *Bridge) handleNotification(n *Notification) bool {
	switch n.Method {
	case MethodJournalBatch:
		var p JournalBatchParams
		if err := remarshal(n.Params, &p); err != nil {
			b.logger.Warn("bad_journal_batch", logging.Fields{"error": err})
			return false
		}
		b.pc.DeliverJournalBatch(p.Cmdr, p.File, p.Events)
	case MethodShutdown:
		return true
	default:
		b.logger.Debug("notification_ignored", logging.Fields{"method": n.Method})
	}
	return false
}

func (b *Bridge) call(ctx context.Context, req *Request) (any, error) {
	switch req.Method {
	case MethodSettingsGet:
		var p SettingsGetParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &Error{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
		}
		v, ok, err := b.pc.Settings().Get(ctx, p.Key)
		if err != nil {
			return nil, err
		}
		return SettingsGetResult{Value: v, Found: ok}, nil

	case MethodSettingsWrite:
		var p SettingsWriteParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, &Error{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
		}
		value, err := decodeValue(p.Value)
		if err != nil {
			return nil, &Error{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}
		}
		committed, err := b.pc.Settings().Write(ctx, p.Key, value)
		if err != nil {
			return nil, err
		}
		return SettingsWriteResult{Value: committed}, nil

	case MethodMeta:
		return b.pc.PluginMeta(), nil

	default:
		return nil, &Error{Code: MethodNotFound, Message: "Method not found", Data: req.Method}
	}
}

// stop runs the shutdown sequence once and tells the host how it went.
func (b *Bridge) stop(ctx context.Context) *shutdown.Result {
	b.once.Do(func() {
		// The grace period still applies when ctx is already cancelled.
		b.result = b.pc.RequestShutdown(context.WithoutCancel(ctx))
		b.notify(MethodStopped, NewStoppedParams(b.result))
	})
	return b.result
}

func (b *Bridge) respond(id any, result any, err error) {
	resp := &Response{JSONRPC: Version, ID: id}
	if err != nil {
		resp.Error = errorFor(err)
	} else {
		resp.Result = result
	}
	if sendErr := b.t.Send(&OutboundMessage{Response: resp}); sendErr != nil {
		b.logger.Debug("response_dropped", logging.Fields{"error": sendErr})
	}
}

func (b *Bridge) notify(method string, params any) {
	err := b.t.Send(&OutboundMessage{Notification: &Notification{
		JSONRPC: Version,
		Method:  method,
		Params:  params,
	}})
	if err != nil {
		b.logger.Debug("notification_dropped", logging.Fields{"method": method, "error": err})
	}
}

// remarshal converts decoded notification params into a typed struct.
func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
