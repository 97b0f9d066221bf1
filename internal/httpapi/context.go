package httpapi

import "context"

// serverBaseCtx is a process-level context that can be canceled on shutdown.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers. Nil
// resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// requestContext derives the context of a generation: canceled when the
// client goes away, when the server shuts down, or after generateTimeout.
func requestContext(req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(serverBaseCtx, cancel)
	if generateTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, generateTimeout)
		return ctx, func() { stop(); cancelTimeout(); cancel() }
	}
	return ctx, func() { stop(); cancel() }
}

// canceled reports whether the client or the server ended the request.
func canceled(req context.Context) bool {
	return req.Err() != nil || serverBaseCtx.Err() != nil
}

