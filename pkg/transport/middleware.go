package transport

// Middleware decorates a ChatCompletionCreator.
type Middleware func(ChatCompletionCreator) ChatCompletionCreator

// Chain composes middleware so that Chain(a, b)(h) == a(b(h)); a sees the
// request first.
func Chain(middlewares ...Middleware) Middleware {
	return func(next ChatCompletionCreator) ChatCompletionCreator {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
