package cmd

// Middleware wraps a command with extra behaviour such as logging or
// access checks. The result is still a Command.
type Middleware func(Command) Command

// Apply wraps c in mws. The first middleware ends up outermost.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
