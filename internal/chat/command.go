package chat

import "context"

// Command is an administrator or informational command parsed from a chat
// update. Args carries the positional arguments after the command name.
type Command struct {
	Name        string
	Args        []string
	ChatID      int64
	ThreadID    int
	IssuerID    int64
	IssuerAlias string
}

// Handler receives inbound traffic from a transport adapter.
type Handler interface {
	// HandleMessage processes a regular text message.
	HandleMessage(ctx context.Context, msg Message)
	// HandleCommand processes a command addressed to the bot.
	HandleCommand(ctx context.Context, cmd Command)
}
