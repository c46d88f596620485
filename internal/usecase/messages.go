package usecase

const (
	// Greeting seeds every new conversation.
	Greeting = "नमस्ते! Hi there! I'm SayHey, your emotional support companion. I'm here to listen and help. How are you feeling today? 💚"

	// FallbackReply replaces the bot reply whenever the exchange fails.
	FallbackReply = "I'm having trouble connecting right now, but I'm still here for you. Please try again in a moment. 💙"
)
