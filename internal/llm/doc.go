// Package llm provides the text generation functions used by the assistant.
// It supports OpenAI and Anthropic, wraps each provider in a tier with its own
// timeout and immediate retry, and exposes a rate-limited intent classifier
// for the router's generative pass.
package llm
