// Package openaicompat implements llm.Provider on top of the OpenAI Chat
// Completions wire format.
//
// The openai package wraps it with OpenAI defaults and the Organization
// header; any self-hosted endpoint with the same format can use it directly:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName:  "local",
//	    BaseURL:       "http://localhost:8000",
//	    DefaultModel:  "llama-3.1-8b-instruct",
//	}, logger)
package openaicompat
