// Package model defines the provider-agnostic contract of the reasoning
// oracle: given the conversation transcript, the available tool schemas and
// optional retrieved context, a Model answers with either tool calls or a
// final text.
//
// Providers (OpenAI, Azure OpenAI, Anthropic) implement Model in the
// sub-packages so the orchestrator stays decoupled from vendor SDKs.
// ScriptedModel is a deterministic stand-in for tests.
package model
