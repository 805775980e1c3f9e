package provider

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the full model prompt for a request. Adapters for
// chat-style APIs share this so all tiers receive the same instructions.
func BuildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString(instructionFor(req))
	b.WriteString("\n\n")
	b.WriteString(req.Text)

	return b.String()
}

// instructionFor returns the instruction line preceding the input text.
// An explicit Instruction wins; otherwise the operation and its params
// determine the default scaffolding.
func instructionFor(req Request) string {
	if req.Instruction != "" {
		return req.Instruction
	}

	switch req.Operation {
	case OpSummarize:
		length := req.Params["length"]
		if length == "" {
			length = "concise"
		}
		return fmt.Sprintf("Summarize the following text. Produce a %s summary that preserves the key points.", length)

	case OpTranslate:
		target := req.Params["targetLanguage"]
		if target == "" {
			target = "English"
		}
		return fmt.Sprintf("Translate the following text into %s. Output only the translation.", target)

	case OpValidate:
		return "Check the following text for factual, grammatical and logical problems. List each problem found, or state that none were found."

	case OpRewrite:
		tone := req.Params["tone"]
		if tone == "" {
			tone = "neutral"
		}
		return fmt.Sprintf("Rewrite the following text in a %s tone, preserving its meaning.", tone)

	case OpCustomPrompt:
		if req.UserPrompt != "" {
			return req.UserPrompt
		}
		return "Process the following text."

	default:
		return "Process the following text."
	}
}

// ReduceInstruction returns the instruction for the final merge call that
// combines partial per-chunk outputs into one coherent result.
func ReduceInstruction(op Operation) string {
	switch op {
	case OpSummarize:
		return "Combine these partial summaries into one final coherent summary. Remove redundancy introduced by overlapping sections."
	case OpTranslate:
		return "These are consecutive translated sections of one document. Join them into a single coherent translation, smoothing the section boundaries."
	case OpValidate:
		return "These are validation findings for consecutive sections of one document. Merge them into a single deduplicated list of findings."
	case OpRewrite:
		return "These are rewritten sections of one document. Join them into a single coherent text, smoothing the section boundaries."
	default:
		return "Combine these partial results into one final coherent result."
	}
}
