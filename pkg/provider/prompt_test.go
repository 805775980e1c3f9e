package provider

import (
	"strings"
	"testing"
)

func TestBuildPromptDefaultInstructions(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "summarize default length",
			req:  Request{Operation: OpSummarize, Text: "body"},
			want: "concise summary",
		},
		{
			name: "summarize custom length",
			req:  Request{Operation: OpSummarize, Text: "body", Params: map[string]string{"length": "detailed"}},
			want: "detailed summary",
		},
		{
			name: "translate default language",
			req:  Request{Operation: OpTranslate, Text: "body"},
			want: "into English",
		},
		{
			name: "translate target language",
			req:  Request{Operation: OpTranslate, Text: "body", Params: map[string]string{"targetLanguage": "German"}},
			want: "into German",
		},
		{
			name: "validate",
			req:  Request{Operation: OpValidate, Text: "body"},
			want: "Check the following text",
		},
		{
			name: "rewrite tone",
			req:  Request{Operation: OpRewrite, Text: "body", Params: map[string]string{"tone": "formal"}},
			want: "formal tone",
		},
		{
			name: "custom prompt uses user prompt",
			req:  Request{Operation: OpCustomPrompt, Text: "body", UserPrompt: "Extract all dates."},
			want: "Extract all dates.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := BuildPrompt(tt.req)
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("BuildPrompt = %q, want it to contain %q", prompt, tt.want)
			}
			if !strings.HasSuffix(prompt, "\n\n"+tt.req.Text) {
				t.Errorf("BuildPrompt = %q, want the input text after a blank line", prompt)
			}
		})
	}
}

func TestBuildPromptInstructionOverride(t *testing.T) {
	req := Request{
		Operation:   OpSummarize,
		Text:        "part one\n\npart two",
		Instruction: "Combine these partial summaries.",
	}
	prompt := BuildPrompt(req)
	if !strings.HasPrefix(prompt, "Combine these partial summaries.") {
		t.Errorf("prompt = %q, want the explicit instruction first", prompt)
	}
	if strings.Contains(prompt, "Summarize the following") {
		t.Errorf("prompt = %q, operation default must not leak past an override", prompt)
	}
}

func TestReduceInstructionPerOperation(t *testing.T) {
	ops := []Operation{OpSummarize, OpTranslate, OpValidate, OpRewrite, OpCustomPrompt}
	seen := make(map[string]bool)
	for _, op := range ops {
		instr := ReduceInstruction(op)
		if instr == "" {
			t.Errorf("ReduceInstruction(%s) is empty", op)
		}
		seen[instr] = true
	}
	if len(seen) < 4 {
		t.Errorf("got %d distinct reduce instructions, want operation-specific wording", len(seen))
	}
}

func TestCapabilityFor(t *testing.T) {
	tests := []struct {
		op   Operation
		want Capability
	}{
		{OpSummarize, CapSummarizer},
		{OpTranslate, CapTranslator},
		{OpRewrite, CapRewriter},
		{OpValidate, CapPrompt},
		{OpCustomPrompt, CapPrompt},
	}
	for _, tt := range tests {
		if got := CapabilityFor(tt.op); got != tt.want {
			t.Errorf("CapabilityFor(%s) = %s, want %s", tt.op, got, tt.want)
		}
	}
}
