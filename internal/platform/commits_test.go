package platform

import "testing"

func TestFormatChangeReason(t *testing.T) {
	tests := []struct {
		name    string
		ctype   string
		scope   string
		subject string
		body    string
		want    string
	}{
		{
			name:    "simple",
			ctype:   "feat",
			subject: "add page",
			want:    "feat: add page\n\nPowered-by: Vellum",
		},
		{
			name:    "with scope",
			ctype:   "fix",
			scope:   "blog",
			subject: "repair links",
			want:    "fix(blog): repair links\n\nPowered-by: Vellum",
		},
		{
			name:    "with body",
			ctype:   "docs",
			subject: "update about",
			body:    "Added the team list.\n",
			want:    "docs: update about\n\nAdded the team list.\n\nPowered-by: Vellum",
		},
		{
			name:    "default type",
			subject: "move /a",
			want:    "chore: move /a\n\nPowered-by: Vellum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatChangeReason(tt.ctype, tt.scope, tt.subject, tt.body)
			if got != tt.want {
				t.Errorf("FormatChangeReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppendFooter(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{name: "plain", msg: "simple message", want: "simple message\n\nPowered-by: Vellum"},
		{name: "already has newline", msg: "line 1\n", want: "line 1\n\nPowered-by: Vellum"},
		{name: "already has footer", msg: "x\n\nPowered-by: Vellum", want: "x\n\nPowered-by: Vellum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppendFooter(tt.msg); got != tt.want {
				t.Errorf("AppendFooter() = %q, want %q", got, tt.want)
			}
		})
	}
}
