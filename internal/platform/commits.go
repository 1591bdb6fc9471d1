package platform

import (
	"strings"
)

// CommitType constants for semantic change reasons.
const (
	CommitTypeFeat     = "feat"
	CommitTypeFix      = "fix"
	CommitTypeDocs     = "docs"
	CommitTypeRefactor = "refactor"
	CommitTypeChore    = "chore"
)

const footer = "Powered-by: Vellum"

// FormatChangeReason builds a Conventional Commit message:
//
//	<type>(<scope>): <subject>
//
//	<body>
//
//	Powered-by: Vellum
func FormatChangeReason(ctype, scope, subject, body string) string {
	var sb strings.Builder
	if ctype == "" {
		ctype = CommitTypeChore
	}
	sb.WriteString(ctype)
	if scope != "" {
		sb.WriteString("(" + scope + ")")
	}
	sb.WriteString(": ")
	sb.WriteString(subject)
	if body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(body))
	}
	sb.WriteString("\n\n" + footer)
	return sb.String()
}

// AppendFooter appends the footer to a free-form message if not present.
func AppendFooter(msg string) string {
	if strings.Contains(msg, footer) {
		return msg
	}
	return strings.TrimRight(msg, "\n") + "\n\n" + footer
}
