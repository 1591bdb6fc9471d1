package core

import (
	"context"
	"fmt"
)

type contextKey string

// ChangeReasonKey is the context key for passing the commit message of a transaction.
const ChangeReasonKey contextKey = "change_reason"

const (
	authorKey    contextKey = "author"
	languagesKey contextKey = "languages"
)

// DefaultMessage is the commit message used when no change reason is given.
const DefaultMessage = "no comment"

// Author is the identity a transaction is committed under.
type Author struct {
	Name  string
	Email string
}

// Anonymous is the author used when the context carries no identity.
var Anonymous = Author{Name: "nobody", Email: "nobody@localhost"}

// String formats the author as "Name <email>".
func (a Author) String() string {
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// WithAuthor returns a context carrying the author of the current transaction.
func WithAuthor(ctx context.Context, a Author) context.Context {
	return context.WithValue(ctx, authorKey, a)
}

// AuthorFrom returns the author carried by ctx, or Anonymous.
func AuthorFrom(ctx context.Context) Author {
	if a, ok := ctx.Value(authorKey).(Author); ok && a.Name != "" {
		if a.Email == "" {
			a.Email = Anonymous.Email
		}
		return a
	}
	return Anonymous
}

// WithChangeReason returns a context carrying the commit message.
func WithChangeReason(ctx context.Context, msg string) context.Context {
	return context.WithValue(ctx, ChangeReasonKey, msg)
}

// ChangeReason returns the commit message carried by ctx, or DefaultMessage.
func ChangeReason(ctx context.Context) string {
	if msg, ok := ctx.Value(ChangeReasonKey).(string); ok && msg != "" {
		return msg
	}
	return DefaultMessage
}

// WithLanguages returns a context carrying the accepted languages, most preferred first.
func WithLanguages(ctx context.Context, langs ...string) context.Context {
	return context.WithValue(ctx, languagesKey, langs)
}

// Languages returns the accepted languages carried by ctx.
func Languages(ctx context.Context) []string {
	langs, _ := ctx.Value(languagesKey).([]string)
	return langs
}
