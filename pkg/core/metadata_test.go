package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestMetadata_RoundTrip(t *testing.T) {
	m := NewMetadata("page", "2")
	m.Properties["title"] = &Property{Kind: Multilingual, Lang: map[string]string{"en": "Hello", "fr": "Bonjour", "de": ""}}
	m.Properties["subject"] = &Property{Kind: Multiple, Values: []string{"b", "a"}}
	m.Properties["uuid"] = &Property{Kind: Simple, Value: "1234"}
	m.Properties["empty"] = &Property{Kind: Simple}

	data, err := MarshalMetadata(m)
	if err != nil {
		t.Fatalf("MarshalMetadata failed: %v", err)
	}
	if strings.Contains(string(data), "empty") || strings.Contains(string(data), "de:") {
		t.Errorf("empty values must be omitted:\n%s", data)
	}

	again, err := MarshalMetadata(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(again) {
		t.Errorf("encoding is not deterministic")
	}

	got, err := UnmarshalMetadata(data)
	if err != nil {
		t.Fatalf("UnmarshalMetadata failed: %v", err)
	}
	if got.Format != "page" || got.Version != "2" {
		t.Errorf("got format %q version %q", got.Format, got.Version)
	}
	if !reflect.DeepEqual(got.Names(), []string{"subject", "title", "uuid"}) {
		t.Errorf("unexpected properties %v", got.Names())
	}
	if v := got.Properties["subject"].Values; !reflect.DeepEqual(v, []string{"b", "a"}) {
		t.Errorf("multiple values must keep their order, got %v", v)
	}
	if got.Properties["title"].Lang["fr"] != "Bonjour" {
		t.Errorf("lost a translation")
	}
}

func TestUnmarshalMetadata_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind error
	}{
		{name: "Missing Format", data: "version: \"1\"\n"},
		{name: "Malformed", data: "format: [\n"},
		{name: "Both Kinds", data: "format: page\nproperties:\n  x:\n    lang: {en: a}\n    values: [b]\n", kind: ErrPropertyKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMetadata([]byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.kind != nil && !errors.Is(err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	t.Run("Names", func(t *testing.T) {
		for _, ok := range []string{"a", "1", "_x", "a.b-c", "index.html"} {
			if err := ValidateName(ok); err != nil {
				t.Errorf("%q should be valid: %v", ok, err)
			}
		}
		for _, bad := range []string{"", ".hidden", "-a", "a b", "a/b", "x.metadata", "é"} {
			if err := ValidateName(bad); !errors.Is(err, ErrInvalidName) {
				t.Errorf("%q should be invalid", bad)
			}
		}
	})

	t.Run("Helpers", func(t *testing.T) {
		if got := CleanPath("a//b/"); got != "/a/b" {
			t.Errorf("CleanPath: %q", got)
		}
		if ParentPath("/") != "" || ParentPath("/a") != "/" || ParentPath("/a/b") != "/a" {
			t.Error("ParentPath")
		}
		if got := Ancestors("/a/b"); !reflect.DeepEqual(got, []string{"/", "/a", "/a/b"}) {
			t.Errorf("Ancestors: %v", got)
		}
		if IsWithin("/ab", "/a") || !IsWithin("/a/b", "/a") || !IsWithin("/a", "/a") {
			t.Error("IsWithin")
		}
		if got := rebase("/a/b/c", "/a/b", "/x"); got != "/x/c" {
			t.Errorf("rebase: %q", got)
		}
		if metadataKey("/") != ".metadata" || metadataKey("/a/b") != "a/b.metadata" || handlerKey("/a", "data") != "a.data" {
			t.Error("storage keys")
		}
	})
}

func TestNegotiate(t *testing.T) {
	p := &Property{Kind: Multilingual, Lang: map[string]string{"en": "Hello", "fr": "Bonjour", "pt": ""}}
	langs := []string{"pt", "de"}
	ctx := WithLanguages(context.Background(), langs...)

	tests := []struct {
		name string
		ctx  context.Context
		lang string
		def  string
		want string
	}{
		{"Explicit", context.Background(), "fr", "en", "Bonjour"},
		{"Explicit Has No Fallback", context.Background(), "de", "en", ""},
		{"Default", context.Background(), "", "fr", "Bonjour"},
		{"Regional Tag", WithLanguages(context.Background(), "fr-CA"), "", "de", "Bonjour"},
		{"Accepted Languages Skip Empty", ctx, "", "fr", "Bonjour"},
		{"Smallest Available", context.Background(), "", "es", "Hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.negotiate(tt.ctx, tt.lang, tt.def); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
	if !reflect.DeepEqual(langs, []string{"pt", "de"}) {
		t.Error("negotiation must not modify the accepted languages")
	}
}
