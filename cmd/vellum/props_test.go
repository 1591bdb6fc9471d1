package main

import (
	"reflect"
	"testing"

	"github.com/aretw0/vellum/pkg/classes"
	"github.com/aretw0/vellum/pkg/core"
)

func TestParseProps(t *testing.T) {
	page := classes.NewPage()

	tests := []struct {
		name    string
		pairs   []string
		want    core.Props
		wantErr bool
	}{
		{
			name:  "Simple Value",
			pairs: []string{"workflow_state=public"},
			want:  core.Props{"workflow_state": "public"},
		},
		{
			name:  "Value With Equals",
			pairs: []string{"note=a=b"},
			want:  core.Props{"note": "a=b"},
		},
		{
			name:  "Declared Multiple",
			pairs: []string{"subject=go"},
			want:  core.Props{"subject": []string{"go"}},
		},
		{
			name:  "Repeated Name",
			pairs: []string{"tag=a", "tag=b", "tag=c"},
			want:  core.Props{"tag": []string{"a", "b", "c"}},
		},
		{
			name:  "Languages",
			pairs: []string{"title[en]=Hello", "title[fr]=Bonjour"},
			want:  core.Props{"title": map[string]string{"en": "Hello", "fr": "Bonjour"}},
		},
		{
			name:    "Missing Equals",
			pairs:   []string{"title"},
			wantErr: true,
		},
		{
			name:    "Mixed Forms",
			pairs:   []string{"title=Hello", "title[fr]=Bonjour"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProps(page, tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProps() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseProps() = %v, want %v", got, tt.want)
			}
		})
	}
}
