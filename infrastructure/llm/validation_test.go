package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty means default", input: "", want: ""},
		{name: "https", input: "https://api.example.com/v1", want: "https://api.example.com/v1"},
		{name: "http", input: "http://localhost:8080", want: "http://localhost:8080"},
		{name: "bad scheme", input: "ftp://example.com", wantErr: true},
		{name: "no host", input: "https://", wantErr: true},
		{name: "not a url", input: "://bad", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateBaseURL(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), ValidateTimeout(0))
	assert.Equal(t, time.Duration(0), ValidateTimeout(-5*time.Second))
	assert.Equal(t, MinTimeout, ValidateTimeout(10*time.Millisecond))
	assert.Equal(t, MaxTimeout, ValidateTimeout(time.Hour))
	assert.Equal(t, 45*time.Second, ValidateTimeout(45*time.Second))
}
