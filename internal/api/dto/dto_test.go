package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartBatchRequest_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		req     StartBatchRequest
		wantErr bool
	}{
		{
			name: "lines",
			req:  StartBatchRequest{Service: "tra_cuu_ftth", Lines: []string{"t008_gftth_01"}},
		},
		{
			name: "text",
			req:  StartBatchRequest{Service: "gach_dien_evn", Text: "PE01\r\n\r\nPE02\n"},
		},
		{
			name:    "unknown service",
			req:     StartBatchRequest{Service: "xo_so", Lines: []string{"1"}},
			wantErr: true,
		},
		{
			name:    "only blank lines",
			req:     StartBatchRequest{Service: "tra_cuu_ftth", Lines: []string{"", "  "}, Text: "\n"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.IsValid()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStartBatchRequest_AllLines(t *testing.T) {
	req := StartBatchRequest{Lines: []string{"a", ""}, Text: "b\nc"}
	assert.Equal(t, []string{"a", "", "b", "c"}, req.AllLines())
}
