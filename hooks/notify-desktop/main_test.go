package main

import (
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "without timestamp",
			req:  Request{CustomerID: 4},
			want: "Customer 4 entered",
		},
		{
			name: "with timestamp",
			req:  Request{CustomerID: 1, Timestamp: time.Date(2024, 1, 1, 9, 30, 5, 0, time.Local)},
			want: "Customer 1 entered at 09:30:05",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildMessage(tt.req); got != tt.want {
				t.Errorf("buildMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildNotificationScript(t *testing.T) {
	got := buildNotificationScript(`Shop "A"`, "Customer 2 entered")
	want := `display notification "Customer 2 entered" with title "Shop \"A\""`
	if got != want {
		t.Errorf("buildNotificationScript() = %q, want %q", got, want)
	}
}
