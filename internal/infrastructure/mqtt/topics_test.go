package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"SystemStatus", topics.SystemStatus(), "pinforge/system/status"},
		{"Allocation", topics.Allocation("p-1"), "pinforge/allocation/p-1"},
		{"AllAllocations", topics.AllAllocations(), "pinforge/allocation/+"},
		{"AllocateRequest", topics.AllocateRequest("r1"), "pinforge/request/allocate/r1"},
		{"AllAllocateRequests", topics.AllAllocateRequests(), "pinforge/request/allocate/+"},
		{"AllocateResponse", topics.AllocateResponse("r1"), "pinforge/response/allocate/r1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestParseAllocateRequest(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"pinforge/request/allocate/r1", "r1", true},
		{"pinforge/request/allocate/", "", false},
		{"pinforge/request/allocate/a/b", "", false},
		{"pinforge/response/allocate/r1", "", false},
		{"pinforge/allocation/p-1", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := Topics{}.ParseAllocateRequest(tt.topic)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("ParseAllocateRequest() = (%q, %v), want (%q, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
