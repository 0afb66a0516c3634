package mqtt

import "strings"

// Topic prefixes. Every pinforge topic lives under TopicPrefix.
const (
	TopicPrefix = "pinforge"

	TopicPrefixSystem     = TopicPrefix + "/system"
	TopicPrefixAllocation = TopicPrefix + "/allocation"
	TopicPrefixRequest    = TopicPrefix + "/request"
	TopicPrefixResponse   = TopicPrefix + "/response"
)

// Topics builds pinforge MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Allocation("5f0c...")   // pinforge/allocation/5f0c...
//	topics.AllocateResponse("r1")  // pinforge/response/allocate/r1
type Topics struct{}

// SystemStatus carries the retained online/offline status and the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// Allocation is the retained summary of a project's latest allocation.
func (Topics) Allocation(projectID string) string {
	return TopicPrefixAllocation + "/" + projectID
}

// AllAllocations matches every project's allocation summary.
func (Topics) AllAllocations() string {
	return TopicPrefixAllocation + "/+"
}

// AllocateRequest is where a client asks for an ad-hoc allocation.
func (Topics) AllocateRequest(requestID string) string {
	return TopicPrefixRequest + "/allocate/" + requestID
}

// AllAllocateRequests matches every allocation request.
func (Topics) AllAllocateRequests() string {
	return TopicPrefixRequest + "/allocate/+"
}

// AllocateResponse is where the reply to requestID is published.
func (Topics) AllocateResponse(requestID string) string {
	return TopicPrefixResponse + "/allocate/" + requestID
}

// ParseAllocateRequest returns the request id of an allocation request
// topic. ok is false for any other topic, including ones with an empty or
// multi-level id.
func (Topics) ParseAllocateRequest(topic string) (requestID string, ok bool) {
	id, found := strings.CutPrefix(topic, TopicPrefixRequest+"/allocate/")
	if !found || id == "" || strings.ContainsAny(id, "/+#") {
		return "", false
	}
	return id, true
}
