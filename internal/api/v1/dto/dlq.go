package dto

// PubSubPushRequest is the envelope Google Pub/Sub delivers to push
// endpoints.
type PubSubPushRequest struct {
	Message struct {
		Attributes map[string]string `json:"attributes"`
		Data       string            `json:"data"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
