package client

import "github.com/google/uuid"

// PublishResult is the outcome of publishing one message to one channel.
type PublishResult struct {
	ChannelID uuid.UUID
	Err       error
}

// PublishReport collects the per-channel outcomes of one publish.
type PublishReport struct {
	Results []PublishResult
}

// Delivered counts channels that accepted the message.
func (r PublishReport) Delivered() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results that carry an error.
func (r PublishReport) Failed() []PublishResult {
	var failed []PublishResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
