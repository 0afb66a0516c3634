package mqtt

import (
	"fmt"
)

// Subscribe registers handler for topic, which may contain wildcards such
// as Topics.AllAllocateRequests. The subscription is remembered and
// restored after a reconnect; a failed subscribe is forgotten again.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: handler}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	err := fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	if token.WaitTimeout(defaultPublishTimeout) {
		err = token.Error()
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
		}
	}
	if err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}
