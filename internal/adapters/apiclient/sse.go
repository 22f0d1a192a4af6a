package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"

	"vestigia/internal/core/changefeed"
	"vestigia/internal/core/notify"
)

// Subscribe opens the server-sent change stream of table. It returns once
// the server accepted the stream. The channel is closed when ctx ends or the
// server drops the stream; reconnecting is left to the listener.
func (c *Client) Subscribe(ctx context.Context, table string, filter changefeed.Filter) (<-chan changefeed.Event, error) {
	params := url.Values{}
	if f := filter.String(); f != "" {
		params.Set("filter", f)
	}
	endpoint := c.baseURL + "/realtime/" + url.PathEscape(table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	accepted := make(chan struct{})
	stream := sse.NewClient(endpoint, func(sc *sse.Client) {
		sc.Connection = c.stream
		sc.ReconnectStrategy = &backoff.StopBackOff{}
		sc.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
			if resp.StatusCode != http.StatusOK {
				defer resp.Body.Close()
				return statusError("subscribe", resp)
			}
			close(accepted)
			return nil
		}
	})
	if token := c.Token(); token != "" {
		stream.Headers["Authorization"] = "Bearer " + token
	}

	out := make(chan changefeed.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- stream.SubscribeWithContext(ctx, "", func(msg *sse.Event) {
			c.forward(ctx, msg, out)
		})
	}()

	select {
	case <-accepted:
	case err := <-done:
		select {
		case <-accepted:
			// accepted and already drained; the stream goroutine reports the end
			done <- err
		default:
			var ne *notify.Error
			if !errors.As(err, &ne) {
				err = &notify.Error{Kind: notify.KindBackend, Op: "subscribe", Err: err}
			}
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go func() {
		defer close(out)
		if err := <-done; err != nil && ctx.Err() == nil {
			c.logger.Info("Change stream ended", zap.String("table", table), zap.Error(err))
		}
	}()
	return out, nil
}

// forward decodes one frame into a change event. The "ready" frame and
// frames without data are skipped.
func (c *Client) forward(ctx context.Context, msg *sse.Event, out chan<- changefeed.Event) {
	if string(msg.Event) == "ready" || len(msg.Data) == 0 {
		return
	}
	var ev changefeed.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		c.logger.Warn("Dropping malformed change event", zap.Error(err))
		return
	}
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
