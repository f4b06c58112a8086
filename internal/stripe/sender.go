package stripe

import (
	"net/http"
)

// RequestBuilder yields a fully configured request. It is invoked once per
// physical attempt because a sent request cannot be reused.
type RequestBuilder func() (*http.Request, error)

// send performs exactly one physical attempt and records it in the ledger
// whatever the outcome. Status codes are not interpreted here.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := c.now()
	c.ledger.RecordAttemptStart()

	resp, err := c.http.Do(req)

	end := c.now()
	record := ReqLog{
		Start:      start,
		End:        end,
		DurationMS: max(end.Sub(start).Milliseconds(), 0),
	}
	if err != nil {
		record.NetworkError = true
	} else {
		status := resp.StatusCode
		record.Status = &status
		if resp.ContentLength > 0 {
			record.Bytes = resp.ContentLength
		}
	}

	c.ledger.RecordAttemptEnd(record, c.logRequests)
	if c.observer != nil {
		c.observer.ObserveAttempt(record)
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}
