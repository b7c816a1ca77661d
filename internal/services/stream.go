package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/tmaxmax/go-sse"
)

// streamDecoder turns the data payload of one provider stream event into a text
// fragment or an end marker. Implementations differ only in the JSON shape they expect.
// A payload that cannot be decoded reports ok == false and is skipped; one undecodable
// event must never lose the rest of the stream.
type streamDecoder interface {
	decodeEvent(data string) (fragment string, done bool, ok bool)
}

// streamEvents issues req and yields text fragments decoded from the server-sent event
// stream of the response, in network order, until the decoder reports the provider's
// end marker or the connection closes. Each call opens a fresh connection; the sequence
// is not restartable.
func streamEvents(client *http.Client, req *http.Request, dec streamDecoder) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			yield("", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body)))
			return
		}

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}
			fragment, done, ok := dec.decodeEvent(ev.Data)
			if !ok {
				continue
			}
			if done {
				return
			}
			if fragment == "" {
				continue
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}
