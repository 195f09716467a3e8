package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/levigross/grequests"
)

// ErrUpstream signals a failure talking to the Walrus publisher or
// aggregator. Handlers map it to a bad-gateway response.
var ErrUpstream = errors.New("blob: upstream error")

// ErrNotFound signals a blob id the aggregator does not know.
var ErrNotFound = errors.New("blob: not found")

// Stored describes a blob accepted by the publisher. Certified is false for
// a fresh store and true when the publisher reports the blob was already
// certified in an earlier epoch.
type Stored struct {
	BlobID    string
	Certified bool
	Size      int64
}

// Client talks to a Walrus publisher/aggregator pair. Uploads go to the
// publisher, reads to the aggregator; the two endpoints are configured
// separately because deployments commonly split them.
type Client struct {
	publisherURL  string
	aggregatorURL string
	epochs        int
	timeout       time.Duration
}

func NewClient(publisherURL, aggregatorURL string, epochs int) *Client {
	if epochs <= 0 {
		epochs = 1
	}
	return &Client{
		publisherURL:  publisherURL,
		aggregatorURL: aggregatorURL,
		epochs:        epochs,
		timeout:       60 * time.Second,
	}
}

// storeResponse mirrors the publisher's store result. Exactly one of the two
// branches is set.
type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
			Size   int64  `json:"size"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
}

// Store uploads the content to the publisher and returns the blob id under
// which the network serves it.
func (c *Client) Store(ctx context.Context, content io.Reader, size int64) (Stored, error) {
	endpoint := fmt.Sprintf("%s/v1/blobs?epochs=%d", c.publisherURL, c.epochs)
	resp, err := grequests.Put(endpoint, &grequests.RequestOptions{
		Context:        ctx,
		RequestBody:    content,
		RequestTimeout: c.timeout,
		Headers:        map[string]string{"Content-Type": "application/octet-stream"},
	})
	if err != nil {
		return Stored{}, fmt.Errorf("%w: store: %v", ErrUpstream, err)
	}
	defer resp.Close()
	if !resp.Ok {
		return Stored{}, fmt.Errorf("%w: store: publisher returned %d", ErrUpstream, resp.StatusCode)
	}

	var parsed storeResponse
	if err := resp.JSON(&parsed); err != nil {
		return Stored{}, fmt.Errorf("%w: store: decode response: %v", ErrUpstream, err)
	}
	switch {
	case parsed.NewlyCreated != nil:
		return Stored{
			BlobID: parsed.NewlyCreated.BlobObject.BlobID,
			Size:   parsed.NewlyCreated.BlobObject.Size,
		}, nil
	case parsed.AlreadyCertified != nil:
		return Stored{
			BlobID:    parsed.AlreadyCertified.BlobID,
			Certified: true,
			Size:      size,
		}, nil
	default:
		return Stored{}, fmt.Errorf("%w: store: publisher response has no blob id", ErrUpstream)
	}
}

// Fetch streams a blob's bytes from the aggregator.
func (c *Client) Fetch(ctx context.Context, blobID string) ([]byte, error) {
	endpoint := c.aggregatorURL + "/v1/blobs/" + url.PathEscape(blobID)
	resp, err := grequests.Get(endpoint, &grequests.RequestOptions{
		Context:        ctx,
		RequestTimeout: c.timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrUpstream, blobID, err)
	}
	defer resp.Close()
	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, blobID)
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w: fetch %s: aggregator returned %d", ErrUpstream, blobID, resp.StatusCode)
	}
	return resp.Bytes(), nil
}
