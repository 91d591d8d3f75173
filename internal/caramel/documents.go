package caramel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// CaseDocumentCount returns the total unfiltered number of documents in a
// case. It bounds how many distinct documents a folder can be sampled to.
func (c *Client) CaseDocumentCount(ctx context.Context, caseName string) (int, error) {
	query := url.Values{
		"uhits":   {"1"},
		"maxhits": {"0"},
	}

	resp, err := c.Do(ctx, http.MethodGet, casePath(caseName)+"/document", query, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := firstInt(resp.Body, "unfiltered_hits")
	if err != nil {
		return 0, fmt.Errorf("caramel: reading document total of %s: %w", caseName, err)
	}

	c.logger.Debug("case document total",
		slog.String("case", caseName),
		slog.Int("count", n),
	)

	return n, nil
}
