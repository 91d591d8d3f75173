package caramel

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

func casePath(caseName string) string {
	return "/case/" + url.PathEscape(caseName)
}

func folderPath(caseName, folderID string) string {
	return casePath(caseName) + "/folder/" + url.PathEscape(folderID)
}

// ListFolders returns every folder in a case, in listing order, up to
// MaxFolders. A missing case surfaces as ErrNotFound.
func (c *Client) ListFolders(ctx context.Context, caseName string) ([]Folder, error) {
	c.logger.Debug("listing folders", slog.String("case", caseName))

	query := url.Values{"maxhits": {strconv.Itoa(MaxFolders)}}

	resp, err := c.Do(ctx, http.MethodGet, casePath(caseName)+"/folder", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var folders []Folder

	err = scanElements(resp.Body, "folder", func(_ *xml.Decoder, se *xml.StartElement) error {
		for _, attr := range se.Attr {
			if attr.Name.Local != "uri" {
				continue
			}

			id := folderIDFromURI(attr.Value)
			if id == "" {
				return fmt.Errorf("%w: folder uri %q has no id", ErrMalformedResponse, attr.Value)
			}

			folders = append(folders, Folder{Case: caseName, ID: id, URI: attr.Value})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("caramel: decoding folder listing for %s: %w", caseName, err)
	}

	c.logger.Debug("listed folders",
		slog.String("case", caseName),
		slog.Int("count", len(folders)),
	)

	return folders, nil
}

// FolderCount returns the number of documents currently visible in a
// folder. The read path is eventually consistent: a sample or purge that
// was just acknowledged may not be reflected yet.
func (c *Client) FolderCount(ctx context.Context, caseName, folderID string) (int, error) {
	query := url.Values{
		"facets":  {fmt.Sprintf("doc.id(count;limit=%d)", countFacetLimit)},
		"maxhits": {"0"},
	}

	resp, err := c.Do(ctx, http.MethodGet, folderPath(caseName, folderID)+"/b", query, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := firstInt(resp.Body, "count")
	if err != nil {
		return 0, fmt.Errorf("caramel: reading count of folder %s/%s: %w", caseName, folderID, err)
	}

	return n, nil
}

// Sample asks the service to add up to n randomly chosen case documents to
// the folder. The service may pick documents already in the folder, so the
// resulting count can grow by less than n.
func (c *Client) Sample(ctx context.Context, caseName, folderID string, n int) error {
	if n < 1 || n > MaxSampleSize {
		return fmt.Errorf("%w: %d (allowed 1..%d)", ErrBadSampleSize, n, MaxSampleSize)
	}

	form := url.Values{
		"_method":      {"sample"},
		"target_count": {strconv.Itoa(n)},
	}

	return c.postFolder(ctx, caseName, folderID, form)
}

// Purge asks the service to remove every document from the folder.
// Acknowledgment does not mean the purge has completed.
func (c *Client) Purge(ctx context.Context, caseName, folderID string) error {
	return c.postFolder(ctx, caseName, folderID, url.Values{"_method": {"purge"}})
}

// DeleteFolder removes the folder itself.
func (c *Client) DeleteFolder(ctx context.Context, caseName, folderID string) error {
	resp, err := c.Do(ctx, http.MethodDelete, folderPath(caseName, folderID), nil, nil)
	if err != nil {
		return err
	}

	resp.Body.Close()

	return nil
}

func (c *Client) postFolder(ctx context.Context, caseName, folderID string, form url.Values) error {
	c.logger.Debug("posting folder method",
		slog.String("case", caseName),
		slog.String("folder_id", folderID),
		slog.String("method", form.Get("_method")),
	)

	resp, err := c.Do(ctx, http.MethodPost, folderPath(caseName, folderID), nil, form)
	if err != nil {
		return err
	}

	resp.Body.Close()

	return nil
}
