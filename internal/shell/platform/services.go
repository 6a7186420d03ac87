package platform

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/hashicorp/go-retryablehttp"
)

type serviceStatusInput struct {
	Services []string `json:"Services"`
}

type serviceStatusOutput struct {
	Services []struct {
		Service string `json:"Service"`
		Status  string `json:"Status"`
	} `json:"Services"`
}

// ServiceStatuses reports which of services are enabled for the account.
func (c *Client) ServiceStatuses(ctx context.Context, services []string) (map[string]bool, error) {
	var out serviceStatusOutput
	if err := c.call(ctx, ServiceRuntime, "GetServiceStatus", serviceStatusInput{Services: services}, &out); err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(out.Services))
	for _, s := range out.Services {
		enabled[s.Service] = s.Status == "Enabled"
	}
	return enabled, nil
}

// DownloadLog fetches a log file by URL and returns its last maxLines lines.
// maxLines <= 0 returns every line.
func (c *Client) DownloadLog(ctx context.Context, url string, maxLines int) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download log: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download log: unexpected status %d", resp.StatusCode)
	}

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if maxLines > 0 && len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("read log: %w", err)
	}
	return lines, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
