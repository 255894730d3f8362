/*
Copyright 2023 The Marketplace Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package upload ships data archives to the ingress service that
// processes them asynchronously.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Uploader posts archives to the ingress endpoint, optionally through
// an HTTP proxy and optionally age-encrypted.
type Uploader struct {
	// URL is the ingress upload endpoint.
	URL string

	// ProxyURL routes the upload through an HTTP proxy when set.
	ProxyURL string

	// RecipientsFile optionally points to an age recipients file.
	RecipientsFile string

	// Timeout bounds the whole upload.
	Timeout time.Duration
}

// Upload archives the given data file and posts it to the ingress URL.
// It returns the response status line on success.
func (u *Uploader) Upload(ctx context.Context, file string) (string, error) {
	if u.URL == "" {
		return "", fmt.Errorf("no ingress URL configured")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}

	name := filepath.Base(file)
	archive, err := Archive(name, data)
	if err != nil {
		return "", fmt.Errorf("archiving %s failed: %w", file, err)
	}

	contentType := "application/gzip"
	if u.RecipientsFile != "" {
		recipients, err := ParseRecipients(u.RecipientsFile)
		if err != nil {
			return "", fmt.Errorf("reading age recipients failed: %w", err)
		}
		archive, err = Encrypt(archive, recipients)
		if err != nil {
			return "", fmt.Errorf("encrypting %s failed: %w", file, err)
		}
		contentType = "application/age"
	}

	client := &http.Client{Timeout: u.Timeout}
	if u.ProxyURL != "" {
		proxy, err := url.Parse(u.ProxyURL)
		if err != nil {
			return "", fmt.Errorf("invalid proxy URL '%s': %w", u.ProxyURL, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, bytes.NewReader(archive))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Upload-Name", name)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload to %s failed: %w", u.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload to %s failed: %s %s", u.URL, resp.Status, string(body))
	}

	return resp.Status, nil
}
