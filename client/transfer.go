package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// newProgressBar renders transfer progress to w. A negative total shows a spinner.
func newProgressBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
	)
}

// download copies the body of a GET on p into w. It returns the file name the
// server suggested in Content-Disposition, or "" when there was none.
func (c *Client) download(ctx context.Context, p string, w io.Writer, progress io.Writer) (string, error) {
	req := NewRequest(http.MethodGet, p)
	req.Header.Set("Accept", "*/*")
	resp, err := c.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name := fileNameFromDisposition(resp.Header.Get("Content-Disposition"))
	label := name
	if label == "" {
		label = path.Base(resp.Request.URL.Path)
	}

	var src io.Reader = c.throttle(ctx, resp.Body)
	if progress != nil {
		bar := newProgressBar(progress, resp.ContentLength, "Downloading "+label)
		defer bar.Close()
		pr := progressbar.NewReader(src, bar)
		src = &pr
	}

	n, err := io.Copy(w, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Info().Str("file", label).Msg("Download cancelled")
			return name, ctxErr
		}
		return name, &NetworkError{Method: http.MethodGet, URL: redactURL(resp.Request.URL), Err: fmt.Errorf("download interrupted after %d bytes: %w", n, err)}
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return name, fmt.Errorf("download of %s incomplete: got %d of %d bytes", label, n, resp.ContentLength)
	}
	log.Info().Str("file", label).Int64("bytes", n).Msg("Download finished")
	return name, nil
}

func fileNameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := params["filename"]
	if name == "" {
		return ""
	}
	return path.Base(name)
}
